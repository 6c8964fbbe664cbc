package sequencer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/autommensor/wabot/pkg/connector"
)

// fakeConn records every transport call. Optional hooks inject failures or
// block individual chats.
type fakeConn struct {
	mu     sync.Mutex
	texts  []sentText
	media  []sentMedia
	typing []string

	textErr  func(chatID string) error
	textGate func(chatID string) // called before recording, may block
}

type sentText struct {
	chatID string
	text   string
}

type sentMedia struct {
	chatID  string
	sticker bool
}

func (f *fakeConn) SendText(ctx context.Context, chatID, text string) error {
	if f.textGate != nil {
		f.textGate(chatID)
	}
	if f.textErr != nil {
		if err := f.textErr(chatID); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.texts = append(f.texts, sentText{chatID, text})
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) SendMedia(ctx context.Context, chatID string, media *connector.Media, caption string) error {
	f.mu.Lock()
	f.media = append(f.media, sentMedia{chatID, media.AsSticker})
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) SetTyping(ctx context.Context, chatID string) error {
	f.mu.Lock()
	f.typing = append(f.typing, chatID)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) ResolveChat(ctx context.Context, digits string) (string, error) {
	return digits + "@c.us", nil
}

func (f *fakeConn) sentTexts() []sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentText, len(f.texts))
	copy(out, f.texts)
	return out
}

type echoReplier struct{}

func (echoReplier) Reply(ctx context.Context, userText string) string {
	return "re: " + userText
}

func newTestSequencer(conn connector.Connector) *Sequencer {
	// Zero delays keep tests fast; pacing is covered by clampDuration tests.
	return New(conn, echoReplier{}, Delays{})
}

func TestSequencer_PerChatOrdering(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSequencer(conn)

	const n = 20
	for i := 0; i < n; i++ {
		s.Enqueue(Event{ChatID: "chat-1", Body: fmt.Sprintf("msg-%02d", i)})
	}
	s.Wait()

	texts := conn.sentTexts()
	if len(texts) != n {
		t.Fatalf("expected %d sends, got %d", n, len(texts))
	}
	for i, st := range texts {
		want := fmt.Sprintf("re: msg-%02d", i)
		if st.text != want {
			t.Errorf("send %d: expected %q, got %q", i, want, st.text)
		}
	}
}

func TestSequencer_IndependentChatsNotSerialized(t *testing.T) {
	release := make(chan struct{})
	conn := &fakeConn{
		textGate: func(chatID string) {
			if chatID == "slow-chat" {
				<-release
			}
		},
	}

	done := make(chan Outcome, 8)
	s := newTestSequencer(conn)
	s.OnResult = func(out Outcome) { done <- out }

	// slow-chat's worker blocks inside its send; fast-chat is enqueued after
	// and must still finish.
	s.Enqueue(Event{ChatID: "slow-chat", Body: "blocked"})
	s.Enqueue(Event{ChatID: "fast-chat", Body: "hello"})

	select {
	case out := <-done:
		if out.ChatID != "fast-chat" {
			t.Fatalf("expected fast-chat to finish first, got %s", out.ChatID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("independent chat was serialized behind a blocked one")
	}

	close(release)
	s.Wait()
}

func TestSequencer_QueueRecordReleasedWhenDrained(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSequencer(conn)

	for i := 0; i < 5; i++ {
		s.Enqueue(Event{ChatID: fmt.Sprintf("chat-%d", i), Body: "hi"})
	}
	s.Wait()

	if n := s.ActiveQueues(); n != 0 {
		t.Errorf("expected all queue records released, %d remain", n)
	}
}

func TestSequencer_FailureIsolatedPerEvent(t *testing.T) {
	var calls int
	var mu sync.Mutex
	conn := &fakeConn{
		textErr: func(chatID string) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls == 1 {
				return errors.New("transport down")
			}
			return nil
		},
	}

	var outcomes []Outcome
	var omu sync.Mutex
	s := newTestSequencer(conn)
	s.OnResult = func(out Outcome) {
		omu.Lock()
		outcomes = append(outcomes, out)
		omu.Unlock()
	}

	s.Enqueue(Event{ChatID: "chat-1", Body: "first"})
	s.Enqueue(Event{ChatID: "chat-1", Body: "second"})
	s.Wait()

	omu.Lock()
	defer omu.Unlock()
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].OK {
		t.Error("first event should have failed")
	}
	if outcomes[0].Stage != "send" {
		t.Errorf("expected failure at send stage, got %q", outcomes[0].Stage)
	}
	if !outcomes[1].OK {
		t.Error("second event should have succeeded despite the first failing")
	}
}

func TestSequencer_Commands(t *testing.T) {
	t.Run("ping", func(t *testing.T) {
		conn := &fakeConn{}
		s := newTestSequencer(conn)
		s.Enqueue(Event{ChatID: "c", Body: "!ping"})
		s.Wait()
		texts := conn.sentTexts()
		if len(texts) != 1 || texts[0].text != "pong" {
			t.Fatalf("expected single pong reply, got %v", texts)
		}
	})

	t.Run("help", func(t *testing.T) {
		conn := &fakeConn{}
		s := newTestSequencer(conn)
		s.Enqueue(Event{ChatID: "c", Body: "!help"})
		s.Wait()
		texts := conn.sentTexts()
		if len(texts) != 1 || !strings.Contains(texts[0].text, "!ping") {
			t.Fatalf("expected help menu, got %v", texts)
		}
	})

	t.Run("sticker without media", func(t *testing.T) {
		conn := &fakeConn{}
		s := newTestSequencer(conn)
		s.Enqueue(Event{ChatID: "c", Body: "!sticker"})
		s.Wait()
		texts := conn.sentTexts()
		if len(texts) != 1 || !strings.Contains(texts[0].text, "!sticker") {
			t.Fatalf("expected sticker prompt, got %v", texts)
		}
	})

	t.Run("sticker with media", func(t *testing.T) {
		conn := &fakeConn{}
		s := newTestSequencer(conn)
		s.Enqueue(Event{
			ChatID:   "c",
			Body:     "!sticker",
			HasMedia: true,
			Media:    &connector.Media{MimeType: "image/png", Data: []byte{1, 2, 3}},
		})
		s.Wait()
		conn.mu.Lock()
		defer conn.mu.Unlock()
		if len(conn.media) != 1 || !conn.media[0].sticker {
			t.Fatalf("expected one sticker send, got %v", conn.media)
		}
	})
}

func TestClampDuration(t *testing.T) {
	tests := []struct {
		name        string
		d, min, max time.Duration
		want        time.Duration
	}{
		{"below min", time.Second, 2 * time.Second, 7 * time.Second, 2 * time.Second},
		{"in range", 3 * time.Second, 2 * time.Second, 7 * time.Second, 3 * time.Second},
		{"above max", time.Minute, 2 * time.Second, 7 * time.Second, 7 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampDuration(tt.d, tt.min, tt.max); got != tt.want {
				t.Errorf("clampDuration(%s) = %s, want %s", tt.d, got, tt.want)
			}
		})
	}
}
