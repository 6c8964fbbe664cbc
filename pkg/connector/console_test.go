package connector

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/chzyer/readline"
)

// scriptedReader plays back console input; "^C" becomes an interrupt.
type scriptedReader struct {
	lines []string
}

func (r *scriptedReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	if line == "^C" {
		return "", readline.ErrInterrupt
	}
	return line, nil
}

func (r *scriptedReader) Close() error { return nil }

// blockingReader hangs on Readline until closed, like an idle terminal.
type blockingReader struct {
	closed chan struct{}
}

func (r *blockingReader) Readline() (string, error) {
	<-r.closed
	return "", io.EOF
}

func (r *blockingReader) Close() error {
	select {
	case <-r.closed:
	default:
		close(r.closed)
	}
	return nil
}

type inbound struct {
	chatID string
	body   string
}

func TestConsoleREPL_FeedsMessages(t *testing.T) {
	rl := &scriptedReader{lines: []string{
		"hello",
		"",
		"/chat 919876543210@c.us",
		"order status?",
		"^C",
		"bye",
	}}

	var got []inbound
	c := NewConsole(nil)
	err := c.repl(context.Background(), rl, func(chatID, body string) {
		got = append(got, inbound{chatID, body})
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []inbound{
		{"console@c.us", "hello"},
		{"919876543210@c.us", "order status?"},
		{"919876543210@c.us", "bye"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d inbound messages, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestConsoleREPL_StopsOnCancel(t *testing.T) {
	rl := &blockingReader{closed: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	c := NewConsole(nil)
	go func() {
		done <- c.repl(ctx, rl, func(chatID, body string) {})
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("repl did not stop on cancellation")
	}
}

func TestParseConsoleLine(t *testing.T) {
	tests := []struct {
		name     string
		chatID   string
		line     string
		wantChat string
		wantBody string
		wantMsg  bool
	}{
		{"plain message", "a", "hello there", "a", "hello there", true},
		{"blank line ignored", "a", "   ", "a", "", false},
		{"chat switch", "a", "/chat b", "b", "", false},
		{"chat switch trims", "a", "/chat  b@c.us ", "b@c.us", "", false},
		{"chat switch without id keeps current", "a", "/chat  ", "a", "", false},
		{"message is trimmed", "a", "  hi  ", "a", "hi", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat, body, ok := parseConsoleLine(tt.chatID, tt.line)
			if chat != tt.wantChat || body != tt.wantBody || ok != tt.wantMsg {
				t.Errorf("parseConsoleLine(%q, %q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.chatID, tt.line, chat, body, ok, tt.wantChat, tt.wantBody, tt.wantMsg)
			}
		})
	}
}
