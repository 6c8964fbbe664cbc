package connector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chzyer/readline"

	"github.com/autommensor/wabot/pkg/logger"
)

// Console is a dry-run transport: every send is logged instead of delivered.
// Used for local development and as the default when no vendor transport is
// attached. It reports itself connected immediately.
type Console struct {
	state *StateTracker
}

// NewConsole creates a console transport and marks the tracker connected.
func NewConsole(state *StateTracker) *Console {
	if state != nil {
		state.Set(StatusConnected, "")
	}
	return &Console{state: state}
}

func (c *Console) SendText(ctx context.Context, chatID, text string) error {
	logger.InfoCF("connector", "dry-run text send", map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	})
	return nil
}

func (c *Console) SendMedia(ctx context.Context, chatID string, media *Media, caption string) error {
	if media == nil {
		return fmt.Errorf("nil media for chat %s", chatID)
	}
	logger.InfoCF("connector", "dry-run media send", map[string]interface{}{
		"chat_id": chatID,
		"mime":    media.MimeType,
		"bytes":   len(media.Data),
		"caption": caption,
		"sticker": media.AsSticker,
	})
	return nil
}

func (c *Console) SetTyping(ctx context.Context, chatID string) error {
	logger.DebugCF("connector", "dry-run typing indicator", map[string]interface{}{
		"chat_id": chatID,
	})
	return nil
}

// ResolveChat accepts any non-empty digit string and formats it the way the
// platform addresses individual chats.
func (c *Console) ResolveChat(ctx context.Context, digits string) (string, error) {
	if digits == "" || strings.ContainsFunc(digits, func(r rune) bool { return r < '0' || r > '9' }) {
		return "", fmt.Errorf("unresolvable destination %q", digits)
	}
	return digits + "@c.us", nil
}

var _ Connector = (*Console)(nil)

const defaultConsoleChat = "console@c.us"

// RunREPL reads lines from the terminal and hands each one to onMessage as an
// inbound message, standing in for the vendor transport's message callback.
// "/chat <id>" switches the active conversation; blank lines are ignored.
// Returns on EOF or ctx cancellation.
func (c *Console) RunREPL(ctx context.Context, onMessage func(chatID, body string)) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "wabot> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("open console: %w", err)
	}
	logger.InfoCF("connector", "Console ready, type a message to feed it inbound", map[string]interface{}{
		"chat_id": defaultConsoleChat,
	})
	return c.repl(ctx, rl, onMessage)
}

type lineReader interface {
	Readline() (string, error)
	Close() error
}

func (c *Console) repl(ctx context.Context, rl lineReader, onMessage func(chatID, body string)) error {
	defer rl.Close()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			rl.Close() // unblocks the pending Readline
		case <-stop:
		}
	}()

	chatID := defaultConsoleChat
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			// io.EOF, or the reader was closed by cancellation
			return nil
		}
		next, body, ok := parseConsoleLine(chatID, line)
		chatID = next
		if !ok {
			continue
		}
		onMessage(chatID, body)
	}
}

// parseConsoleLine interprets one console line against the active chat and
// reports the (possibly switched) chat id and whether the line is a message.
func parseConsoleLine(chatID, line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return chatID, "", false
	}
	if after, ok := strings.CutPrefix(line, "/chat "); ok {
		if id := strings.TrimSpace(after); id != "" {
			return id, "", false
		}
		return chatID, "", false
	}
	return chatID, line, true
}
