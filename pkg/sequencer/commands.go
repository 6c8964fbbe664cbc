package sequencer

import "context"

const helpText = `*Bot Commands*

!ping - Check if bot is alive
!help - Show this menu
!sticker - Send an image with the caption !sticker to make a sticker

*Ask me anything about our business!*`

// runCommand handles the built-in command set by exact match. Returns
// handled=false when the event should go to the AI replier instead.
func (s *Sequencer) runCommand(ctx context.Context, ev Event) (bool, Outcome) {
	switch ev.Body {
	case "!ping":
		return true, s.sendText(ctx, ev.ChatID, "pong")

	case "!help":
		return true, s.sendText(ctx, ev.ChatID, helpText)

	case "!sticker":
		if !ev.HasMedia || ev.Media == nil {
			return true, s.sendText(ctx, ev.ChatID, "Please send an image or video with the caption !sticker")
		}
		media := *ev.Media
		media.AsSticker = true
		if err := s.conn.SendMedia(ctx, ev.ChatID, &media, ""); err != nil {
			return true, Outcome{ChatID: ev.ChatID, Stage: "send", Err: err}
		}
		return true, Outcome{ChatID: ev.ChatID, OK: true}
	}
	return false, Outcome{}
}

func (s *Sequencer) sendText(ctx context.Context, chatID, text string) Outcome {
	if err := s.conn.SendText(ctx, chatID, text); err != nil {
		return Outcome{ChatID: chatID, Stage: "send", Err: err}
	}
	return Outcome{ChatID: chatID, OK: true}
}
