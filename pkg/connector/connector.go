// Package connector defines the boundary to the messaging platform transport.
//
// The vendor client (session handling, wire protocol, media encoding) lives
// outside this repository; everything here talks to it through the Connector
// interface. Failures are reported synchronously to the caller — the transport
// never retries on its own.
package connector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Media is an attachment ready to hand to the transport.
type Media struct {
	MimeType string
	Filename string
	Data     []byte

	// AsSticker asks the transport to deliver the media as a sticker
	// where the platform supports it.
	AsSticker bool
}

// Connector is the narrow surface the dispatch engine needs from the
// platform transport. Implementations must be safe for concurrent use by
// multiple conversations and campaigns.
type Connector interface {
	// SendText delivers a plain text message to a chat.
	SendText(ctx context.Context, chatID, text string) error

	// SendMedia delivers a media attachment with an optional caption.
	SendMedia(ctx context.Context, chatID string, media *Media, caption string) error

	// SetTyping shows the typing indicator on a chat. Best effort.
	SetTyping(ctx context.Context, chatID string) error

	// ResolveChat maps a normalized destination (digit string) to the
	// platform's chat identifier, verifying the peer exists.
	ResolveChat(ctx context.Context, digits string) (string, error)
}

// FetchMedia downloads an attachment over HTTP so a campaign can reuse one
// media object across every send.
func FetchMedia(ctx context.Context, url string) (*Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build media request: %w", err)
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch media: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read media body: %w", err)
	}
	return &Media{
		MimeType: resp.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}
