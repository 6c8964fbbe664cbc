// Package campaign drives unattended bulk-send runs: one serial loop per
// campaign delivering a templated message to each contact with randomized
// anti-abuse pacing, per-contact failure accounting, live progress snapshots,
// and cooperative cancellation between contacts.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/autommensor/wabot/pkg/connector"
	"github.com/autommensor/wabot/pkg/logger"
)

// Template is the message to deliver. MediaURL, when set, is fetched once
// before the loop and attached to every send.
type Template struct {
	ID       string
	Name     string
	Body     string
	MediaURL string
}

// Snapshot is one immutable point-in-time summary of a running campaign.
// One is emitted per processed contact and a final one with Complete=true.
type Snapshot struct {
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Current    string `json:"current,omitempty"`
	Complete   bool   `json:"complete"`
	LastError  string `json:"error,omitempty"`
}

// Options are the pacing and normalization parameters for a dispatcher.
type Options struct {
	DelayMin       time.Duration // inter-send pacing lower bound
	DelayMax       time.Duration // inter-send pacing upper bound
	TypingDwell    time.Duration // typing indicator display before each send
	CountryCode    string
	DomesticDigits int
}

// FetchFunc resolves a template's media URL into a reusable attachment.
type FetchFunc func(ctx context.Context, url string) (*connector.Media, error)

// Precondition errors — these abort the whole campaign before any send.
var (
	ErrNoConnector  = errors.New("no messaging connector configured")
	ErrNotConnected = errors.New("messaging platform not connected")
	ErrNoContacts   = errors.New("contact list is empty")
	ErrEmptyBody    = errors.New("template body is empty")
)

// Dispatcher runs bulk campaigns over a shared connector.
type Dispatcher struct {
	conn  connector.Connector
	state *connector.StateTracker
	fetch FetchFunc
	opts  Options
}

// NewDispatcher creates a dispatcher. fetch may be nil when templates never
// carry media.
func NewDispatcher(conn connector.Connector, state *connector.StateTracker, fetch FetchFunc, opts Options) *Dispatcher {
	return &Dispatcher{conn: conn, state: state, fetch: fetch, opts: opts}
}

// Start validates preconditions and begins the campaign, returning the
// progress stream. The stream is single-consumer, order-preserving, and
// closed after the final Complete snapshot. Cancelling ctx stops the run at
// the next contact boundary — a send already in flight finishes first.
//
// delayOverride, when non-nil, replaces the configured inter-send range for
// this campaign only.
func (d *Dispatcher) Start(ctx context.Context, tmpl Template, contacts []Contact, delayOverride *[2]time.Duration) (<-chan Snapshot, error) {
	if d.conn == nil {
		return nil, ErrNoConnector
	}
	if d.state != nil && !d.state.Connected() {
		return nil, ErrNotConnected
	}
	if len(contacts) == 0 {
		return nil, ErrNoContacts
	}
	if tmpl.Body == "" {
		return nil, ErrEmptyBody
	}

	delayMin, delayMax := d.opts.DelayMin, d.opts.DelayMax
	if delayOverride != nil {
		delayMin, delayMax = delayOverride[0], delayOverride[1]
	}
	if delayMax < delayMin {
		return nil, fmt.Errorf("inter-send delay range inverted: %s > %s", delayMin, delayMax)
	}

	// Buffered for the whole run so a departed consumer never blocks the
	// loop; the pacing delay keeps production far below any consumption rate.
	ch := make(chan Snapshot, len(contacts)+1)
	go d.run(ctx, tmpl, contacts, delayMin, delayMax, ch)
	return ch, nil
}

func (d *Dispatcher) run(ctx context.Context, tmpl Template, contacts []Contact, delayMin, delayMax time.Duration, ch chan<- Snapshot) {
	defer close(ch)

	// Resolve media exactly once; a failed fetch degrades the whole run to
	// text-only rather than aborting it.
	var media *connector.Media
	if tmpl.MediaURL != "" && d.fetch != nil {
		m, err := d.fetch(ctx, tmpl.MediaURL)
		if err != nil {
			logger.WarnCF("campaign", "Media pre-fetch failed, sending text only", map[string]interface{}{
				"template": tmpl.Name,
				"url":      tmpl.MediaURL,
				"error":    err.Error(),
			})
		} else {
			media = m
			logger.InfoCF("campaign", "Template media cached for bulk sending", map[string]interface{}{
				"template": tmpl.Name,
				"bytes":    len(m.Data),
			})
		}
	}

	total := len(contacts)
	sent, failed := 0, 0

	for i, contact := range contacts {
		if ctx.Err() != nil {
			logger.InfoCF("campaign", "Campaign cancelled", map[string]interface{}{
				"sent": sent, "failed": failed, "total": total,
			})
			break
		}

		sendErr := d.sendOne(ctx, tmpl, contact, media)
		snap := Snapshot{
			Total:   total,
			Current: contact.Label(),
		}
		if sendErr != nil {
			failed++
			snap.LastError = fmt.Sprintf("Failed: %s", contact.Label())
			logger.ErrorCF("campaign", "Send failed", map[string]interface{}{
				"contact": contact.Label(),
				"error":   sendErr.Error(),
			})
		} else {
			sent++
		}
		snap.Sent, snap.Failed = sent, failed
		snap.Percentage = percentage(sent+failed, total)
		ch <- snap

		// Pacing is mandatory even after a failure — skipping it on errors
		// produces exactly the bursty pattern the delay exists to avoid.
		if i < total-1 {
			sleepOrDone(ctx, between(delayMin, delayMax))
		}
	}

	// Final snapshot: Total always reflects the full list, so a cancelled
	// run is visible as Sent+Failed < Total.
	ch <- Snapshot{
		Sent:       sent,
		Failed:     failed,
		Total:      total,
		Percentage: percentage(sent+failed, total),
		Complete:   true,
	}
}

// sendOne delivers the rendered template to a single contact. Typing
// indicator failures are logged and ignored; everything else is the
// contact's failure.
func (d *Dispatcher) sendOne(ctx context.Context, tmpl Template, contact Contact, media *connector.Media) error {
	digits, err := NormalizePhone(contact.destination(), d.opts.CountryCode, d.opts.DomesticDigits)
	if err != nil {
		return err
	}
	chatID, err := d.conn.ResolveChat(ctx, digits)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", digits, err)
	}

	if err := d.conn.SetTyping(ctx, chatID); err != nil {
		logger.WarnCF("campaign", "Could not show typing indicator", map[string]interface{}{
			"contact": contact.Label(),
			"error":   err.Error(),
		})
	} else {
		sleepOrDone(ctx, d.opts.TypingDwell)
	}

	body := contact.Render(tmpl.Body)
	if media != nil {
		return d.conn.SendMedia(ctx, chatID, media, body)
	}
	return d.conn.SendText(ctx, chatID, body)
}

func percentage(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}

func between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min)
}

// sleepOrDone sleeps for d but wakes early on cancellation; the loop's next
// boundary check handles the actual stop.
func sleepOrDone(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
