// Package sequencer serializes inbound event handling per conversation.
//
// Each conversation gets its own FIFO queue drained by a single worker
// goroutine, so replies within one chat never race or reorder while unrelated
// chats proceed concurrently. The worker is spawned on first enqueue and its
// queue record is discarded as soon as the queue drains, so idle conversations
// cost nothing.
package sequencer

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/autommensor/wabot/pkg/connector"
	"github.com/autommensor/wabot/pkg/logger"
)

// Event is one inbound message. Immutable once created; owned by the worker
// that dequeues it.
type Event struct {
	ChatID     string
	Body       string
	HasMedia   bool
	Media      *connector.Media
	ReceivedAt time.Time
}

// Delays are the conversational pacing parameters. Read simulates reading the
// inbound message; typing time is PerChar per reply character, clamped to
// [TypingMin, TypingMax].
type Delays struct {
	ReadMin   time.Duration
	ReadMax   time.Duration
	PerChar   time.Duration
	TypingMin time.Duration
	TypingMax time.Duration
}

// Replier produces the reply text for a non-command message. It must not
// return an error — failures surface as fallback text.
type Replier interface {
	Reply(ctx context.Context, userText string) string
}

// Outcome is the uniform result of processing one event. Failures are
// absorbed here and never propagate to other events.
type Outcome struct {
	ChatID string
	OK     bool
	Stage  string // "typing", "reply", "send"
	Err    error
}

// Sequencer dispatches inbound events with strict per-chat ordering.
type Sequencer struct {
	conn    connector.Connector
	replier Replier
	delays  Delays

	mu     sync.Mutex
	queues map[string]*chatQueue
	wg     sync.WaitGroup

	// OnResult, when set, observes the outcome of every processed event.
	// Called from worker goroutines.
	OnResult func(Outcome)
}

type chatQueue struct {
	pending []Event
}

// New creates a sequencer over the given transport and replier.
func New(conn connector.Connector, replier Replier, delays Delays) *Sequencer {
	return &Sequencer{
		conn:    conn,
		replier: replier,
		delays:  delays,
		queues:  make(map[string]*chatQueue),
	}
}

// Enqueue appends the event to its conversation's queue and returns
// immediately. The first event for an idle conversation starts a worker.
func (s *Sequencer) Enqueue(ev Event) {
	s.mu.Lock()
	if q, ok := s.queues[ev.ChatID]; ok {
		q.pending = append(q.pending, ev)
		s.mu.Unlock()
		return
	}
	s.queues[ev.ChatID] = &chatQueue{}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.drain(ev.ChatID, ev)
}

// drain processes events for one conversation until its queue empties, then
// removes the queue record. Removal and the empty check happen under the same
// lock as Enqueue, so an event arriving mid-drain is either picked up here or
// starts a fresh worker — never lost, never doubled.
func (s *Sequencer) drain(chatID string, first Event) {
	defer s.wg.Done()
	ev := first
	for {
		s.report(s.process(ev))

		s.mu.Lock()
		q := s.queues[chatID]
		if len(q.pending) == 0 {
			delete(s.queues, chatID)
			s.mu.Unlock()
			return
		}
		ev = q.pending[0]
		q.pending = q.pending[1:]
		s.mu.Unlock()
	}
}

// process runs the full pipeline for one event: reading delay, typing
// indicator, command or AI reply, typing time, send. There is no
// cancellation — once enqueued, an event runs to completion.
func (s *Sequencer) process(ev Event) Outcome {
	ctx := context.Background()

	sleepBetween(s.delays.ReadMin, s.delays.ReadMax)

	if err := s.conn.SetTyping(ctx, ev.ChatID); err != nil {
		// Best effort — a missing typing indicator never blocks the reply.
		logger.WarnCF("sequencer", "Typing indicator failed", map[string]interface{}{
			"chat_id": ev.ChatID,
			"error":   err.Error(),
		})
	}

	if handled, out := s.runCommand(ctx, ev); handled {
		return out
	}

	reply := s.replier.Reply(ctx, ev.Body)

	typing := clampDuration(time.Duration(len(reply))*s.delays.PerChar, s.delays.TypingMin, s.delays.TypingMax)
	time.Sleep(typing)

	if err := s.conn.SendText(ctx, ev.ChatID, reply); err != nil {
		return Outcome{ChatID: ev.ChatID, Stage: "send", Err: err}
	}
	return Outcome{ChatID: ev.ChatID, OK: true}
}

func (s *Sequencer) report(out Outcome) {
	if !out.OK {
		logger.ErrorCF("sequencer", "Event processing failed", map[string]interface{}{
			"chat_id": out.ChatID,
			"stage":   out.Stage,
			"error":   out.Err.Error(),
		})
	}
	if s.OnResult != nil {
		s.OnResult(out)
	}
}

// ActiveQueues reports how many conversations currently hold a queue record.
func (s *Sequencer) ActiveQueues() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}

// Wait blocks until every worker spawned so far has drained. Events enqueued
// while waiting extend the wait.
func (s *Sequencer) Wait() {
	s.wg.Wait()
}

func sleepBetween(min, max time.Duration) {
	if max <= 0 {
		return
	}
	d := min
	if max > min {
		d += rand.N(max - min)
	}
	time.Sleep(d)
}

func clampDuration(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}
