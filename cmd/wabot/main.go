// wabot — conversational auto-replies and bulk outbound campaigns over a
// messaging platform, driven from a web dashboard.
//
// The vendor transport attaches through the connector.Connector interface and
// feeds inbound traffic into the sequencer; without one, the console dry-run
// transport is used so the dashboard and campaigns work end to end locally.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/autommensor/wabot/pkg/api"
	"github.com/autommensor/wabot/pkg/campaign"
	"github.com/autommensor/wabot/pkg/config"
	"github.com/autommensor/wabot/pkg/connector"
	"github.com/autommensor/wabot/pkg/events"
	"github.com/autommensor/wabot/pkg/logger"
	"github.com/autommensor/wabot/pkg/respond"
	"github.com/autommensor/wabot/pkg/sched"
	"github.com/autommensor/wabot/pkg/sequencer"
	"github.com/autommensor/wabot/pkg/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "wabot:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	state := connector.NewStateTracker()
	defer state.Close()
	conn := connector.NewConsole(state)

	var provider respond.Provider
	switch cfg.AIProvider {
	case "anthropic":
		provider = respond.NewAnthropicProvider(cfg.AIKey)
	default:
		provider = respond.NewOpenAIProvider(cfg.AIKey, cfg.AIBaseURL)
	}
	responder := respond.New(provider, cfg.AIModel, cfg.BusinessName, st)

	seq := sequencer.New(conn, responder, sequencer.Delays{
		ReadMin:   cfg.ReadDelayMin,
		ReadMax:   cfg.ReadDelayMax,
		PerChar:   cfg.TypingPerChar,
		TypingMin: cfg.TypingMin,
		TypingMax: cfg.TypingMax,
	})

	// Inbound feed. A vendor transport would call seq.Enqueue from its message
	// callback; the console transport reads messages from the terminal.
	go func() {
		err := conn.RunREPL(ctx, func(chatID, body string) {
			seq.Enqueue(sequencer.Event{ChatID: chatID, Body: body, ReceivedAt: time.Now()})
		})
		if err != nil {
			logger.WarnCF("main", "Console input unavailable", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	dispatcher := campaign.NewDispatcher(conn, state, connector.FetchMedia, campaign.Options{
		DelayMin:       cfg.SendDelayMin,
		DelayMax:       cfg.SendDelayMax,
		TypingDwell:    cfg.TypingDwell,
		CountryCode:    cfg.CountryCode,
		DomesticDigits: cfg.DomesticDigits,
	})

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		publisher, err = events.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return fmt.Errorf("connect event broker: %w", err)
		}
		defer publisher.Close()
	}

	scheduler := sched.New(scheduledRun(st, dispatcher, publisher), 0)
	go scheduler.Run(ctx)

	server := api.NewServer(cfg, st, dispatcher, state, publisher, scheduler)
	return server.Start(ctx)
}

// scheduledRun loads a job's template and contact list and drains the
// campaign's progress stream into the log.
func scheduledRun(st *store.Store, dispatcher *campaign.Dispatcher, publisher events.Publisher) sched.RunFunc {
	return func(ctx context.Context, job sched.Job) {
		stored, err := st.Template(ctx, job.TemplateID)
		if err != nil {
			logger.ErrorCF("sched", "Scheduled campaign template missing", map[string]interface{}{
				"job": job.ID, "template": job.TemplateID, "error": err.Error(),
			})
			return
		}
		list, err := st.ContactList(ctx, job.ContactListID)
		if err != nil {
			logger.ErrorCF("sched", "Scheduled campaign contact list missing", map[string]interface{}{
				"job": job.ID, "list": job.ContactListID, "error": err.Error(),
			})
			return
		}

		tmpl := campaign.Template{
			ID:       stored.ID,
			Name:     stored.Name,
			Body:     stored.Body,
			MediaURL: stored.MediaURL,
		}
		stream, err := dispatcher.Start(ctx, tmpl, list.Contacts, nil)
		if err != nil {
			logger.ErrorCF("sched", "Scheduled campaign rejected", map[string]interface{}{
				"job": job.ID, "error": err.Error(),
			})
			return
		}

		if err := publisher.Publish(ctx, events.KeyCampaignStarted, events.CampaignStarted{
			CampaignID: job.ID,
			Template:   tmpl.Name,
			Total:      len(list.Contacts),
		}); err != nil {
			logger.WarnCF("sched", "Campaign event publish failed", map[string]interface{}{"error": err.Error()})
		}

		var last campaign.Snapshot
		for snap := range stream {
			last = snap
		}
		if err := publisher.Publish(context.Background(), events.KeyCampaignFinished, events.CampaignFinished{
			CampaignID: job.ID,
			Sent:       last.Sent,
			Failed:     last.Failed,
			Total:      last.Total,
			Cancelled:  last.Sent+last.Failed < last.Total,
		}); err != nil {
			logger.WarnCF("sched", "Campaign event publish failed", map[string]interface{}{"error": err.Error()})
		}
		logger.InfoCF("sched", "Scheduled campaign finished", map[string]interface{}{
			"job": job.ID, "sent": last.Sent, "failed": last.Failed, "total": last.Total,
		})
	}
}
