package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/autommensor/wabot/pkg/campaign"
	"github.com/autommensor/wabot/pkg/events"
	"github.com/autommensor/wabot/pkg/logger"
	"github.com/autommensor/wabot/pkg/store"
)

type bulkSendRequest struct {
	TemplateID    string             `json:"template_id"`
	ContactListID string             `json:"contact_list_id,omitempty"`
	Contacts      []campaign.Contact `json:"contacts,omitempty"`
	DelayMinMs    int64              `json:"delay_min_ms,omitempty"`
	DelayMaxMs    int64              `json:"delay_max_ms,omitempty"`
}

// handleBulkSend validates the request, starts the campaign, and streams
// progress snapshots over SSE until the run completes or the client goes
// away. Client disconnect cancels the run at the next contact boundary.
func (s *Server) handleBulkSend(w http.ResponseWriter, r *http.Request) {
	var req bulkSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	stored, err := s.store.Template(r.Context(), req.TemplateID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	tmpl := campaign.Template{
		ID:       stored.ID,
		Name:     stored.Name,
		Body:     stored.Body,
		MediaURL: stored.MediaURL,
	}

	contacts := req.Contacts
	if len(contacts) == 0 && req.ContactListID != "" {
		list, err := s.store.ContactList(r.Context(), req.ContactListID)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "contact list not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		contacts = list.Contacts
	}

	var delayOverride *[2]time.Duration
	if req.DelayMinMs > 0 && req.DelayMaxMs > 0 {
		delayOverride = &[2]time.Duration{
			time.Duration(req.DelayMinMs) * time.Millisecond,
			time.Duration(req.DelayMaxMs) * time.Millisecond,
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// The request context is the campaign's lifetime: a departing consumer
	// cancels the run. The cancel endpoint shares the same CancelFunc.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	stream, err := s.dispatcher.Start(ctx, tmpl, contacts, delayOverride)
	if err != nil {
		switch {
		case errors.Is(err, campaign.ErrNoContacts):
			writeError(w, http.StatusBadRequest, "contact list is empty")
		case errors.Is(err, campaign.ErrNotConnected), errors.Is(err, campaign.ErrNoConnector):
			writeError(w, http.StatusBadRequest, "messaging platform not connected")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	campaignID := uuid.NewString()
	s.registerCampaign(campaignID, cancel)
	defer s.unregisterCampaign(campaignID)

	if err := s.publisher.Publish(ctx, events.KeyCampaignStarted, events.CampaignStarted{
		CampaignID: campaignID,
		Template:   tmpl.Name,
		Total:      len(contacts),
	}); err != nil {
		logger.WarnCF("api", "Campaign event publish failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	setupSSEHeaders(w)
	writeSSEChunk(w, flusher, map[string]string{"campaign_id": campaignID})

	var last campaign.Snapshot
	for snap := range stream {
		last = snap
		writeSSEChunk(w, flusher, snap)
		s.hub.Broadcast("campaign.progress", snap)
	}

	finished := events.CampaignFinished{
		CampaignID: campaignID,
		Sent:       last.Sent,
		Failed:     last.Failed,
		Total:      last.Total,
		Cancelled:  last.Sent+last.Failed < last.Total,
	}
	// Request context may already be cancelled; publish must still go out.
	if err := s.publisher.Publish(context.Background(), events.KeyCampaignFinished, finished); err != nil {
		logger.WarnCF("api", "Campaign event publish failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	logger.InfoCF("api", "Campaign finished", map[string]interface{}{
		"campaign_id": campaignID,
		"sent":        last.Sent,
		"failed":      last.Failed,
		"total":       last.Total,
		"cancelled":   finished.Cancelled,
	})
}

func (s *Server) handleCancelCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.cancelCampaign(id) {
		writeError(w, http.StatusNotFound, "no running campaign with that id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
