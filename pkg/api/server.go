// Package api serves the dashboard API: connector status, template and
// business-knowledge CRUD, contact uploads, bulk-send streaming, schedules,
// and a WebSocket feed of live events.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/autommensor/wabot/pkg/campaign"
	"github.com/autommensor/wabot/pkg/config"
	"github.com/autommensor/wabot/pkg/connector"
	"github.com/autommensor/wabot/pkg/events"
	"github.com/autommensor/wabot/pkg/logger"
	"github.com/autommensor/wabot/pkg/sched"
	"github.com/autommensor/wabot/pkg/store"
)

// Server is the dashboard API server.
type Server struct {
	cfg        *config.Config
	store      *store.Store
	dispatcher *campaign.Dispatcher
	state      *connector.StateTracker
	publisher  events.Publisher
	scheduler  *sched.Service
	hub        *Hub

	startTime  time.Time
	httpServer *http.Server

	mu      sync.Mutex
	running map[string]context.CancelFunc // campaign id -> cancel
}

// NewServer wires the API over the given collaborators. scheduler may be nil.
func NewServer(
	cfg *config.Config,
	st *store.Store,
	dispatcher *campaign.Dispatcher,
	state *connector.StateTracker,
	publisher events.Publisher,
	scheduler *sched.Service,
) *Server {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Server{
		cfg:        cfg,
		store:      st,
		dispatcher: dispatcher,
		state:      state,
		publisher:  publisher,
		scheduler:  scheduler,
		hub:        NewHub(),
		startTime:  time.Now(),
		running:    make(map[string]context.CancelFunc),
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(authMiddleware(s.cfg.APIKey))

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/qr", s.handleQR)

	r.Route("/api/templates", func(r chi.Router) {
		r.Get("/", s.handleListTemplates)
		r.Post("/", s.handleCreateTemplate)
		r.Put("/{id}", s.handleUpdateTemplate)
		r.Delete("/{id}", s.handleDeleteTemplate)
	})

	r.Get("/api/training", s.handleGetTraining)
	r.Post("/api/training", s.handleSaveTraining)

	r.Post("/api/contacts/csv", s.handleUploadCSV)
	r.Get("/api/contact-lists", s.handleListContactLists)
	r.Get("/api/contact-lists/{id}", s.handleGetContactList)

	r.Post("/api/bulk/send", s.handleBulkSend)
	r.Post("/api/campaigns/{id}/cancel", s.handleCancelCampaign)

	if s.scheduler != nil {
		r.Get("/api/schedules", s.handleListSchedules)
		r.Post("/api/schedules", s.handleCreateSchedule)
		r.Delete("/api/schedules/{id}", s.handleDeleteSchedule)
	}

	r.Get("/api/ws", s.hub.HandleWebSocket)

	return r
}

// Start runs the hub, the connector-state bridge, and the HTTP listener.
// Blocks until the listener stops; ctx cancellation shuts it down.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)
	go s.bridgeConnectorState(ctx)

	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming endpoints manage their own lifetime
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	logger.InfoCF("api", "Dashboard server listening", map[string]interface{}{
		"addr": s.cfg.Addr,
	})
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// bridgeConnectorState forwards lifecycle transitions to WebSocket clients.
func (s *Server) bridgeConnectorState(ctx context.Context) {
	if s.state == nil {
		return
	}
	sub := s.state.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-sub:
			if !ok {
				return
			}
			s.hub.Broadcast("connector.state", st)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.state.Current()
	status := map[string]interface{}{
		"connected":      st.Status == connector.StatusConnected,
		"state":          st.Status,
		"has_qr":         st.QR != "",
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"campaigns":      s.runningCount(),
	}
	if s.scheduler != nil {
		status["sched"] = s.scheduler.Status()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	st := s.state.Current()
	if st.Status != connector.StatusQRChallenge {
		writeJSON(w, http.StatusOK, map[string]interface{}{"qr": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"qr": st.QR})
}

func (s *Server) runningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

func (s *Server) registerCampaign(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.running[id] = cancel
	s.mu.Unlock()
}

func (s *Server) unregisterCampaign(id string) {
	s.mu.Lock()
	delete(s.running, id)
	s.mu.Unlock()
}

func (s *Server) cancelCampaign(id string) bool {
	s.mu.Lock()
	cancel, ok := s.running[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}
