// Package sched launches stored campaigns on cron schedules. Expressions are
// evaluated once a minute; a due job starts its campaign in the background.
package sched

import (
	"context"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/autommensor/wabot/pkg/logger"
)

// Job binds a cron expression to a stored template and contact list.
type Job struct {
	ID            string    `json:"id"`
	Expr          string    `json:"expr"`
	TemplateID    string    `json:"template_id"`
	ContactListID string    `json:"contact_list_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// RunFunc launches the campaign for a due job. It is called on its own
// goroutine and should block until the run finishes.
type RunFunc func(ctx context.Context, job Job)

// Service evaluates job schedules and fires due runs.
type Service struct {
	run      RunFunc
	interval time.Duration

	mu   sync.RWMutex
	jobs map[string]Job
}

// New creates a scheduler; interval <= 0 defaults to one minute.
func New(run RunFunc, interval time.Duration) *Service {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Service{
		run:      run,
		interval: interval,
		jobs:     make(map[string]Job),
	}
}

// Add registers a schedule after validating the cron expression.
func (s *Service) Add(expr, templateID, contactListID string) (Job, error) {
	if err := validateExpr(expr); err != nil {
		return Job{}, err
	}
	job := Job{
		ID:            uuid.NewString(),
		Expr:          expr,
		TemplateID:    templateID,
		ContactListID: contactListID,
		CreatedAt:     time.Now().UTC(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job, nil
}

func validateExpr(expr string) error {
	g := gronx.New()
	if !g.IsValid(expr) {
		return &InvalidExprError{Expr: expr}
	}
	return nil
}

// InvalidExprError reports a rejected cron expression.
type InvalidExprError struct{ Expr string }

func (e *InvalidExprError) Error() string { return "invalid cron expression: " + e.Expr }

// Remove unregisters a schedule. Reports whether it existed.
func (s *Service) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	return ok
}

// List returns all registered jobs.
func (s *Service) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out
}

// Run evaluates schedules until ctx is cancelled. Call in a goroutine.
func (s *Service) Run(ctx context.Context) {
	logger.InfoC("sched", "Campaign scheduler started")
	g := gronx.New()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoC("sched", "Campaign scheduler stopped")
			return
		case now := <-ticker.C:
			for _, job := range s.List() {
				due, err := g.IsDue(job.Expr, now)
				if err != nil {
					logger.WarnCF("sched", "Schedule evaluation failed", map[string]interface{}{
						"job":   job.ID,
						"expr":  job.Expr,
						"error": err.Error(),
					})
					continue
				}
				if due {
					logger.InfoCF("sched", "Scheduled campaign due", map[string]interface{}{
						"job":      job.ID,
						"template": job.TemplateID,
					})
					go s.run(ctx, job)
				}
			}
		}
	}
}

// Status summarizes the scheduler for the dashboard.
func (s *Service) Status() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"jobs":     len(s.jobs),
		"interval": s.interval.String(),
	}
}
