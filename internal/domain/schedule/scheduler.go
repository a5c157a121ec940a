// Package schedule runs cron-based recurring deliveries on top of the batch
// coordinator.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Conte777/TgFleet/config"
	"github.com/Conte777/TgFleet/internal/domain"
	"github.com/Conte777/TgFleet/internal/domain/schedule/entities"
	"github.com/Conte777/TgFleet/internal/infrastructure/metrics"
	"github.com/Conte777/TgFleet/internal/infrastructure/storage"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrInvalidCron      = errors.New("invalid cron expression")
	ErrNoPayload        = errors.New("schedule needs a message or a template")
)

// Fanout is the slice of the batch coordinator the scheduler drives.
type Fanout interface {
	SendMessage(ctx context.Context, accountIDs []string, target, text string) domain.BatchReport
	SendTemplate(ctx context.Context, accountIDs []string, target, templateID string) domain.BatchReport
}

// Scheduler owns the schedule table and the tick loop that fires due jobs.
type Scheduler struct {
	store   *storage.Store
	fanout  Fanout
	metrics *metrics.Metrics

	mu        sync.Mutex
	schedules map[string]*entities.Schedule

	tick   time.Duration
	now    func() time.Time
	cancel context.CancelFunc
	done   chan struct{}

	logger zerolog.Logger
}

func NewScheduler(cfg *config.SchedulerConfig, store *storage.Store, fanout Fanout, m *metrics.Metrics, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		store:     store,
		fanout:    fanout,
		metrics:   m,
		schedules: make(map[string]*entities.Schedule),
		tick:      cfg.TickInterval,
		now:       time.Now,
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}
	if err := store.Load(&s.schedules); err != nil {
		return nil, err
	}
	return s, nil
}

// parseCron validates a five-field cron expression.
func parseCron(expr string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCron, err)
	}
	return sched, nil
}

// Add registers a new schedule and computes its first run. An empty account
// list fans every fire out to the whole fleet.
func (s *Scheduler) Add(name string, accountIDs []string, target, cronExpr, message, templateID string) (*entities.Schedule, error) {
	spec, err := parseCron(cronExpr)
	if err != nil {
		return nil, err
	}
	if (message == "") == (templateID == "") {
		return nil, ErrNoPayload
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := spec.Next(s.now())
	sched := &entities.Schedule{
		ID:         uuid.NewString(),
		Name:       name,
		AccountIDs: append([]string(nil), accountIDs...),
		Target:     target,
		Cron:       cronExpr,
		Message:    message,
		TemplateID: templateID,
		Enabled:    true,
		CreatedAt:  s.now(),
		NextRun:    &next,
	}
	s.schedules[sched.ID] = sched

	if err := s.store.Save(s.schedules); err != nil {
		delete(s.schedules, sched.ID)
		return nil, err
	}
	s.logger.Info().Str("schedule_id", sched.ID).Str("cron", cronExpr).Msg("schedule added")
	cp := *sched
	return &cp, nil
}

// Remove deletes a schedule.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[id]; !ok {
		return ErrScheduleNotFound
	}
	delete(s.schedules, id)
	return s.store.Save(s.schedules)
}

// Toggle flips a schedule's enabled flag. Re-enabling recomputes the next
// run from now, never backfilling missed fires.
func (s *Scheduler) Toggle(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[id]
	if !ok {
		return ErrScheduleNotFound
	}
	sched.Enabled = enabled
	if enabled {
		spec, err := parseCron(sched.Cron)
		if err != nil {
			return err
		}
		next := spec.Next(s.now())
		sched.NextRun = &next
	}
	return s.store.Save(s.schedules)
}

// Get returns a copy of one schedule.
func (s *Scheduler) Get(id string) (*entities.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	cp := *sched
	return &cp, nil
}

// List returns every schedule sorted by creation time, oldest first.
func (s *Scheduler) List() []entities.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entities.Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		out = append(out, *sched)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Stats summarizes the schedule table.
func (s *Scheduler) Stats() entities.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st entities.Stats
	for _, sched := range s.schedules {
		st.Total++
		if sched.Enabled {
			st.Enabled++
		}
		st.TotalRuns += sched.RunCount
		st.TotalFail += sched.FailCount
	}
	return st
}

// Start launches the tick loop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx)
	s.logger.Info().Dur("tick", s.tick).Msg("scheduler started")
}

// Stop cancels the loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick fires every enabled schedule whose next run falls inside the due
// window: at most one tick in the past. A schedule staler than that was
// missed across downtime; it is skipped and left for its next natural fire,
// never backfilled.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due, stale []*entities.Schedule
	for _, sched := range s.schedules {
		if !sched.Enabled || sched.NextRun == nil || sched.NextRun.After(now) {
			continue
		}
		if now.Sub(*sched.NextRun) >= s.tick {
			stale = append(stale, sched)
			continue
		}
		due = append(due, sched)
	}
	// A stale skip leaves the schedule untouched; the bookkeeping, NextRun
	// included, only moves on an actual fire.
	for _, sched := range stale {
		s.logger.Warn().Str("schedule_id", sched.ID).Msg("stale schedule skipped")
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	dirty := false
	s.mu.Unlock()

	for _, sched := range due {
		if ctx.Err() != nil {
			return
		}
		s.fire(ctx, sched, now)
		dirty = true
	}

	if dirty {
		s.mu.Lock()
		if err := s.store.Save(s.schedules); err != nil {
			s.logger.Error().Err(err).Msg("persist schedules")
		}
		s.mu.Unlock()
	}
}

// fire runs one due schedule. Failures count against the schedule; the next
// run advances either way.
func (s *Scheduler) fire(ctx context.Context, sched *entities.Schedule, now time.Time) {
	start := s.now()

	ids := sched.AccountIDs
	target := sched.Target
	if target == entities.TargetAll {
		target = entities.TargetSelf
	}

	var report domain.BatchReport
	if sched.TemplateID != "" {
		report = s.fanout.SendTemplate(ctx, ids, target, sched.TemplateID)
	} else {
		report = s.fanout.SendMessage(ctx, ids, target, sched.Message)
	}

	s.mu.Lock()
	sched.LastRun = &now
	sched.RunCount++
	if report.FailCount > 0 {
		sched.FailCount++
	}
	if spec, err := parseCron(sched.Cron); err == nil {
		next := spec.Next(now)
		sched.NextRun = &next
	}
	s.mu.Unlock()

	s.metrics.ScheduleRunsTotal.Inc()
	s.metrics.ScheduleDuration.Observe(time.Since(start).Seconds())
	s.logger.Info().
		Str("schedule_id", sched.ID).
		Int("ok", report.SuccessCount).
		Int("failed", report.FailCount).
		Msg("schedule fired")
}
