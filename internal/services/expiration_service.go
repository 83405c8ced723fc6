package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/schoolhub/booking-backend/internal/metrics"
	"github.com/schoolhub/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultSweepSchedule runs the expiry sweep at the top of every minute.
// Cron format: second minute hour day month weekday
const DefaultSweepSchedule = "0 * * * * *"

// SweepResult summarises one expiry sweep
type SweepResult struct {
	Expired  int           `json:"expired"`
	Errors   int           `json:"errors"`
	Duration time.Duration `json:"duration"`
	RanAt    time.Time     `json:"ranAt"`
}

// ExpirationService cancels PENDING bookings whose hold window has lapsed.
// Availability never depends on it: lapsed bookings are already excluded at
// read time. The sweep only makes the stored status match.
type ExpirationService struct {
	cron      *cron.Cron
	bookings  BookingStore
	lifecycle *BookingService
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	schedule  string
	batchSize int

	mu      sync.Mutex
	lastRun *SweepResult
	entryID cron.EntryID
}

// NewExpirationService creates a new ExpirationService
func NewExpirationService(
	bookings BookingStore,
	lifecycle *BookingService,
	logger *logrus.Logger,
	m *metrics.Metrics,
	schedule string,
	batchSize int,
) *ExpirationService {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if batchSize <= 0 {
		batchSize = 200
	}

	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &ExpirationService{
		cron:      c,
		bookings:  bookings,
		lifecycle: lifecycle,
		logger:    logger,
		metrics:   m,
		schedule:  schedule,
		batchSize: batchSize,
	}
}

// Start schedules the sweep
func (s *ExpirationService) Start() error {
	id, err := s.cron.AddFunc(s.schedule, s.sweepJob)
	if err != nil {
		return fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}
	s.entryID = id

	s.cron.Start()
	s.logger.WithField("schedule", s.schedule).Info("✓ Expiry sweep scheduled")
	return nil
}

// Stop waits for a running sweep to finish and stops the scheduler
func (s *ExpirationService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("✓ Expiry sweep stopped")
}

func (s *ExpirationService) sweepJob() {
	result := s.RunOnce(context.Background())
	if result.Expired > 0 || result.Errors > 0 {
		s.logger.WithFields(logrus.Fields{
			"expired":  result.Expired,
			"errors":   result.Errors,
			"duration": result.Duration.String(),
		}).Info("[CRON] Expiry sweep finished")
	}
}

// RunOnce runs a single sweep. Bookings that fail to expire are logged and
// picked up again by the next run.
func (s *ExpirationService) RunOnce(ctx context.Context) SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	now := s.lifecycle.Now()
	result := SweepResult{RanAt: now}

	for {
		lapsed, err := s.bookings.ListLapsedPending(ctx, now, s.batchSize)
		if err != nil {
			result.Errors++
			s.logger.WithError(err).Error("Failed to list lapsed bookings")
			break
		}

		progressed := 0
		for _, b := range lapsed {
			expired, err := s.expire(ctx, b)
			if err != nil {
				result.Errors++
				continue
			}
			progressed++
			if expired {
				result.Expired++
			}
		}

		// Stop on a short batch, or when a full batch made no progress
		if len(lapsed) < s.batchSize || progressed == 0 {
			break
		}
	}

	result.Duration = time.Since(start)
	s.metrics.Sweep(result.Expired, result.Errors, result.Duration)
	s.lastRun = &result
	return result
}

func (s *ExpirationService) expire(ctx context.Context, b *models.Booking) (bool, error) {
	_, err := s.lifecycle.Expire(ctx, b.ID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, models.ErrInvalidTransition):
		// Paid or cancelled since it was listed
		return false, nil
	}

	s.logger.WithError(err).WithField("booking_id", b.ID).Error("Failed to expire booking")
	return false, err
}

// Status returns the scheduler state and the last sweep result
func (s *ExpirationService) Status() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	s.mu.Lock()
	lastRun := s.lastRun
	s.mu.Unlock()

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
		"schedule":  s.schedule,
		"last_run":  lastRun,
	}
}
