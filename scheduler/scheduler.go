package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"hk_bids/models"
)

// ReferenceWarmer prefetches the reference sheets.
type ReferenceWarmer interface {
	Warm(ctx context.Context) ([]models.Row, error)
}

// ListingWarmer prefetches listing pages for rows.
type ListingWarmer interface {
	Warm(ctx context.Context, rows []models.Row) int
}

// Scheduler keeps the sheet and listing caches warm so vendor sessions
// rarely wait on a cold fetch.
type Scheduler struct {
	schedule  string
	reference ReferenceWarmer
	listings  ListingWarmer
	cron      *cron.Cron

	mu      sync.Mutex
	running bool
}

// New builds a scheduler. listings may be nil when enrichment is off.
func New(schedule string, reference ReferenceWarmer, listings ListingWarmer) *Scheduler {
	return &Scheduler{
		schedule:  schedule,
		reference: reference,
		listings:  listings,
		cron:      cron.New(),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.schedule == "" {
		zap.S().Info("Scheduler: no warm schedule configured")
		return nil
	}

	zap.S().Infof("Scheduler: warming caches on %q", s.schedule)
	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.TriggerNow(ctx); err != nil {
			zap.S().Warnf("Scheduler: warm run error: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// TriggerNow runs one warm pass. Overlapping runs are skipped.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		zap.S().Info("Scheduler: warm run already in progress, skipping")
		return nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	rows, err := s.reference.Warm(ctx)
	if err != nil {
		return err
	}
	if s.listings != nil {
		n := s.listings.Warm(ctx, rows)
		zap.S().Infof("Scheduler: warmed %d listings", n)
	}
	return nil
}
