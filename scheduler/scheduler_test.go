package scheduler

import (
	"context"
	"errors"
	"testing"

	"hk_bids/models"
)

type fakeReference struct {
	calls int
	err   error
}

func (f *fakeReference) Warm(ctx context.Context) ([]models.Row, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []models.Row{{Request: models.BidRequest{UnitCode: "U1"}}}, nil
}

type fakeListings struct {
	rows int
}

func (f *fakeListings) Warm(ctx context.Context, rows []models.Row) int {
	f.rows += len(rows)
	return len(rows)
}

func TestTriggerNow(t *testing.T) {
	ref := &fakeReference{}
	lst := &fakeListings{}
	s := New("", ref, lst)

	if err := s.TriggerNow(context.Background()); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if ref.calls != 1 || lst.rows != 1 {
		t.Fatalf("expected reference and listing warm, got %d %d", ref.calls, lst.rows)
	}
}

func TestTriggerNow_ReferenceErrorSkipsListings(t *testing.T) {
	ref := &fakeReference{err: models.ErrGatewayUnavailable}
	lst := &fakeListings{}
	s := New("", ref, lst)

	if err := s.TriggerNow(context.Background()); !errors.Is(err, models.ErrGatewayUnavailable) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if lst.rows != 0 {
		t.Fatalf("listings must not warm without rows")
	}
}

func TestStart_InvalidSpec(t *testing.T) {
	s := New("not a cron", &fakeReference{}, nil)
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected invalid cron error")
	}
}

func TestStart_EmptySpecIsNoop(t *testing.T) {
	s := New("", &fakeReference{}, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	s.Stop()
}
