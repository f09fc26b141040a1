package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"hk_bids/models"
)

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "bids.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SessionRoundTrip(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()

	missing, err := store.LoadSession(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown session, got %+v %v", missing, err)
	}

	rec := &models.SessionRecord{ID: "s1", State: "AWAITING_COMPANY", BatchID: "B1", Language: "es"}
	if err := store.SaveSession(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	rec.State = "SUBMITTED"
	rec.Company = "Acme Clean"
	rec.SubmittedAt = &now
	rec.SubmissionID = "sub-1"
	if err := store.SaveSession(ctx, rec); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.LoadSession(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.State != "SUBMITTED" || got.Company != "Acme Clean" || got.BatchID != "B1" || got.Language != "es" {
		t.Fatalf("unexpected session %+v", got)
	}
	if got.SubmittedAt == nil || !got.SubmittedAt.Equal(now) {
		t.Fatalf("unexpected submitted_at %v", got.SubmittedAt)
	}
}

func TestSQLiteStore_SubmissionLedger(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()

	ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	sub := models.NewSubmission("s1", []models.Bid{
		{UnitCode: "U2", Company: "Acme Clean", Amount: 50, Timestamp: ts, BidID: "B1"},
	})
	if err := store.RecordSubmission(ctx, sub); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := store.GetSubmission(ctx, sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Company != "Acme Clean" || got.Total != 50 || len(got.Bids) != 1 || got.Bids[0].UnitCode != "U2" {
		t.Fatalf("unexpected submission %+v", got)
	}

	none, err := store.GetSubmission(ctx, uuid.New())
	if err != nil || none != nil {
		t.Fatalf("expected nil for unknown id, got %+v %v", none, err)
	}

	list, err := store.ListSubmissions(ctx, "B1", 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected 1 submission for B1, got %d %v", len(list), err)
	}
	other, _ := store.ListSubmissions(ctx, "B2", 10)
	if len(other) != 0 {
		t.Fatalf("expected no submissions for B2")
	}
}

func TestSQLiteStore_SessionLog(t *testing.T) {
	store := newSQLite(t)
	store.Log("s1", models.LogLevelInfo, "access granted")
	store.Log("s1", models.LogLevelWarn, "no bids placed")
	store.Log("s2", models.LogLevelInfo, "other")

	events, err := store.GetSessionLogs("s1")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if len(events) != 2 || events[1].Level != models.LogLevelWarn {
		t.Fatalf("unexpected events %+v", events)
	}
}
