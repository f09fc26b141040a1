package session

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hk_bids/models"
)

type recordingAppender struct {
	mu      sync.Mutex
	calls   int32
	batches [][]models.Bid
	err     error
	block   chan struct{}
}

func (a *recordingAppender) Append(ctx context.Context, sessionID string, bids []models.Bid) (*models.Submission, error) {
	atomic.AddInt32(&a.calls, 1)
	if a.block != nil {
		<-a.block
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	a.batches = append(a.batches, bids)
	return models.NewSubmission(sessionID, bids), nil
}

func collecting(t *testing.T, company, batchID string) *Session {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	s := New("sess-1", Options{Step: DefaultStep, Location: loc})
	s.Grant(batchID)
	if err := s.SetCompany(company); err != nil {
		t.Fatalf("set company: %v", err)
	}
	return s
}

func lines(units []string, amounts []float64) []Line {
	out := make([]Line, len(units))
	for i, code := range units {
		out[i] = Line{UnitCode: code, Amount: amounts[i]}
	}
	return out
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in      string
		step    float64
		want    float64
		wantErr bool
	}{
		{"", 5, 0, false},
		{"  ", 5, 0, false},
		{"50", 5, 50, false},
		{"$1,250", 5, 1250, false},
		{"12.346", 0, 12.35, false},
		{"12.5", 5, 0, true},
		{"-5", 5, 0, true},
		{"abc", 5, 0, true},
		{"NaN", 0, 0, true},
		{"Inf", 0, 0, true},
		{"0", 5, 0, false},
	}
	for _, c := range cases {
		got, err := ParseAmount(c.in, c.step)
		if c.wantErr {
			if !errors.Is(err, models.ErrInvalidBid) {
				t.Fatalf("ParseAmount(%q): expected ErrInvalidBid, got %v", c.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseAmount(%q): unexpected error %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseAmount(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSessionFlow(t *testing.T) {
	s := New("x", Options{Step: DefaultStep})
	if s.State() != StateAwaitingAccess {
		t.Fatalf("expected AWAITING_ACCESS, got %s", s.State())
	}
	if err := s.SetCompany("Acme"); !errors.Is(err, models.ErrAccessDenied) {
		t.Fatalf("expected access denied before grant, got %v", err)
	}

	s.Grant("")
	if s.State() != StateAwaitingCompany {
		t.Fatalf("expected AWAITING_COMPANY, got %s", s.State())
	}
	if err := s.SetCompany("   "); !errors.Is(err, models.ErrCompanyRequired) {
		t.Fatalf("expected company required, got %v", err)
	}
	if err := s.SetCompany(" Acme Clean "); err != nil {
		t.Fatalf("set company: %v", err)
	}
	if s.State() != StateCollectingBids || s.Company() != "Acme Clean" {
		t.Fatalf("unexpected state %s company %q", s.State(), s.Company())
	}
}

func TestSubmit_AcmeExample(t *testing.T) {
	s := collecting(t, "Acme Clean", "")
	app := &recordingAppender{}
	now := time.Date(2024, 3, 9, 20, 5, 0, 0, time.UTC)

	sub, err := s.Submit(context.Background(), lines([]string{"U1", "U2", "U3"}, []float64{50, 0, 75}), now, app)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if len(app.batches) != 1 || len(app.batches[0]) != 2 {
		t.Fatalf("expected one batch of 2 bids, got %v", app.batches)
	}
	b0, b1 := app.batches[0][0], app.batches[0][1]
	if b0.UnitCode != "U1" || b0.Amount != 50 || b1.UnitCode != "U3" || b1.Amount != 75 {
		t.Fatalf("unexpected bids %+v %+v", b0, b1)
	}
	if b0.Company != "Acme Clean" || b0.BidID != "" {
		t.Fatalf("unexpected bid fields %+v", b0)
	}
	if !b0.Timestamp.Equal(b1.Timestamp) {
		t.Fatalf("expected one shared timestamp")
	}
	if got := b0.Timestamp.Format(models.TimestampLayout); got != "2024-03-09 14:05:00" {
		t.Fatalf("expected Chicago local time, got %s", got)
	}
	if s.State() != StateSubmitted || s.SubmissionID() != sub.ID.String() {
		t.Fatalf("expected SUBMITTED with submission id, got %s %q", s.State(), s.SubmissionID())
	}

	if _, err := s.Submit(context.Background(), lines([]string{"U1"}, []float64{50}), now, app); !errors.Is(err, models.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
	if atomic.LoadInt32(&app.calls) != 1 {
		t.Fatalf("expected no second append")
	}
}

func TestSubmit_BatchIDCarried(t *testing.T) {
	s := collecting(t, "Acme", "B7")
	app := &recordingAppender{}
	if _, err := s.Submit(context.Background(), lines([]string{"U1"}, []float64{10}), time.Now(), app); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if app.batches[0][0].BidID != "B7" {
		t.Fatalf("expected batch id B7, got %q", app.batches[0][0].BidID)
	}
}

func TestSubmit_AllZeroKeepsFormOpen(t *testing.T) {
	s := collecting(t, "Acme", "")
	app := &recordingAppender{}

	_, err := s.Submit(context.Background(), lines([]string{"U1", "U2"}, []float64{0, 0}), time.Now(), app)
	if !errors.Is(err, models.ErrNoBidsPlaced) {
		t.Fatalf("expected ErrNoBidsPlaced, got %v", err)
	}
	if s.State() != StateCollectingBids || app.calls != 0 {
		t.Fatalf("expected state unchanged and no append")
	}
}

func TestSubmit_InvalidAmounts(t *testing.T) {
	s := collecting(t, "Acme", "")
	app := &recordingAppender{}
	for _, amounts := range [][]float64{{-5}, {math.NaN()}, {math.Inf(1)}, {12.5}} {
		if _, err := s.Submit(context.Background(), lines([]string{"U1"}, amounts), time.Now(), app); !errors.Is(err, models.ErrInvalidBid) {
			t.Fatalf("amounts %v: expected ErrInvalidBid, got %v", amounts, err)
		}
	}
	if app.calls != 0 || s.State() != StateCollectingBids {
		t.Fatalf("invalid submits must not append or change state")
	}
}

func TestSubmit_AppendFailureRollsBack(t *testing.T) {
	s := collecting(t, "Acme", "")
	app := &recordingAppender{err: models.ErrGatewayUnavailable}

	_, err := s.Submit(context.Background(), lines([]string{"U1"}, []float64{20}), time.Now(), app)
	if !errors.Is(err, models.ErrGatewayUnavailable) {
		t.Fatalf("expected wrapped gateway error, got %v", err)
	}
	if s.State() != StateCollectingBids {
		t.Fatalf("expected rollback to COLLECTING_BIDS, got %s", s.State())
	}

	app.mu.Lock()
	app.err = nil
	app.mu.Unlock()
	if _, err := s.Submit(context.Background(), lines([]string{"U1"}, []float64{20}), time.Now(), app); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if s.State() != StateSubmitted {
		t.Fatalf("expected SUBMITTED after retry")
	}
}

func TestSubmit_ConcurrentOnlyOneAppends(t *testing.T) {
	s := collecting(t, "Acme", "")
	app := &recordingAppender{block: make(chan struct{})}

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Submit(context.Background(), lines([]string{"U1"}, []float64{10}), time.Now(), app)
		}(i)
	}

	// let the one winner reach the appender, then release it
	for atomic.LoadInt32(&app.calls) == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(app.block)
	wg.Wait()

	if got := atomic.LoadInt32(&app.calls); got != 1 {
		t.Fatalf("expected exactly one append, got %d", got)
	}
	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, models.ErrSubmitInProgress), errors.Is(err, models.ErrAlreadySubmitted):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected one successful submit, got %d", ok)
	}
}

func TestSubmit_LineBatchOverridesSession(t *testing.T) {
	s := collecting(t, "Acme", "")
	app := &recordingAppender{}
	in := []Line{
		{UnitCode: "U1", BidID: "B1", Amount: 50},
		{UnitCode: "U1", BidID: "B2", Amount: 0},
		{UnitCode: "U2", BidID: "B2", Amount: 25},
	}
	if _, err := s.Submit(context.Background(), in, time.Now(), app); err != nil {
		t.Fatalf("submit: %v", err)
	}
	got := app.batches[0]
	if len(got) != 2 || got[0].UnitCode != "U1" || got[0].BidID != "B1" || got[1].BidID != "B2" {
		t.Fatalf("unexpected bids %+v", got)
	}
}

func TestGrant_SubmittedIsTerminal(t *testing.T) {
	s := collecting(t, "Acme", "B1")
	if _, err := s.Submit(context.Background(), lines([]string{"U1"}, []float64{5}), time.Now(), &recordingAppender{}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	s.Grant("B2")
	if s.State() != StateSubmitted || s.BatchID() != "B1" {
		t.Fatalf("expected SUBMITTED to be terminal")
	}
	if err := s.SetCompany("Other"); !errors.Is(err, models.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestManager_SharesLiveSessionAndRestores(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, Options{Step: DefaultStep}, time.Hour)
	ctx := context.Background()

	a, err := m.Get(ctx, "id-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	a.Grant("B1")
	a.SetCompany("Acme")
	a.SetLanguage("es")
	if err := m.Save(ctx, a); err != nil {
		t.Fatalf("save: %v", err)
	}

	b, _ := m.Get(ctx, "id-1")
	if a != b {
		t.Fatalf("expected the same live session after save")
	}

	fresh := NewManager(store, Options{Step: DefaultStep}, time.Hour)
	restored, err := fresh.Get(ctx, "id-1")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.State() != StateCollectingBids || restored.Company() != "Acme" || restored.BatchID() != "B1" || restored.Language() != "es" {
		t.Fatalf("unexpected restored session %+v", restored.Snapshot())
	}
}

func TestManager_UngrantedSessionsAreNotKept(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, Options{Step: DefaultStep}, time.Hour)
	ctx := context.Background()

	a, err := m.Get(ctx, "id-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := m.Save(ctx, a); err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec, _ := store.LoadSession(ctx, "id-1"); rec != nil {
		t.Fatalf("expected nothing stored, got %+v", rec)
	}
	if b, _ := m.Get(ctx, "id-1"); a == b {
		t.Fatalf("expected an ungranted session not to be tracked")
	}
}
