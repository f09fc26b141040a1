package session

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"hk_bids/models"
)

type State string

const (
	StateAwaitingAccess  State = "AWAITING_ACCESS"
	StateAwaitingCompany State = "AWAITING_COMPANY"
	StateCollectingBids  State = "COLLECTING_BIDS"
	StateSubmitted       State = "SUBMITTED"
)

// Appender persists one batch of bids. It is called at most once per
// successful submit.
type Appender interface {
	Append(ctx context.Context, sessionID string, bids []models.Bid) (*models.Submission, error)
}

// Options are the per-deployment knobs a session needs.
type Options struct {
	Step     float64
	Location *time.Location
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// Session is one vendor's pass through the bid form. All methods are safe
// for concurrent use.
type Session struct {
	mu   sync.Mutex
	opts Options

	id           string
	state        State
	company      string
	batchID      string
	language     string
	submissionID string
	submittedAt  *time.Time
	inFlight     bool
}

func New(id string, opts Options) *Session {
	return &Session{id: id, opts: opts, state: StateAwaitingAccess}
}

// FromRecord restores a persisted session. Unknown states restart at
// AWAITING_ACCESS.
func FromRecord(rec *models.SessionRecord, opts Options) *Session {
	s := New(rec.ID, opts)
	switch State(rec.State) {
	case StateAwaitingCompany, StateCollectingBids, StateSubmitted:
		s.state = State(rec.State)
	}
	s.company = rec.Company
	s.batchID = rec.BatchID
	s.language = rec.Language
	s.submissionID = rec.SubmissionID
	s.submittedAt = rec.SubmittedAt
	return s
}

// Snapshot is the persisted form of the session.
func (s *Session) Snapshot() *models.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &models.SessionRecord{
		ID:           s.id,
		State:        string(s.state),
		Company:      s.company,
		BatchID:      s.batchID,
		Language:     s.language,
		SubmissionID: s.submissionID,
		SubmittedAt:  s.submittedAt,
		UpdatedAt:    time.Now(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Company() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.company
}

func (s *Session) BatchID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchID
}

func (s *Session) SubmissionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submissionID
}

func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

func (s *Session) SetLanguage(lang string) {
	s.mu.Lock()
	s.language = lang
	s.mu.Unlock()
}

// Grant records a successful access check. A session that already has a
// company skips straight to collecting bids. Submitted sessions stay
// submitted.
func (s *Session) Grant(batchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateSubmitted:
		return
	case StateAwaitingAccess:
		s.state = StateAwaitingCompany
	}
	s.batchID = batchID
	if s.company != "" {
		s.state = StateCollectingBids
	}
}

// SetCompany stores the vendor name and opens the bid form.
func (s *Session) SetCompany(name string) error {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateAwaitingAccess:
		return models.ErrAccessDenied
	case StateSubmitted:
		return models.ErrAlreadySubmitted
	}
	if name == "" {
		return models.ErrCompanyRequired
	}
	s.company = name
	s.state = StateCollectingBids
	return nil
}

// Line is one form row: the unit, the batch that requested it and the
// amount entered. An empty BidID falls back to the session's batch.
type Line struct {
	UnitCode string
	BidID    string
	Amount   float64
}

// Submit turns the non-zero lines into bids and hands them to the appender
// as one batch, in form order. The session moves to SUBMITTED only when the
// append succeeds; on failure it stays in COLLECTING_BIDS so the vendor can
// retry. Only one submit per session can be in flight.
func (s *Session) Submit(ctx context.Context, lines []Line, now time.Time, app Appender) (*models.Submission, error) {
	s.mu.Lock()
	switch {
	case s.state == StateSubmitted:
		s.mu.Unlock()
		return nil, models.ErrAlreadySubmitted
	case s.inFlight:
		s.mu.Unlock()
		return nil, models.ErrSubmitInProgress
	case s.state == StateAwaitingAccess:
		s.mu.Unlock()
		return nil, models.ErrAccessDenied
	case s.state == StateAwaitingCompany || s.company == "":
		s.mu.Unlock()
		return nil, models.ErrCompanyRequired
	}

	var total float64
	for _, l := range lines {
		a := l.Amount
		if math.IsNaN(a) || math.IsInf(a, 0) || a < 0 || !OnStep(a, s.opts.Step) {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidBid, a)
		}
		total += a
	}
	if total == 0 {
		s.mu.Unlock()
		return nil, models.ErrNoBidsPlaced
	}

	ts := now.In(s.opts.location()).Truncate(time.Second)
	bids := make([]models.Bid, 0, len(lines))
	for _, l := range lines {
		if l.Amount <= 0 {
			continue
		}
		bidID := l.BidID
		if bidID == "" {
			bidID = s.batchID
		}
		bids = append(bids, models.Bid{
			UnitCode:  l.UnitCode,
			Company:   s.company,
			Amount:    RoundCents(l.Amount),
			Timestamp: ts,
			BidID:     bidID,
		})
	}
	s.inFlight = true
	s.mu.Unlock()

	sub, err := app.Append(ctx, s.id, bids)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	if err != nil {
		return nil, fmt.Errorf("submit bids: %w", err)
	}
	s.state = StateSubmitted
	if sub != nil {
		s.submissionID = sub.ID.String()
	}
	s.submittedAt = &ts
	return sub, nil
}
