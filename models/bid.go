package models

import (
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the submissions sheet timestamp format.
const TimestampLayout = "2006-01-02 15:04:05"

// Bid is one vendor offer for one unit.
type Bid struct {
	UnitCode  string    `json:"unit_code"`
	Company   string    `json:"company"`
	Amount    float64   `json:"bid"`
	Timestamp time.Time `json:"timestamp"`
	BidID     string    `json:"bid_id,omitempty"`
}

// Record renders the bid as a submissions sheet row. Bid_ID is only
// present for batch links.
func (b Bid) Record() Record {
	rec := Record{
		{Column: ColUnitCode, Value: b.UnitCode},
		{Column: ColCompany, Value: b.Company},
		{Column: ColBid, Value: b.Amount},
		{Column: ColTimestamp, Value: b.Timestamp.Format(TimestampLayout)},
	}
	if b.BidID != "" {
		rec = append(rec, Cell{Column: ColBidID, Value: b.BidID})
	}
	return rec
}

// Submission is one persisted batch of bids from a single form submit.
type Submission struct {
	ID          uuid.UUID `json:"id" db:"id"`
	SessionID   string    `json:"session_id" db:"session_id"`
	Company     string    `json:"company" db:"company"`
	BidID       string    `json:"bid_id" db:"bid_id"`
	Bids        []Bid     `json:"bids" db:"bids"`
	Total       float64   `json:"total" db:"total"`
	SubmittedAt time.Time `json:"submitted_at" db:"submitted_at"`
}

// NewSubmission groups bids that share one timestamp. BidID is set only
// when every bid belongs to the same batch.
func NewSubmission(sessionID string, bids []Bid) *Submission {
	s := &Submission{
		ID:        uuid.New(),
		SessionID: sessionID,
		Bids:      bids,
	}
	for _, b := range bids {
		s.Total += b.Amount
	}
	if len(bids) > 0 {
		s.Company = bids[0].Company
		s.BidID = bids[0].BidID
		s.SubmittedAt = bids[0].Timestamp
	}
	for _, b := range bids {
		if b.BidID != s.BidID {
			s.BidID = ""
			break
		}
	}
	return s
}
