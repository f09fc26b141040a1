package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"hk_bids/models"
)

// SQLiteStore keeps vendor sessions, a local ledger of submitted batches and
// a session audit log.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		company TEXT,
		batch_id TEXT,
		language TEXT,
		submission_id TEXT,
		submitted_at DATETIME,
		updated_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		company TEXT NOT NULL,
		bid_id TEXT,
		bids JSON NOT NULL,
		total REAL NOT NULL,
		submitted_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_logs (
		id INTEGER PRIMARY KEY,
		session_id TEXT,
		timestamp DATETIME,
		level TEXT,
		message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_session ON submissions(session_id);
	CREATE INDEX IF NOT EXISTS idx_submissions_bid ON submissions(bid_id, submitted_at);
	CREATE INDEX IF NOT EXISTS idx_logs_session ON session_logs(session_id, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Sessions
// =============================================================================

func (s *SQLiteStore) LoadSession(ctx context.Context, id string) (*models.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, state, company, batch_id, language, submission_id, submitted_at, updated_at
		FROM sessions WHERE id = ?`, id)

	var rec models.SessionRecord
	var company, batchID, language, submissionID sql.NullString
	var submittedAt, updatedAt sql.NullTime
	err := row.Scan(&rec.ID, &rec.State, &company, &batchID, &language, &submissionID, &submittedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.Company = company.String
	rec.BatchID = batchID.String
	rec.Language = language.String
	rec.SubmissionID = submissionID.String
	if submittedAt.Valid {
		t := submittedAt.Time
		rec.SubmittedAt = &t
	}
	rec.UpdatedAt = updatedAt.Time
	return &rec, nil
}

func (s *SQLiteStore) SaveSession(ctx context.Context, rec *models.SessionRecord) error {
	rec.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, state, company, batch_id, language, submission_id, submitted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			company = excluded.company,
			batch_id = excluded.batch_id,
			language = excluded.language,
			submission_id = excluded.submission_id,
			submitted_at = excluded.submitted_at,
			updated_at = excluded.updated_at`,
		rec.ID, rec.State, rec.Company, rec.BatchID, rec.Language, rec.SubmissionID, rec.SubmittedAt, rec.UpdatedAt)
	return err
}

// =============================================================================
// Submissions ledger
// =============================================================================

func (s *SQLiteStore) RecordSubmission(ctx context.Context, sub *models.Submission) error {
	bidsJSON, err := json.Marshal(sub.Bids)
	if err != nil {
		return fmt.Errorf("marshal bids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, session_id, company, bid_id, bids, total, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ID.String(), sub.SessionID, sub.Company, sub.BidID, string(bidsJSON), sub.Total, sub.SubmittedAt)
	return err
}

func (s *SQLiteStore) GetSubmission(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, company, bid_id, bids, total, submitted_at
		FROM submissions WHERE id = ?`, id.String())

	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sub, err
}

func (s *SQLiteStore) ListSubmissions(ctx context.Context, bidID string, limit int) ([]models.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, company, bid_id, bids, total, submitted_at
		FROM submissions WHERE (? = '' OR bid_id = ?)
		ORDER BY submitted_at DESC LIMIT ?`, bidID, bidID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var sub models.Submission
	var id, bidsJSON string
	var bidID sql.NullString
	if err := row.Scan(&id, &sub.SessionID, &sub.Company, &bidID, &bidsJSON, &sub.Total, &sub.SubmittedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse submission id: %w", err)
	}
	sub.ID = parsed
	sub.BidID = bidID.String
	if err := json.Unmarshal([]byte(bidsJSON), &sub.Bids); err != nil {
		return nil, fmt.Errorf("unmarshal bids: %w", err)
	}
	return &sub, nil
}

// =============================================================================
// Session log
// =============================================================================

func (s *SQLiteStore) Log(sessionID string, level models.LogLevel, message string) error {
	_, err := s.db.Exec(`
		INSERT INTO session_logs (session_id, timestamp, level, message)
		VALUES (?, ?, ?, ?)`,
		sessionID, time.Now(), level, message)
	return err
}

func (s *SQLiteStore) GetSessionLogs(sessionID string) ([]models.SessionEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, timestamp, level, message
		FROM session_logs WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.SessionEvent
	for rows.Next() {
		var e models.SessionEvent
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Timestamp, &e.Level, &e.Message); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
