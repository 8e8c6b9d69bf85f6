package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/saty-git24/live-polling-system/internal/config"
	"github.com/saty-git24/live-polling-system/internal/models"
)

// PostgresStore is the durable adapter. The votes table carries
// UNIQUE(poll_id, participant_id), so vote admission rides on the database's
// own uniqueness guarantee rather than a check-then-act read.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateSchema creates all tables needed by the engine.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const schema = `
-- Polls
CREATE TABLE IF NOT EXISTS polls (
    id VARCHAR(255) PRIMARY KEY,
    question TEXT NOT NULL,
    options JSONB NOT NULL,
    start_time BIGINT NOT NULL,
    duration INTEGER NOT NULL,
    is_active BOOLEAN DEFAULT true,
    total_votes INTEGER DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_polls_active ON polls(is_active);

-- Votes
CREATE TABLE IF NOT EXISTS votes (
    id SERIAL PRIMARY KEY,
    poll_id VARCHAR(255) NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
    participant_id VARCHAR(255) NOT NULL,
    selected_option VARCHAR(255) NOT NULL,
    timestamp BIGINT NOT NULL,
    created_at TIMESTAMP DEFAULT NOW(),
    UNIQUE(poll_id, participant_id)
);

CREATE INDEX IF NOT EXISTS idx_votes_poll_participant ON votes(poll_id, participant_id);
`

// Ping verifies connectivity with a short deadline. The fallback layer uses
// it as its lazy re-probe.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, config.StoreConnectTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// queryCtx bounds every statement so a hung database cannot stall a
// request past the fallback's patience.
func queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, config.StoreQueryTimeout)
}

func (s *PostgresStore) CreatePoll(ctx context.Context, poll *models.Poll) error {
	ctx, cancel := queryCtx(ctx)
	defer cancel()

	optionsJSON, err := json.Marshal(poll.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO polls (id, question, options, start_time, duration, is_active, total_votes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, poll.ID, poll.Question, optionsJSON, poll.StartTime, poll.Duration, poll.IsActive, poll.TotalVotes)
	if err != nil {
		return fmt.Errorf("failed to insert poll: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCurrentPoll(ctx context.Context) (*models.Poll, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, question, options, start_time, duration, is_active, total_votes
		FROM polls WHERE is_active = true
		ORDER BY created_at DESC LIMIT 1
	`)

	poll, err := scanPoll(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNoActivePoll
	}
	return poll, err
}

func (s *PostgresStore) GetPollByID(ctx context.Context, pollID string) (*models.Poll, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, question, options, start_time, duration, is_active, total_votes
		FROM polls WHERE id = $1
	`, pollID)

	poll, err := scanPoll(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPollNotFound
	}
	return poll, err
}

func (s *PostgresStore) EndPoll(ctx context.Context, pollID string) (*models.Poll, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()

	// The update is a no-op for an already-ended poll, so double-ending
	// simply re-reads the terminal state.
	_, err := s.db.ExecContext(ctx, `
		UPDATE polls SET is_active = false WHERE id = $1
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to end poll: %w", err)
	}

	return s.GetPollByID(ctx, pollID)
}

func (s *PostgresStore) PollHistory(ctx context.Context) ([]*models.Poll, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, options, start_time, duration, is_active, total_votes
		FROM polls WHERE is_active = false
		ORDER BY created_at DESC LIMIT $1
	`, config.PollHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query poll history: %w", err)
	}
	defer rows.Close()

	var history []*models.Poll
	for rows.Next() {
		poll, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, poll)
	}
	return history, rows.Err()
}

// RecordVote runs the whole admission inside one transaction. The poll row
// is locked FOR UPDATE so concurrent votes on the same poll serialize, and
// the votes table's unique key settles duplicate races.
func (s *PostgresStore) RecordVote(ctx context.Context, vote *models.Vote) (*models.Poll, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin vote transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, question, options, start_time, duration, is_active, total_votes
		FROM polls WHERE id = $1 FOR UPDATE
	`, vote.PollID)

	poll, err := scanPoll(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPollNotFound
	}
	if err != nil {
		return nil, err
	}
	if !poll.IsActive {
		return nil, models.ErrPollNotActive
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO votes (poll_id, participant_id, selected_option, timestamp)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (poll_id, participant_id) DO NOTHING
	`, vote.PollID, vote.ParticipantID, vote.OptionID, time.Now().UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrDuplicateVote
		}
		return nil, fmt.Errorf("failed to insert vote: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, models.ErrDuplicateVote
	}

	opt := poll.Option(vote.OptionID)
	if opt == nil {
		// Rolls back the vote insert above.
		return nil, models.ErrOptionNotFound
	}
	opt.Votes++
	poll.TotalVotes++

	optionsJSON, err := json.Marshal(poll.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal options: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE polls SET options = $1, total_votes = total_votes + 1 WHERE id = $2
	`, optionsJSON, vote.PollID)
	if err != nil {
		return nil, fmt.Errorf("failed to update poll counts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit vote: %w", err)
	}
	return poll, nil
}

func (s *PostgresStore) HasVoted(ctx context.Context, pollID, participantID string) (bool, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM votes WHERE poll_id = $1 AND participant_id = $2
		)
	`, pollID, participantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check vote status: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) GetVote(ctx context.Context, pollID, participantID string) (string, bool, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()

	var optionID string
	err := s.db.QueryRowContext(ctx, `
		SELECT selected_option FROM votes WHERE poll_id = $1 AND participant_id = $2
	`, pollID, participantID).Scan(&optionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to fetch vote: %w", err)
	}
	return optionID, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoll(row rowScanner) (*models.Poll, error) {
	var poll models.Poll
	var optionsJSON []byte

	err := row.Scan(&poll.ID, &poll.Question, &optionsJSON, &poll.StartTime,
		&poll.Duration, &poll.IsActive, &poll.TotalVotes)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(optionsJSON, &poll.Options); err != nil {
		return nil, fmt.Errorf("failed to unmarshal poll options: %w", err)
	}
	return &poll, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	// 23505 = unique_violation
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
