package history

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/jfmyers9/loopwatch/internal/session"
	_ "modernc.org/sqlite"
)

// Store keeps a persistent log of playback attempts using SQLite
type Store struct {
	db *sql.DB
}

// Record is one finished playback attempt
type Record struct {
	ID        string // Session id
	Target    string
	VideoID   string
	StartedAt time.Time
	EndedAt   time.Time
	Outcome   session.Outcome
	Polls     int
	Autoplay  session.StepResult
	Play      session.StepResult
	Error     string
}

// Duration returns how long the attempt ran
func (r Record) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// OutcomeCount is the number of recorded attempts with a given outcome
type OutcomeCount struct {
	Outcome session.Outcome
	Count   int
}

// FromResult converts a runner result into a history record
func FromResult(res session.Result) Record {
	rec := Record{
		ID:        res.SessionID,
		Target:    res.Target.URL(),
		VideoID:   res.Target.VideoID(),
		StartedAt: res.StartedAt,
		EndedAt:   res.EndedAt,
		Outcome:   res.Outcome,
		Polls:     res.Polls,
		Autoplay:  res.Autoplay,
		Play:      res.Play,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	return rec
}

// Open creates a new history store backed by SQLite
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool size to 1 for in-memory databases to ensure consistency
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			target TEXT NOT NULL,
			video_id TEXT,
			started_at INTEGER NOT NULL,
			ended_at INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			polls INTEGER NOT NULL DEFAULT 0,
			autoplay TEXT,
			play TEXT,
			error TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_started_at ON sessions(started_at);
		CREATE INDEX IF NOT EXISTS idx_outcome ON sessions(outcome);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores a finished attempt
func (s *Store) Record(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO sessions (id, target, video_id, started_at, ended_at, outcome, polls, autoplay, play, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''))
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Target,
		rec.VideoID,
		rec.StartedAt.UnixMilli(),
		rec.EndedAt.UnixMilli(),
		string(rec.Outcome),
		rec.Polls,
		string(rec.Autoplay),
		string(rec.Play),
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// Recent returns the most recent attempts, newest first.
// A limit of zero or less returns every attempt.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT id, target, COALESCE(video_id, ''), started_at, ended_at, outcome, polls,
			COALESCE(autoplay, ''), COALESCE(play, ''), COALESCE(error, '')
		FROM sessions
		ORDER BY started_at DESC
	`

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r                  Record
			startedMs, endedMs int64
			outcome            string
			autoplay, play     string
		)

		err := rows.Scan(
			&r.ID,
			&r.Target,
			&r.VideoID,
			&startedMs,
			&endedMs,
			&outcome,
			&r.Polls,
			&autoplay,
			&play,
			&r.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		r.StartedAt = time.UnixMilli(startedMs)
		r.EndedAt = time.UnixMilli(endedMs)
		r.Outcome = session.Outcome(outcome)
		r.Autoplay = session.StepResult(autoplay)
		r.Play = session.StepResult(play)

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return records, nil
}

// Summary returns the number of attempts per outcome in session.Outcomes
// order. Outcomes this build does not know about sort last.
func (s *Store) Summary(ctx context.Context) ([]OutcomeCount, error) {
	query := `
		SELECT outcome, COUNT(*)
		FROM sessions
		GROUP BY outcome
		ORDER BY outcome ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize sessions: %w", err)
	}
	defer rows.Close()

	var counts []OutcomeCount
	for rows.Next() {
		var (
			outcome string
			c       OutcomeCount
		)
		if err := rows.Scan(&outcome, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		c.Outcome = session.Outcome(outcome)
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary: %w", err)
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return outcomeRank(counts[i].Outcome) < outcomeRank(counts[j].Outcome)
	})

	return counts, nil
}

func outcomeRank(o session.Outcome) int {
	for i, known := range session.Outcomes {
		if o == known {
			return i
		}
	}
	return len(session.Outcomes)
}

// Cleanup removes attempts that started before maxAge ago
func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()

	result, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old sessions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// Count returns the number of recorded attempts
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}
