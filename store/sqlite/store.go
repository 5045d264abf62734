// Package sqlite implements core.ReviewStore on SQLite via the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/internal/migrate"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the SQLite implementation of core.ReviewStore.
type Store struct {
	DB  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database described by dsn and runs pending
// migrations. A plain path is turned into a file: DSN with a busy timeout;
// ":memory:" opens a private in-memory database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("sqlite DSN required")
	}
	memory := dsn == ":memory:"
	switch {
	case memory:
		dsn = "file::memory:?_pragma=busy_timeout(5000)"
	case !strings.HasPrefix(dsn, "file:"):
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		dsn = "file:" + dsn + "?_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{DB: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.initPragmas(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initPragmas(ctx context.Context) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, q := range stmts {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Migrate applies embedded migrations not yet recorded in schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at INTEGER NOT NULL
);`); err != nil {
		return err
	}

	applied := make(map[int]bool)
	rows, err := s.DB.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Close(); err != nil {
		return err
	}

	all, err := migrate.Load(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	for _, m := range migrate.Pending(all, applied) {
		if err := s.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
	}
	return nil
}

func (s *Store) apply(ctx context.Context, m migrate.Migration) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?)`, m.Version, time.Now().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// CreateReview inserts a pending review.
func (s *Store) CreateReview(ctx context.Context, metadata map[string]any) (core.Review, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return core.Review{}, fmt.Errorf("encode metadata: %w", err)
	}
	now := s.now()
	r := core.Review{
		ID:        uuid.NewString(),
		Status:    core.ReviewPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.DB.ExecContext(ctx,
		`INSERT INTO reviews(id, status, created_at, updated_at, metadata, error) VALUES(?, ?, ?, ?, ?, '')`,
		r.ID, string(r.Status), now.UnixNano(), now.UnixNano(), string(meta)); err != nil {
		return core.Review{}, err
	}
	// Round-trip through JSON so the caller sees what a later GetReview returns.
	if err := json.Unmarshal(meta, &r.Metadata); err != nil {
		return core.Review{}, err
	}
	return r, nil
}

const reviewColumns = `id, status, created_at, updated_at, metadata, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanReview(row scanner) (core.Review, error) {
	var (
		r                core.Review
		status, meta     string
		created, updated int64
	)
	if err := row.Scan(&r.ID, &status, &created, &updated, &meta, &r.Error); err != nil {
		return core.Review{}, err
	}
	r.Status = core.ReviewStatus(status)
	r.CreatedAt = time.Unix(0, created).UTC()
	r.UpdatedAt = time.Unix(0, updated).UTC()
	r.Metadata = map[string]any{}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return core.Review{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return r, nil
}

// GetReview loads one review.
func (s *Store) GetReview(ctx context.Context, id string) (core.Review, error) {
	r, err := scanReview(s.DB.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Review{}, core.ErrReviewNotFound
	}
	return r, err
}

// ListReviews returns all reviews ordered by creation time.
func (s *Store) ListReviews(ctx context.Context) ([]core.Review, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+reviewColumns+` FROM reviews ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.Review{}
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkInProgress moves the review to in_progress.
func (s *Store) MarkInProgress(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE reviews SET status = ?, updated_at = ? WHERE id = ?`,
		string(core.ReviewInProgress), s.now().UnixNano(), id)
}

// CompleteReview moves the review to completed.
func (s *Store) CompleteReview(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE reviews SET status = ?, updated_at = ? WHERE id = ?`,
		string(core.ReviewCompleted), s.now().UnixNano(), id)
}

// MarkFailed moves the review to failed and records reason in both the
// error column and metadata.
func (s *Store) MarkFailed(ctx context.Context, id string, reason string) error {
	return s.exec(ctx,
		`UPDATE reviews SET status = ?, error = ?, metadata = json_set(metadata, '$.error', ?), updated_at = ? WHERE id = ?`,
		string(core.ReviewFailed), reason, reason, s.now().UnixNano(), id)
}

func (s *Store) exec(ctx context.Context, q string, args ...any) error {
	res, err := s.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrReviewNotFound
	}
	return nil
}

func existsTx(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM reviews WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrReviewNotFound
	}
	return err
}

func (s *Store) exists(ctx context.Context, id string) error {
	var one int
	err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM reviews WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrReviewNotFound
	}
	return err
}

// AddComments appends comments after any already stored for the review.
func (s *Store) AddComments(ctx context.Context, id string, comments []core.AggregatedComment) ([]core.Comment, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := existsTx(ctx, tx, id); err != nil {
		return nil, err
	}
	var seq int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM comments WHERE review_id = ?`, id).Scan(&seq); err != nil {
		return nil, err
	}

	out := make([]core.Comment, 0, len(comments))
	for _, c := range comments {
		seq++
		contributors := c.Contributors
		if contributors == nil {
			contributors = []string{}
		}
		enc, err := json.Marshal(contributors)
		if err != nil {
			return nil, err
		}
		stored := core.Comment{ID: uuid.NewString(), ReviewID: id, AggregatedComment: c}
		if _, err := tx.ExecContext(ctx, `INSERT INTO comments(id, review_id, seq, agent_id, file_path, line_number, severity, category, description, suggestion, contributors)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			stored.ID, id, seq, c.AgentID, c.FilePath, c.LineNumber, string(c.Severity), c.Category, c.Description, c.Suggestion, string(enc)); err != nil {
			return nil, err
		}
		out = append(out, stored)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// AddTraces appends traces after any already stored for the review.
func (s *Store) AddTraces(ctx context.Context, id string, traces []core.AgentTrace) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := existsTx(ctx, tx, id); err != nil {
		return err
	}
	var seq int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM traces WHERE review_id = ?`, id).Scan(&seq); err != nil {
		return err
	}
	for _, t := range traces {
		seq++
		if _, err := tx.ExecContext(ctx, `INSERT INTO traces(review_id, seq, agent_id, started_at, completed_at, input_summary, output_summary)
VALUES(?, ?, ?, ?, ?, ?, ?)`,
			id, seq, t.AgentID, t.StartedAt.UnixNano(), t.CompletedAt.UnixNano(), t.InputSummary, t.OutputSummary); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListComments returns the review's comments in insertion order.
func (s *Store) ListComments(ctx context.Context, id string) ([]core.Comment, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, agent_id, file_path, line_number, severity, category, description, suggestion, contributors
FROM comments WHERE review_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.Comment{}
	for rows.Next() {
		var (
			c                      core.Comment
			severity, contributors string
		)
		if err := rows.Scan(&c.ID, &c.AgentID, &c.FilePath, &c.LineNumber, &severity, &c.Category, &c.Description, &c.Suggestion, &contributors); err != nil {
			return nil, err
		}
		c.ReviewID = id
		c.Severity = core.Severity(severity)
		if err := json.Unmarshal([]byte(contributors), &c.Contributors); err != nil {
			return nil, fmt.Errorf("decode contributors: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListTraces returns the review's traces in insertion order.
func (s *Store) ListTraces(ctx context.Context, id string) ([]core.AgentTrace, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT agent_id, started_at, completed_at, input_summary, output_summary
FROM traces WHERE review_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.AgentTrace{}
	for rows.Next() {
		var (
			t                  core.AgentTrace
			started, completed int64
		)
		if err := rows.Scan(&t.AgentID, &started, &completed, &t.InputSummary, &t.OutputSummary); err != nil {
			return nil, err
		}
		t.StartedAt = time.Unix(0, started).UTC()
		t.CompletedAt = time.Unix(0, completed).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// AddFeedback inserts one rating for the review.
func (s *Store) AddFeedback(ctx context.Context, id string, f core.Feedback) (core.Feedback, error) {
	if err := s.exists(ctx, id); err != nil {
		return core.Feedback{}, err
	}
	f.ID = uuid.NewString()
	f.ReviewID = id
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now()
	}
	f.CreatedAt = f.CreatedAt.UTC()
	if _, err := s.DB.ExecContext(ctx, `INSERT INTO feedback(id, review_id, comment_id, rating, user_id, created_at) VALUES(?, ?, ?, ?, ?, ?)`,
		f.ID, id, f.CommentID, f.Rating, f.UserID, f.CreatedAt.UnixNano()); err != nil {
		return core.Feedback{}, err
	}
	return f, nil
}

// ListFeedback returns the review's feedback oldest first.
func (s *Store) ListFeedback(ctx context.Context, id string) ([]core.Feedback, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, comment_id, rating, user_id, created_at
FROM feedback WHERE review_id = ? ORDER BY created_at ASC, seq ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.Feedback{}
	for rows.Next() {
		var (
			f       core.Feedback
			created int64
		)
		if err := rows.Scan(&f.ID, &f.CommentID, &f.Rating, &f.UserID, &created); err != nil {
			return nil, err
		}
		f.ReviewID = id
		f.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}
