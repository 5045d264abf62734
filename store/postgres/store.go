// Package postgres implements core.ReviewStore on PostgreSQL using pgx.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/internal/migrate"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the PostgreSQL implementation of core.ReviewStore.
type Store struct {
	Pool *pgxpool.Pool
	now  func() time.Time
}

// Open opens a connection pool and runs migrations. An empty dsn falls back
// to the DATABASE_URL environment variable.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return nil, errors.New("postgres DSN or DATABASE_URL required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 20
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s := &Store{Pool: pool, now: func() time.Time { return time.Now().UTC() }}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s == nil || s.Pool == nil {
		return nil
	}
	s.Pool.Close()
	return nil
}

// Migrate applies embedded migrations not yet recorded in schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at BIGINT NOT NULL
)`); err != nil {
		return err
	}

	applied := make(map[int]bool)
	rows, err := s.Pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	if err != nil {
		return err
	}
	for _, v := range versions {
		applied[int(v)] = true
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
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES($1, $2) ON CONFLICT (version) DO NOTHING`,
		m.Version, time.Now().Unix()); err != nil {
		return err
	}
	return tx.Commit(ctx)
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
	if _, err := s.Pool.Exec(ctx,
		`INSERT INTO reviews(id, status, created_at, updated_at, metadata) VALUES($1, $2, $3, $3, $4::jsonb)`,
		r.ID, string(r.Status), now, string(meta)); err != nil {
		return core.Review{}, err
	}
	if err := json.Unmarshal(meta, &r.Metadata); err != nil {
		return core.Review{}, err
	}
	return r, nil
}

const reviewColumns = `id, status, created_at, updated_at, metadata::text, error`

func scanReview(row pgx.Row) (core.Review, error) {
	var (
		r            core.Review
		status, meta string
	)
	if err := row.Scan(&r.ID, &status, &r.CreatedAt, &r.UpdatedAt, &meta, &r.Error); err != nil {
		return core.Review{}, err
	}
	r.Status = core.ReviewStatus(status)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	r.Metadata = map[string]any{}
	if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
		return core.Review{}, fmt.Errorf("decode metadata: %w", err)
	}
	return r, nil
}

// GetReview loads one review.
func (s *Store) GetReview(ctx context.Context, id string) (core.Review, error) {
	r, err := scanReview(s.Pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Review{}, core.ErrReviewNotFound
	}
	return r, err
}

// ListReviews returns all reviews ordered by creation time.
func (s *Store) ListReviews(ctx context.Context) ([]core.Review, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+reviewColumns+` FROM reviews ORDER BY created_at ASC, id ASC`)
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
	return s.exec(ctx, `UPDATE reviews SET status = $1, updated_at = $2 WHERE id = $3`,
		string(core.ReviewInProgress), s.now(), id)
}

// CompleteReview moves the review to completed.
func (s *Store) CompleteReview(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE reviews SET status = $1, updated_at = $2 WHERE id = $3`,
		string(core.ReviewCompleted), s.now(), id)
}

// MarkFailed moves the review to failed and records reason in both the
// error column and metadata.
func (s *Store) MarkFailed(ctx context.Context, id string, reason string) error {
	return s.exec(ctx,
		`UPDATE reviews SET status = $1, error = $2, metadata = metadata || jsonb_build_object('error', $2::text), updated_at = $3 WHERE id = $4`,
		string(core.ReviewFailed), reason, s.now(), id)
}

func (s *Store) exec(ctx context.Context, q string, args ...any) error {
	tag, err := s.Pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrReviewNotFound
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func exists(ctx context.Context, q querier, id string) error {
	var one int
	err := q.QueryRow(ctx, `SELECT 1 FROM reviews WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrReviewNotFound
	}
	return err
}

// AddComments appends comments after any already stored for the review.
func (s *Store) AddComments(ctx context.Context, id string, comments []core.AggregatedComment) ([]core.Comment, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serialise concurrent appends to the same review.
	var one int
	err = tx.QueryRow(ctx, `SELECT 1 FROM reviews WHERE id = $1 FOR UPDATE`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrReviewNotFound
	}
	if err != nil {
		return nil, err
	}
	var seq int
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM comments WHERE review_id = $1`, id).Scan(&seq); err != nil {
		return nil, err
	}

	batch := &pgx.Batch{}
	out := make([]core.Comment, 0, len(comments))
	for _, c := range comments {
		seq++
		contributors := c.Contributors
		if contributors == nil {
			contributors = []string{}
		}
		stored := core.Comment{ID: uuid.NewString(), ReviewID: id, AggregatedComment: c}
		batch.Queue(`INSERT INTO comments(id, review_id, seq, agent_id, file_path, line_number, severity, category, description, suggestion, contributors)
VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			stored.ID, id, seq, c.AgentID, c.FilePath, c.LineNumber, string(c.Severity), c.Category, c.Description, c.Suggestion, contributors)
		out = append(out, stored)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// AddTraces appends traces after any already stored for the review.
func (s *Store) AddTraces(ctx context.Context, id string, traces []core.AgentTrace) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var one int
	err = tx.QueryRow(ctx, `SELECT 1 FROM reviews WHERE id = $1 FOR UPDATE`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrReviewNotFound
	}
	if err != nil {
		return err
	}
	var seq int
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM traces WHERE review_id = $1`, id).Scan(&seq); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, t := range traces {
		seq++
		batch.Queue(`INSERT INTO traces(review_id, seq, agent_id, started_at, completed_at, input_summary, output_summary)
VALUES($1, $2, $3, $4, $5, $6, $7)`,
			id, seq, t.AgentID, t.StartedAt, t.CompletedAt, t.InputSummary, t.OutputSummary)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListComments returns the review's comments in insertion order.
func (s *Store) ListComments(ctx context.Context, id string) ([]core.Comment, error) {
	if err := exists(ctx, s.Pool, id); err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx, `SELECT id, agent_id, file_path, line_number, severity, category, description, suggestion, contributors
FROM comments WHERE review_id = $1 ORDER BY seq ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.Comment{}
	for rows.Next() {
		var (
			c        core.Comment
			severity string
		)
		if err := rows.Scan(&c.ID, &c.AgentID, &c.FilePath, &c.LineNumber, &severity, &c.Category, &c.Description, &c.Suggestion, &c.Contributors); err != nil {
			return nil, err
		}
		c.ReviewID = id
		c.Severity = core.Severity(severity)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListTraces returns the review's traces in insertion order.
func (s *Store) ListTraces(ctx context.Context, id string) ([]core.AgentTrace, error) {
	if err := exists(ctx, s.Pool, id); err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx, `SELECT agent_id, started_at, completed_at, input_summary, output_summary
FROM traces WHERE review_id = $1 ORDER BY seq ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.AgentTrace{}
	for rows.Next() {
		var t core.AgentTrace
		if err := rows.Scan(&t.AgentID, &t.StartedAt, &t.CompletedAt, &t.InputSummary, &t.OutputSummary); err != nil {
			return nil, err
		}
		t.StartedAt = t.StartedAt.UTC()
		t.CompletedAt = t.CompletedAt.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// AddFeedback inserts one rating for the review.
func (s *Store) AddFeedback(ctx context.Context, id string, f core.Feedback) (core.Feedback, error) {
	if err := exists(ctx, s.Pool, id); err != nil {
		return core.Feedback{}, err
	}
	f.ID = uuid.NewString()
	f.ReviewID = id
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now()
	}
	f.CreatedAt = f.CreatedAt.UTC()
	if _, err := s.Pool.Exec(ctx, `INSERT INTO feedback(id, review_id, comment_id, rating, user_id, created_at)
VALUES($1, $2, $3, $4, $5, $6)`, f.ID, id, f.CommentID, f.Rating, f.UserID, f.CreatedAt); err != nil {
		return core.Feedback{}, err
	}
	return f, nil
}

// ListFeedback returns the review's feedback oldest first.
func (s *Store) ListFeedback(ctx context.Context, id string) ([]core.Feedback, error) {
	if err := exists(ctx, s.Pool, id); err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx, `SELECT id, comment_id, rating, user_id, created_at
FROM feedback WHERE review_id = $1 ORDER BY created_at ASC, seq ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.Feedback{}
	for rows.Next() {
		f := core.Feedback{ReviewID: id}
		if err := rows.Scan(&f.ID, &f.CommentID, &f.Rating, &f.UserID, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.CreatedAt = f.CreatedAt.UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}
