package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/ranamudassir31/webpulse-ai/internal/domain"
)

const (
	// DefaultMaxOpenConns is the default maximum number of open connections
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections
	DefaultMaxIdleConns = 5
	// DefaultConnMaxLifetime is the default maximum connection lifetime
	DefaultConnMaxLifetime = 5 * time.Minute
	// DefaultPingTimeout is the default timeout for ping operations
	DefaultPingTimeout = 5 * time.Second
)

const schema = `
CREATE TABLE IF NOT EXISTS crawl_jobs (
	id          TEXT PRIMARY KEY,
	seed_url    TEXT NOT NULL,
	status      TEXT NOT NULL,
	config      JSONB NOT NULL,
	counts      JSONB NOT NULL,
	summary     TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	site_score  DOUBLE PRECISION,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	started_at  TIMESTAMPTZ,
	finished_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_crawl_jobs_created_at ON crawl_jobs (created_at DESC);
CREATE TABLE IF NOT EXISTS page_facts (
	job_id TEXT NOT NULL REFERENCES crawl_jobs (id) ON DELETE CASCADE,
	url    TEXT NOT NULL,
	facts  JSONB NOT NULL,
	PRIMARY KEY (job_id, url)
);
CREATE TABLE IF NOT EXISTS report_documents (
	job_id       TEXT PRIMARY KEY REFERENCES crawl_jobs (id) ON DELETE CASCADE,
	content_type TEXT NOT NULL,
	body         BYTEA NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const jobSelectColumns = `id, seed_url, status, config, counts, summary, error, site_score,
	created_at, updated_at, started_at, finished_at`

// NewPostgresConnection creates a new PostgreSQL database connection.
func NewPostgresConnection(cfg PostgresConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	return db, nil
}

// jobRow is the crawl_jobs row shape.
type jobRow struct {
	ID         string                         `db:"id"`
	SeedURL    string                         `db:"seed_url"`
	Status     string                         `db:"status"`
	Config     domain.JSONB[domain.JobConfig] `db:"config"`
	Counts     domain.JSONB[domain.JobCounts] `db:"counts"`
	Summary    string                         `db:"summary"`
	Error      string                         `db:"error"`
	SiteScore  *float64                       `db:"site_score"`
	CreatedAt  time.Time                      `db:"created_at"`
	UpdatedAt  time.Time                      `db:"updated_at"`
	StartedAt  *time.Time                     `db:"started_at"`
	FinishedAt *time.Time                     `db:"finished_at"`
}

func (r *jobRow) toDomain() *domain.CrawlJob {
	return &domain.CrawlJob{
		ID:         r.ID,
		SeedURL:    r.SeedURL,
		Config:     r.Config.V,
		Status:     domain.JobStatus(r.Status),
		Counts:     r.Counts.V,
		Summary:    r.Summary,
		Error:      r.Error,
		SiteScore:  r.SiteScore,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

// PostgresStore persists results in PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a store over an open connection.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the tables when they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// PutJob upserts a job record.
func (s *PostgresStore) PutJob(ctx context.Context, job *domain.CrawlJob) error {
	query := `
		INSERT INTO crawl_jobs (id, seed_url, status, config, counts, summary, error, site_score,
			created_at, updated_at, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			counts = EXCLUDED.counts,
			summary = EXCLUDED.summary,
			error = EXCLUDED.error,
			site_score = EXCLUDED.site_score,
			updated_at = EXCLUDED.updated_at,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at
	`

	_, err := s.db.ExecContext(
		ctx, query,
		job.ID, job.SeedURL, string(job.Status),
		domain.NewJSONB(job.Config), domain.NewJSONB(job.Counts),
		job.Summary, job.Error, job.SiteScore,
		job.CreatedAt, job.UpdatedAt, job.StartedAt, job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob loads one job.
func (s *PostgresStore) GetJob(ctx context.Context, id string) (*domain.CrawlJob, error) {
	query := `SELECT ` + jobSelectColumns + ` FROM crawl_jobs WHERE id = $1`

	var row jobRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// ListJobs returns a page of jobs, newest first.
func (s *PostgresStore) ListJobs(ctx context.Context, limit, offset int) ([]*domain.CrawlJob, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset = max(offset, 0)

	query := `SELECT ` + jobSelectColumns + ` FROM crawl_jobs
		ORDER BY created_at DESC, id ASC
		LIMIT $1 OFFSET $2`

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]*domain.CrawlJob, 0, len(rows))
	for i := range rows {
		jobs = append(jobs, rows[i].toDomain())
	}
	return jobs, nil
}

// AppendFacts upserts facts by (job_id, url) in one transaction.
func (s *PostgresStore) AppendFacts(ctx context.Context, jobID string, facts []domain.ExtractedFacts) error {
	if len(facts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin facts transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	query := `
		INSERT INTO page_facts (job_id, url, facts)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id, url) DO UPDATE SET facts = EXCLUDED.facts
	`
	for i := range facts {
		if _, execErr := tx.ExecContext(ctx, query, jobID, facts[i].URL, domain.NewJSONB(facts[i])); execErr != nil {
			return fmt.Errorf("failed to store facts for %s: %w", facts[i].URL, execErr)
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("failed to commit facts transaction: %w", commitErr)
	}
	return nil
}

// GetFacts loads a job's facts ordered by URL.
func (s *PostgresStore) GetFacts(ctx context.Context, jobID string) ([]domain.ExtractedFacts, error) {
	query := `SELECT facts FROM page_facts WHERE job_id = $1 ORDER BY url`

	var rows []domain.JSONB[domain.ExtractedFacts]
	if err := s.db.SelectContext(ctx, &rows, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to get facts for job %s: %w", jobID, err)
	}

	facts := make([]domain.ExtractedFacts, 0, len(rows))
	for _, r := range rows {
		facts = append(facts, r.V)
	}
	return facts, nil
}

// PutDocument upserts the rendered report of a job.
func (s *PostgresStore) PutDocument(ctx context.Context, doc *domain.RenderedDocument) error {
	query := `
		INSERT INTO report_documents (job_id, content_type, body)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			body = EXCLUDED.body,
			created_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, doc.JobID, doc.ContentType, doc.Body); err != nil {
		return fmt.Errorf("failed to store document for job %s: %w", doc.JobID, err)
	}
	return nil
}

// GetDocument loads the rendered report of a job.
func (s *PostgresStore) GetDocument(ctx context.Context, jobID string) (*domain.RenderedDocument, error) {
	query := `SELECT job_id, content_type, body FROM report_documents WHERE job_id = $1`

	var row struct {
		JobID       string `db:"job_id"`
		ContentType string `db:"content_type"`
		Body        []byte `db:"body"`
	}
	if err := s.db.GetContext(ctx, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document for job %s: %w", jobID, err)
	}
	return &domain.RenderedDocument{JobID: row.JobID, ContentType: row.ContentType, Body: row.Body}, nil
}

// DeleteJobsBefore removes terminal jobs older than cutoff; facts and
// documents go with them through ON DELETE CASCADE.
func (s *PostgresStore) DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := `DELETE FROM crawl_jobs WHERE status = ANY($1) AND updated_at < $2`

	terminal := []string{
		string(domain.JobStatusCompleted),
		string(domain.JobStatusFailed),
		string(domain.JobStatusCancelled),
	}
	result, err := s.db.ExecContext(ctx, query, pq.Array(terminal), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired jobs: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted jobs: %w", err)
	}
	return int(n), nil
}

// DeleteJob removes one job; facts and documents cascade.
func (s *PostgresStore) DeleteJob(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM crawl_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count deleted jobs: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
