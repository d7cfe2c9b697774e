// Package store persists crawl jobs, their per-page facts and rendered
// report documents.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
	"github.com/ranamudassir31/webpulse-ai/internal/logger"
)

// ErrNotFound is returned when a job or document does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnknownDriver is returned by New for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown store driver")

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// DefaultListLimit bounds ListJobs when the caller passes a non-positive limit.
const DefaultListLimit = 50

// ResultStore is the persistence contract for job records, facts and documents.
// All writes are idempotent: jobs and documents are keyed by job id, facts by
// job id and URL.
type ResultStore interface {
	PutJob(ctx context.Context, job *domain.CrawlJob) error
	GetJob(ctx context.Context, id string) (*domain.CrawlJob, error)
	// ListJobs returns jobs newest first.
	ListJobs(ctx context.Context, limit, offset int) ([]*domain.CrawlJob, error)
	AppendFacts(ctx context.Context, jobID string, facts []domain.ExtractedFacts) error
	// GetFacts returns the job's facts ordered by URL.
	GetFacts(ctx context.Context, jobID string) ([]domain.ExtractedFacts, error)
	PutDocument(ctx context.Context, doc *domain.RenderedDocument) error
	GetDocument(ctx context.Context, jobID string) (*domain.RenderedDocument, error)
	// DeleteJobsBefore removes terminal jobs last updated before cutoff,
	// together with their facts and documents, and returns how many jobs went.
	DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int, error)
	// DeleteJob removes one job with its facts and document. It returns
	// ErrNotFound when the job does not exist.
	DeleteJob(ctx context.Context, id string) error
	Close() error
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Config selects and configures a backend.
type Config struct {
	Driver    string         `mapstructure:"driver"`
	Retention time.Duration  `mapstructure:"retention"`
	Sweep     string         `mapstructure:"sweep"`
	Postgres  PostgresConfig `mapstructure:"postgres"`
	Redis     RedisConfig    `mapstructure:"redis"`
}

// Validate checks the selected driver has what it needs.
func (c *Config) Validate() error {
	switch c.Driver {
	case "", DriverMemory:
		return nil
	case DriverPostgres:
		if c.Postgres.Host == "" || c.Postgres.DBName == "" {
			return errors.New("store.postgres.host and store.postgres.dbname are required")
		}
		return nil
	case DriverRedis:
		if c.Redis.Addr == "" {
			return errors.New("store.redis.addr is required")
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Driver)
	}
}

// New opens the backend named by cfg.Driver.
func New(ctx context.Context, cfg Config, log logger.Logger) (ResultStore, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		log.Info("Using in-memory result store")
		return NewMemoryStore(), nil
	case DriverPostgres:
		db, err := NewPostgresConnection(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		s := NewPostgresStore(db)
		if schemaErr := s.EnsureSchema(ctx); schemaErr != nil {
			_ = db.Close()
			return nil, schemaErr
		}
		log.Info("Using PostgreSQL result store",
			logger.String("host", cfg.Postgres.Host),
			logger.String("dbname", cfg.Postgres.DBName),
		)
		return s, nil
	case DriverRedis:
		s, err := NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		log.Info("Using Redis result store", logger.String("addr", cfg.Redis.Addr))
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func sortJobs(jobs []*domain.CrawlJob) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
}

func sortFacts(facts []domain.ExtractedFacts) {
	sort.SliceStable(facts, func(i, j int) bool {
		return facts[i].URL < facts[j].URL
	})
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

func expired(job *domain.CrawlJob, cutoff time.Time) bool {
	return job.Status.IsTerminal() && job.UpdatedAt.Before(cutoff)
}
