package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
)

// DefaultRedisKeyPrefix namespaces every key the Redis store writes.
const DefaultRedisKeyPrefix = "webpulse:"

const (
	docFieldContentType = "content_type"
	docFieldBody        = "body"
)

// RedisStore persists results in Redis.
//
// Layout: <prefix>job:<id> holds the job JSON, <prefix>jobs is a sorted set of
// job ids scored by creation time, <prefix>facts:<id> is a hash of URL to facts
// JSON, and <prefix>doc:<id> is a hash with the content type and body.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewRedisStoreFromClient(client, cfg.KeyPrefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) jobKey(id string) string   { return s.prefix + "job:" + id }
func (s *RedisStore) factsKey(id string) string { return s.prefix + "facts:" + id }
func (s *RedisStore) docKey(id string) string   { return s.prefix + "doc:" + id }
func (s *RedisStore) indexKey() string          { return s.prefix + "jobs" }

// PutJob writes the job record and indexes it by creation time.
func (s *RedisStore) PutJob(ctx context.Context, job *domain.CrawlJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.jobKey(job.ID), payload, 0)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{
			Score:  float64(job.CreatedAt.UnixMilli()),
			Member: job.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob loads one job.
func (s *RedisStore) GetJob(ctx context.Context, id string) (*domain.CrawlJob, error) {
	val, err := s.client.Get(ctx, s.jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}

	var job domain.CrawlJob
	if unmarshalErr := json.Unmarshal(val, &job); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, unmarshalErr)
	}
	return &job, nil
}

// ListJobs returns a page of jobs, newest first.
func (s *RedisStore) ListJobs(ctx context.Context, limit, offset int) ([]*domain.CrawlJob, error) {
	jobs, err := s.allJobs(ctx)
	if err != nil {
		return nil, err
	}
	sortJobs(jobs)
	return page(jobs, limit, offset), nil
}

func (s *RedisStore) allJobs(ctx context.Context) ([]*domain.CrawlJob, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list job ids: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.CrawlJob{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.jobKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}

	jobs := make([]*domain.CrawlJob, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var job domain.CrawlJob
		if unmarshalErr := json.Unmarshal([]byte(raw), &job); unmarshalErr != nil {
			return nil, fmt.Errorf("failed to decode job %s: %w", ids[i], unmarshalErr)
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

// AppendFacts upserts facts into the job's hash, keyed by URL.
func (s *RedisStore) AppendFacts(ctx context.Context, jobID string, facts []domain.ExtractedFacts) error {
	if len(facts) == 0 {
		return nil
	}

	values := make(map[string]any, len(facts))
	for i := range facts {
		payload, err := json.Marshal(facts[i])
		if err != nil {
			return fmt.Errorf("failed to encode facts for %s: %w", facts[i].URL, err)
		}
		values[facts[i].URL] = payload
	}

	if err := s.client.HSet(ctx, s.factsKey(jobID), values).Err(); err != nil {
		return fmt.Errorf("failed to store facts for job %s: %w", jobID, err)
	}
	return nil
}

// GetFacts loads a job's facts ordered by URL.
func (s *RedisStore) GetFacts(ctx context.Context, jobID string) ([]domain.ExtractedFacts, error) {
	vals, err := s.client.HGetAll(ctx, s.factsKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get facts for job %s: %w", jobID, err)
	}

	facts := make([]domain.ExtractedFacts, 0, len(vals))
	for url, raw := range vals {
		var f domain.ExtractedFacts
		if unmarshalErr := json.Unmarshal([]byte(raw), &f); unmarshalErr != nil {
			return nil, fmt.Errorf("failed to decode facts for %s: %w", url, unmarshalErr)
		}
		facts = append(facts, f)
	}
	sortFacts(facts)
	return facts, nil
}

// PutDocument stores the rendered report of a job.
func (s *RedisStore) PutDocument(ctx context.Context, doc *domain.RenderedDocument) error {
	err := s.client.HSet(ctx, s.docKey(doc.JobID),
		docFieldContentType, doc.ContentType,
		docFieldBody, doc.Body,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to store document for job %s: %w", doc.JobID, err)
	}
	return nil
}

// GetDocument loads the rendered report of a job.
func (s *RedisStore) GetDocument(ctx context.Context, jobID string) (*domain.RenderedDocument, error) {
	vals, err := s.client.HGetAll(ctx, s.docKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get document for job %s: %w", jobID, err)
	}
	if len(vals) == 0 {
		return nil, ErrNotFound
	}
	return &domain.RenderedDocument{
		JobID:       jobID,
		ContentType: vals[docFieldContentType],
		Body:        []byte(vals[docFieldBody]),
	}, nil
}

// DeleteJobsBefore removes terminal jobs older than cutoff with their facts
// and documents.
func (s *RedisStore) DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	jobs, err := s.allJobs(ctx)
	if err != nil {
		return 0, err
	}

	var ids []string
	for _, job := range jobs {
		if expired(job, cutoff) {
			ids = append(ids, job.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, s.jobKey(id), s.factsKey(id), s.docKey(id))
			pipe.ZRem(ctx, s.indexKey(), id)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired jobs: %w", err)
	}
	return len(ids), nil
}

// DeleteJob removes one job with its facts and document.
func (s *RedisStore) DeleteJob(ctx context.Context, id string) error {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, s.jobKey(id))
		pipe.Del(ctx, s.factsKey(id), s.docKey(id))
		pipe.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	if removed.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
