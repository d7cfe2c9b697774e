package store

import (
	"context"
	"sync"
	"time"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
)

// MemoryStore keeps everything in process memory. It is the default backend.
type MemoryStore struct {
	mu    sync.RWMutex
	jobs  map[string]domain.CrawlJob
	facts map[string]map[string]domain.ExtractedFacts
	docs  map[string]domain.RenderedDocument
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:  make(map[string]domain.CrawlJob),
		facts: make(map[string]map[string]domain.ExtractedFacts),
		docs:  make(map[string]domain.RenderedDocument),
	}
}

func (s *MemoryStore) PutJob(_ context.Context, job *domain.CrawlJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, id string) (*domain.CrawlJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &job, nil
}

func (s *MemoryStore) ListJobs(_ context.Context, limit, offset int) ([]*domain.CrawlJob, error) {
	s.mu.RLock()
	jobs := make([]*domain.CrawlJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, &job)
	}
	s.mu.RUnlock()

	sortJobs(jobs)
	return page(jobs, limit, offset), nil
}

func (s *MemoryStore) AppendFacts(_ context.Context, jobID string, facts []domain.ExtractedFacts) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byURL, ok := s.facts[jobID]
	if !ok {
		byURL = make(map[string]domain.ExtractedFacts, len(facts))
		s.facts[jobID] = byURL
	}
	for i := range facts {
		byURL[facts[i].URL] = facts[i]
	}
	return nil
}

func (s *MemoryStore) GetFacts(_ context.Context, jobID string) ([]domain.ExtractedFacts, error) {
	s.mu.RLock()
	byURL := s.facts[jobID]
	out := make([]domain.ExtractedFacts, 0, len(byURL))
	for _, f := range byURL {
		out = append(out, f)
	}
	s.mu.RUnlock()

	sortFacts(out)
	return out, nil
}

func (s *MemoryStore) PutDocument(_ context.Context, doc *domain.RenderedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *doc
	stored.Body = append([]byte(nil), doc.Body...)
	s.docs[doc.JobID] = stored
	return nil
}

func (s *MemoryStore) GetDocument(_ context.Context, jobID string) (*domain.RenderedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	doc.Body = append([]byte(nil), doc.Body...)
	return &doc, nil
}

func (s *MemoryStore) DeleteJobsBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, job := range s.jobs {
		if !expired(&job, cutoff) {
			continue
		}
		delete(s.jobs, id)
		delete(s.facts, id)
		delete(s.docs, id)
		deleted++
	}
	return deleted, nil
}

func (s *MemoryStore) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(s.jobs, id)
	delete(s.facts, id)
	delete(s.docs, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
