package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Store persists jobs. Implementations must be safe for concurrent use and
// must reject backward status changes with ErrInvalidTransition.
type Store interface {
	Create(ctx context.Context, j Job) error
	Get(ctx context.Context, id string) (Job, error)
	Update(ctx context.Context, id string, fn func(*Job) error) (Job, error)
	List(ctx context.Context) ([]Job, error)
	Close() error
}

// MemoryStore keeps jobs for the lifetime of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job)}
}

func (s *MemoryStore) Create(_ context.Context, j Job) error {
	if err := validateNew(j); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return fmt.Errorf("job %s already exists", j.ID)
	}
	s.jobs[j.ID] = j
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return j, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(*Job) error) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	next, err := applyUpdate(cur, fn)
	if err != nil {
		return Job{}, err
	}
	s.jobs[id] = next
	return next, nil
}

// List returns all jobs, oldest first.
func (s *MemoryStore) List(_ context.Context) ([]Job, error) {
	s.mu.RLock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	s.mu.RUnlock()
	sortJobs(out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func sortJobs(jobs []Job) {
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].CreatedAt.Equal(jobs[k].CreatedAt) {
			return jobs[i].ID < jobs[k].ID
		}
		return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
	})
}
