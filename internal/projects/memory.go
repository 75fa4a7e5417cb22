package projects

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/01phanto/EcoLedger/internal/apperrors"
)

type memoryRepository struct {
	mu       sync.RWMutex
	projects map[uuid.UUID]*Project
}

// NewMemoryRepository creates an in-memory project repository for the
// "memory" storage driver and the test suites.
func NewMemoryRepository() Repository {
	return &memoryRepository{projects: make(map[uuid.UUID]*Project)}
}

func (r *memoryRepository) Create(ctx context.Context, project *Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *project
	r.projects[project.ID] = &cp
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	project, ok := r.projects[id]
	if !ok {
		return nil, apperrors.NotFound("project", id)
	}
	cp := *project
	return &cp, nil
}

func (r *memoryRepository) Update(ctx context.Context, project *Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[project.ID]; !ok {
		return apperrors.NotFound("project", project.ID)
	}
	project.UpdatedAt = time.Now().UTC()
	cp := *project
	r.projects[project.ID] = &cp
	return nil
}

func (r *memoryRepository) List(ctx context.Context, filter Filter) ([]*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Project, 0, len(r.projects))
	for _, project := range r.projects {
		if filter.Status != nil && project.Status != *filter.Status {
			continue
		}
		cp := *project
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
