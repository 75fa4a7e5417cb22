package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/01phanto/EcoLedger/internal/apperrors"
)

// Filter narrows project listings.
type Filter struct {
	Status *Status
}

// Repository stores project records.
type Repository interface {
	Create(ctx context.Context, project *Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	Update(ctx context.Context, project *Project) error
	List(ctx context.Context, filter Filter) ([]*Project, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a gorm-backed project repository.
func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, project *Project) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}
	return nil
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	var project Project
	err := r.db.WithContext(ctx).First(&project, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("project", id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}
	return &project, nil
}

func (r *gormRepository) Update(ctx context.Context, project *Project) error {
	if err := r.db.WithContext(ctx).Save(project).Error; err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}
	return nil
}

func (r *gormRepository) List(ctx context.Context, filter Filter) ([]*Project, error) {
	query := r.db.WithContext(ctx).Order("created_at ASC")
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	var projects []*Project
	if err := query.Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}
	return projects, nil
}
