package projects

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/01phanto/EcoLedger/internal/apperrors"
	"github.com/01phanto/EcoLedger/pkg/workflows"
)

// Requests

type SubmitProjectRequest struct {
	OrganizationName string `json:"organization_name"`
	DisplayName      string `json:"display_name"`
	Location         string `json:"location"`
	Description      string `json:"description"`
	ClaimedTreeCount int    `json:"claimed_tree_count"`
}

// VerificationRequest is the external scoring pipeline's only write
// into the engine.
type VerificationRequest struct {
	DetectedTreeCount     int     `json:"detected_tree_count"`
	VegetationHealthScore float64 `json:"vegetation_health_score"`
	SensorScore           float64 `json:"sensor_score"`
	FinalScore            float64 `json:"final_score"`
}

// Decision is a review outcome.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// Issuer creates the credit batch for an approved project. Implemented
// by the issuance service; injected to keep this package free of
// marketplace types.
type Issuer interface {
	Issue(ctx context.Context, project *Project) error
}

// IssuerFunc adapts a function to the Issuer interface.
type IssuerFunc func(ctx context.Context, project *Project) error

func (f IssuerFunc) Issue(ctx context.Context, project *Project) error { return f(ctx, project) }

// Service manages project submission, verification and review.
type Service struct {
	repo      Repository
	lifecycle *workflows.StateMachine
	issuer    Issuer
	logger    *zap.Logger
}

// NewService creates a project service.
func NewService(repo Repository, issuer Issuer, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		lifecycle: workflows.NewProjectLifecycle(),
		issuer:    issuer,
		logger:    logger,
	}
}

// Submit registers a new project in SUBMITTED state.
func (s *Service) Submit(ctx context.Context, req SubmitProjectRequest) (*Project, error) {
	if req.OrganizationName == "" {
		return nil, apperrors.Invalid("organization_name is required")
	}
	if req.DisplayName == "" {
		return nil, apperrors.Invalid("display_name is required")
	}
	if req.ClaimedTreeCount <= 0 {
		return nil, apperrors.Invalid("claimed_tree_count must be positive, got %d", req.ClaimedTreeCount)
	}

	now := time.Now().UTC()
	project := &Project{
		ID:               uuid.New(),
		OrganizationName: req.OrganizationName,
		DisplayName:      req.DisplayName,
		Location:         req.Location,
		Description:      req.Description,
		ClaimedTreeCount: req.ClaimedTreeCount,
		Status:           StatusSubmitted,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Info("project submitted",
		zap.String("project_id", project.ID.String()),
		zap.String("organization", project.OrganizationName))
	return project, nil
}

// RecordVerification stores the scoring pipeline's results and moves a
// submitted project into review. Only allowed before a review decision.
func (s *Service) RecordVerification(ctx context.Context, id uuid.UUID, req VerificationRequest) (*Project, error) {
	if req.DetectedTreeCount < 0 {
		return nil, apperrors.Invalid("detected_tree_count must not be negative")
	}
	if req.VegetationHealthScore < 0 || req.VegetationHealthScore > 1 {
		return nil, apperrors.Invalid("vegetation_health_score must be in [0,1], got %v", req.VegetationHealthScore)
	}
	if req.SensorScore < 0 || req.SensorScore > 1 {
		return nil, apperrors.Invalid("sensor_score must be in [0,1], got %v", req.SensorScore)
	}
	if req.FinalScore < 0 || req.FinalScore > 100 {
		return nil, apperrors.Invalid("final_score must be in [0,100], got %v", req.FinalScore)
	}

	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.Status != StatusSubmitted && project.Status != StatusUnderReview {
		return nil, apperrors.Conflict(apperrors.ErrInvalidProjectState,
			"cannot record verification in state %s", project.Status)
	}

	now := time.Now().UTC()
	detected := req.DetectedTreeCount
	veg := req.VegetationHealthScore
	sensor := req.SensorScore
	final := req.FinalScore
	project.DetectedTreeCount = &detected
	project.VegetationHealthScore = &veg
	project.SensorScore = &sensor
	project.FinalScore = &final
	project.VerifiedAt = &now
	if project.Status == StatusSubmitted {
		project.Status = StatusUnderReview
	}

	if err := s.repo.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// Review applies a decision. APPROVE triggers credit issuance; the
// issuer is idempotent per project, so a retried approval after a
// partial failure cannot create a second batch.
func (s *Service) Review(ctx context.Context, id uuid.UUID, decision Decision, reviewerID string) (*Project, error) {
	var target Status
	switch decision {
	case DecisionApprove:
		target = StatusApproved
	case DecisionReject:
		target = StatusRejected
	default:
		return nil, apperrors.Invalid("unknown decision %q", decision)
	}

	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.lifecycle.CanTransition(string(project.Status), string(target)) {
		return nil, apperrors.Conflict(apperrors.ErrInvalidProjectState,
			"cannot move project from %s to %s", project.Status, target)
	}

	now := time.Now().UTC()
	project.Status = target
	project.ReviewedAt = &now
	project.ReviewedBy = reviewerID
	if err := s.repo.Update(ctx, project); err != nil {
		return nil, err
	}

	if target == StatusApproved {
		if err := s.issuer.Issue(ctx, project); err != nil {
			// The project is approved but unissued; surfaced loudly so
			// the caller re-checks and retries issuance.
			s.logger.Error("credit issuance failed after approval",
				zap.String("project_id", id.String()), zap.Error(err))
			return nil, err
		}
	}

	s.logger.Info("project reviewed",
		zap.String("project_id", id.String()),
		zap.String("decision", string(decision)),
		zap.String("reviewer", reviewerID))
	return project, nil
}

// GetProject returns one project by id.
func (s *Service) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	return s.repo.GetByID(ctx, id)
}

// ListProjects returns projects, optionally filtered by status.
func (s *Service) ListProjects(ctx context.Context, filter Filter) ([]*Project, error) {
	return s.repo.List(ctx, filter)
}
