package projects

import (
	"time"

	"github.com/google/uuid"
)

// Status is a project's lifecycle state. APPROVED and REJECTED are
// terminal.
type Status string

const (
	StatusSubmitted   Status = "SUBMITTED"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
)

// Project represents a verified restoration effort submitted by an
// organization. Verification fields are written once by the external
// scoring pipeline; nil means no verification has been recorded.
type Project struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationName string    `gorm:"not null" json:"organization_name"`
	DisplayName      string    `gorm:"not null" json:"display_name"`
	Location         string    `json:"location"`
	Description      string    `json:"description"`
	ClaimedTreeCount int       `gorm:"not null" json:"claimed_tree_count"`
	Status           Status    `gorm:"not null;default:'SUBMITTED'" json:"status"`

	DetectedTreeCount     *int     `json:"detected_tree_count,omitempty"`
	VegetationHealthScore *float64 `json:"vegetation_health_score,omitempty"` // [0,1]
	SensorScore           *float64 `json:"sensor_score,omitempty"`            // [0,1]
	FinalScore            *float64 `json:"final_score,omitempty"`             // [0,100]

	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy string     `json:"reviewed_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Verified reports whether the scoring pipeline has written results.
func (p *Project) Verified() bool {
	return p.VerifiedAt != nil
}
