package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SchemeStatus tracks readiness of a grading scheme's model answer.
type SchemeStatus string

const (
	SchemeProcessing SchemeStatus = "processing"
	SchemeReady      SchemeStatus = "ready"
	SchemeFailed     SchemeStatus = "failed"
)

// schemeTransitions lists the legal readiness transitions. failed → ready is
// admitted because a bounded job retry may succeed after an earlier attempt
// recorded the failure. Nothing ever leaves ready.
var schemeTransitions = map[SchemeStatus][]SchemeStatus{
	SchemeProcessing: {SchemeReady, SchemeFailed},
	SchemeFailed:     {SchemeReady, SchemeFailed},
}

// CanTransitionTo reports whether moving to next is a legal readiness transition.
func (s SchemeStatus) CanTransitionTo(next SchemeStatus) bool {
	for _, allowed := range schemeTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// GradingScheme is a teacher-authored grading reference. ModelText and
// Keywords are empty until the preparation job extracts them; Status is ready
// if and only if both are populated.
type GradingScheme struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	TeacherID    uint           `json:"teacher_id" gorm:"not null;index"`
	Title        string         `json:"title" gorm:"not null"`
	Subject      *string        `json:"subject,omitempty"`
	TotalMarks   int            `json:"total_marks" gorm:"not null"`
	ModelBlobKey string         `json:"-" gorm:"not null"`
	ModelText    *string        `json:"model_text,omitempty" gorm:"type:text"`
	Keywords     []string       `json:"keywords" gorm:"serializer:json"`
	Status       SchemeStatus   `json:"status" gorm:"type:varchar(16);not null;default:processing;index"`
	ErrorDetail  *string        `json:"error_detail,omitempty" gorm:"type:text"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Transition moves the scheme to next, rejecting illegal transitions.
func (g *GradingScheme) Transition(next SchemeStatus) error {
	if !g.Status.CanTransitionTo(next) {
		return fmt.Errorf("illegal scheme transition %s -> %s", g.Status, next)
	}
	g.Status = next
	return nil
}
