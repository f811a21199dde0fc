package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SheetStatus tracks an answer sheet through the evaluation pipeline.
type SheetStatus string

const (
	SheetPending    SheetStatus = "pending"
	SheetProcessing SheetStatus = "processing"
	SheetCompleted  SheetStatus = "completed"
	SheetFailed     SheetStatus = "failed"
)

// sheetTransitions lists the legal processing transitions. failed → processing
// is admitted for job-runner retry re-entry. completed is terminal.
var sheetTransitions = map[SheetStatus][]SheetStatus{
	SheetPending:    {SheetProcessing, SheetFailed},
	SheetProcessing: {SheetCompleted, SheetFailed},
	SheetFailed:     {SheetProcessing, SheetFailed},
}

// CanTransitionTo reports whether moving to next is a legal processing transition.
func (s SheetStatus) CanTransitionTo(next SheetStatus) bool {
	for _, allowed := range sheetTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AnswerSheet is one student's submitted answer document. Status transitions
// are owned exclusively by the worker pipeline; a completed sheet has exactly
// one Result.
type AnswerSheet struct {
	ID                uint           `gorm:"primarykey" json:"id"`
	TeacherID         uint           `json:"teacher_id" gorm:"not null;index"`
	SchemeID          uint           `json:"scheme_id" gorm:"not null;index"`
	Scheme            GradingScheme  `json:"-" gorm:"foreignKey:SchemeID"`
	StudentName       *string        `json:"student_name,omitempty"`
	StudentRollNumber *string        `json:"student_roll_number,omitempty"`
	AnswerBlobKey     string         `json:"-" gorm:"not null"`
	ExtractedText     *string        `json:"extracted_text,omitempty" gorm:"type:text"`
	Status            SheetStatus    `json:"status" gorm:"type:varchar(16);not null;default:pending;index"`
	ErrorDetail       *string        `json:"error_detail,omitempty" gorm:"type:text"`
	UploadedAt        time.Time      `json:"uploaded_at" gorm:"autoCreateTime"`
	ProcessedAt       *time.Time     `json:"processed_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

// Transition moves the sheet to next, rejecting illegal transitions.
func (a *AnswerSheet) Transition(next SheetStatus) error {
	if !a.Status.CanTransitionTo(next) {
		return fmt.Errorf("illegal sheet transition %s -> %s", a.Status, next)
	}
	a.Status = next
	return nil
}
