package model

import (
	"time"

	"gorm.io/gorm"
)

// Result is the persisted outcome of scoring one sheet against its scheme.
// The unique index on SheetID is the concurrency guard against double-scoring:
// its existence is the "already graded" signal the pipeline checks before
// re-running a job.
type Result struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	SheetID         uint           `json:"sheet_id" gorm:"not null;uniqueIndex"`
	SchemeID        uint           `json:"scheme_id" gorm:"not null;index"`
	RawScore        int            `json:"raw_score" gorm:"not null"`
	MaxScore        int            `json:"max_score" gorm:"not null"`
	Percentage      float64        `json:"percentage" gorm:"not null"`
	SimilarityScore float64        `json:"similarity_score" gorm:"not null"`
	KeywordScore    float64        `json:"keyword_score" gorm:"not null"`
	Feedback        string         `json:"feedback" gorm:"type:text"`
	EvaluatedAt     time.Time      `json:"evaluated_at" gorm:"autoCreateTime"`
	DurationSeconds float64        `json:"duration_seconds"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}
