package dto

import "time"

type ErrorResponse struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// JobAccepted acknowledges an out-of-band job submission.
type JobAccepted struct {
	Message string `json:"message"`
	JobID   string `json:"job_id"`
}

type SchemeResponse struct {
	ID          uint      `json:"id"`
	TeacherID   uint      `json:"teacher_id"`
	Title       string    `json:"title"`
	Subject     *string   `json:"subject,omitempty"`
	TotalMarks  int       `json:"total_marks"`
	Keywords    []string  `json:"keywords"`
	Status      string    `json:"status"`
	ErrorDetail *string   `json:"error_detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type SheetResponse struct {
	ID                uint            `json:"id"`
	TeacherID         uint            `json:"teacher_id"`
	SchemeID          uint            `json:"scheme_id"`
	StudentName       *string         `json:"student_name,omitempty"`
	StudentRollNumber *string         `json:"student_roll_number,omitempty"`
	Status            string          `json:"status"`
	ErrorDetail       *string         `json:"error_detail,omitempty"`
	UploadedAt        time.Time       `json:"uploaded_at"`
	ProcessedAt       *time.Time      `json:"processed_at,omitempty"`
	Result            *ResultResponse `json:"result,omitempty"`
}

type ResultResponse struct {
	ID              uint      `json:"id"`
	SheetID         uint      `json:"sheet_id"`
	SchemeID        uint      `json:"scheme_id"`
	RawScore        int       `json:"raw_score"`
	MaxScore        int       `json:"max_score"`
	Percentage      float64   `json:"percentage"`
	SimilarityScore float64   `json:"similarity_score"`
	KeywordScore    float64   `json:"keyword_score"`
	Feedback        string    `json:"feedback"`
	EvaluatedAt     time.Time `json:"evaluated_at"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// ListResponse wraps a paginated collection.
type ListResponse[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// BulkUploadItem reports one file from a bulk sheet upload.
type BulkUploadItem struct {
	Filename    string  `json:"filename"`
	SheetID     *uint   `json:"sheet_id,omitempty"`
	StudentName *string `json:"student_name,omitempty"`
	Error       *string `json:"error,omitempty"`
}

type BulkUploadResponse struct {
	Uploaded int              `json:"uploaded"`
	Failed   int              `json:"failed"`
	Items    []BulkUploadItem `json:"items"`
}

// SkippedSheet explains why a bulk-evaluation member was not queued.
type SkippedSheet struct {
	SheetID uint   `json:"sheet_id"`
	Reason  string `json:"reason"`
}

type BulkEvaluateResponse struct {
	Message   string         `json:"message"`
	JobID     string         `json:"job_id"`
	Submitted int            `json:"submitted"`
	Skipped   []SkippedSheet `json:"skipped,omitempty"`
}
