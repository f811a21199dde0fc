package dto

// BulkEvaluateRequest triggers evaluation of many uploaded sheets.
type BulkEvaluateRequest struct {
	SheetIDs []uint `json:"sheet_ids" binding:"required,min=1"`
}
