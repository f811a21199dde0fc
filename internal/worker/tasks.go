package worker

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task types handled by the evaluation worker.
const (
	TypeSchemePrepare = "scheme:prepare"
	TypeSheetEvaluate = "sheet:evaluate"
	TypeBulkEvaluate  = "sheet:evaluate_bulk"
)

// QueueEvaluation is the queue all pipeline tasks are dispatched to.
const QueueEvaluation = "evaluation"

type SchemePreparePayload struct {
	SchemeID uint `json:"scheme_id"`
}

type SheetEvaluatePayload struct {
	SheetID uint `json:"sheet_id"`
}

type BulkEvaluatePayload struct {
	SheetIDs []uint `json:"sheet_ids"`
}

func NewSchemePrepareTask(schemeID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(SchemePreparePayload{SchemeID: schemeID})
	if err != nil {
		return nil, fmt.Errorf("marshal scheme prepare payload: %w", err)
	}
	return asynq.NewTask(TypeSchemePrepare, payload), nil
}

func NewSheetEvaluateTask(sheetID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(SheetEvaluatePayload{SheetID: sheetID})
	if err != nil {
		return nil, fmt.Errorf("marshal sheet evaluate payload: %w", err)
	}
	return asynq.NewTask(TypeSheetEvaluate, payload), nil
}

func NewBulkEvaluateTask(sheetIDs []uint) (*asynq.Task, error) {
	payload, err := json.Marshal(BulkEvaluatePayload{SheetIDs: sheetIDs})
	if err != nil {
		return nil, fmt.Errorf("marshal bulk evaluate payload: %w", err)
	}
	return asynq.NewTask(TypeBulkEvaluate, payload), nil
}
