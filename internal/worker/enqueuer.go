package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/trnhan/paperscore/config"
)

// BulkSubmission reports how a batch trigger was queued. Per-item outcomes are
// observed later through each sheet's own status.
type BulkSubmission struct {
	JobID     string `json:"job_id"`
	Submitted int    `json:"submitted"`
}

// Enqueuer is the job-submission interface exposed to the routing layer. Every
// job runs out-of-band on the worker; submission returns immediately.
type Enqueuer interface {
	SubmitSchemePreparation(ctx context.Context, schemeID uint) (string, error)
	SubmitEvaluation(ctx context.Context, sheetID uint) (string, error)
	SubmitBulkEvaluation(ctx context.Context, sheetIDs []uint) (*BulkSubmission, error)
}

type asynqEnqueuer struct {
	client   *asynq.Client
	maxRetry int
}

// NewEnqueuer creates the Redis-backed enqueuer. MaxJobRetries bounds how many
// times the worker re-runs a failed job before it is left in its terminal state.
func NewEnqueuer(cfg *config.Config) Enqueuer {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return &asynqEnqueuer{client: client, maxRetry: cfg.Pipeline.MaxJobRetries}
}

func (e *asynqEnqueuer) SubmitSchemePreparation(ctx context.Context, schemeID uint) (string, error) {
	task, err := NewSchemePrepareTask(schemeID)
	if err != nil {
		return "", err
	}

	info, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueEvaluation),
		asynq.MaxRetry(e.maxRetry),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue scheme preparation: %w", err)
	}

	log.Info().Uint("schemeID", schemeID).Str("jobID", info.ID).Msg("Scheme preparation queued")
	return info.ID, nil
}

func (e *asynqEnqueuer) SubmitEvaluation(ctx context.Context, sheetID uint) (string, error) {
	task, err := NewSheetEvaluateTask(sheetID)
	if err != nil {
		return "", err
	}

	info, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueEvaluation),
		asynq.MaxRetry(e.maxRetry),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue evaluation: %w", err)
	}

	log.Info().Uint("sheetID", sheetID).Str("jobID", info.ID).Msg("Evaluation queued")
	return info.ID, nil
}

// SubmitBulkEvaluation queues a single batch job; the worker fans its members
// out in fixed-size windows. The batch task itself is not retried — each
// member failure is recorded on its sheet.
func (e *asynqEnqueuer) SubmitBulkEvaluation(ctx context.Context, sheetIDs []uint) (*BulkSubmission, error) {
	task, err := NewBulkEvaluateTask(sheetIDs)
	if err != nil {
		return nil, err
	}

	info, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueEvaluation),
		asynq.MaxRetry(0),
	)
	if err != nil {
		return nil, fmt.Errorf("enqueue bulk evaluation: %w", err)
	}

	log.Info().Int("count", len(sheetIDs)).Str("jobID", info.ID).Msg("Bulk evaluation queued")
	return &BulkSubmission{JobID: info.ID, Submitted: len(sheetIDs)}, nil
}
