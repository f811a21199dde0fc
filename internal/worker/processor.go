// Package worker runs the evaluation pipeline: scheme preparation, single
// sheet evaluation, and windowed bulk evaluation, all dispatched through a
// Redis-backed task queue.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/trnhan/paperscore/internal/model"
	"github.com/trnhan/paperscore/internal/nlp"
	"github.com/trnhan/paperscore/internal/ocr"
	"github.com/trnhan/paperscore/internal/repository"
	"github.com/trnhan/paperscore/internal/service"
	"github.com/trnhan/paperscore/internal/storage"
)

// ErrSchemeNotReady is the precondition failure for evaluating a sheet whose
// scheme has not finished preparation.
var ErrSchemeNotReady = errors.New("grading scheme is not ready")

// Processor owns every status transition of schemes and sheets. Each handler
// translates stage errors into a terminal status plus a stored message, then
// re-raises for the queue's retry bookkeeping.
type Processor struct {
	schemes    repository.SchemeRepository
	sheets     repository.SheetRepository
	results    repository.ResultRepository
	extractor  ocr.TextExtractor
	keywords   nlp.KeywordExtractor
	scorer     service.ScoringService
	windowSize int
	maxRetries int
	retryDelay time.Duration
}

// NewProcessor assembles the pipeline. maxRetries and retryDelay give bulk
// window members the same retry budget a singly-enqueued evaluation gets from
// the queue runner.
func NewProcessor(
	schemes repository.SchemeRepository,
	sheets repository.SheetRepository,
	results repository.ResultRepository,
	extractor ocr.TextExtractor,
	keywords nlp.KeywordExtractor,
	scorer service.ScoringService,
	windowSize int,
	maxRetries int,
	retryDelay time.Duration,
) *Processor {
	if windowSize < 1 {
		windowSize = 1
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Processor{
		schemes:    schemes,
		sheets:     sheets,
		results:    results,
		extractor:  extractor,
		keywords:   keywords,
		scorer:     scorer,
		windowSize: windowSize,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

func (p *Processor) HandleSchemePrepare(ctx context.Context, t *asynq.Task) error {
	var payload SchemePreparePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return permanent(fmt.Errorf("unmarshal scheme prepare payload: %w", err))
	}
	return p.PrepareScheme(ctx, payload.SchemeID)
}

// PrepareScheme extracts the model answer's text and keywords and marks the
// scheme ready. Text, keywords and the ready status are persisted in a single
// update so readiness implies both fields are populated.
func (p *Processor) PrepareScheme(ctx context.Context, schemeID uint) error {
	scheme, err := p.schemes.FindByID(schemeID)
	if err != nil {
		return permanent(fmt.Errorf("scheme %d not found: %w", schemeID, err))
	}

	if scheme.Status == model.SchemeReady {
		log.Info().Uint("schemeID", schemeID).Msg("Scheme already ready, skipping preparation")
		return nil
	}

	text, err := p.extractor.Extract(ctx, scheme.ModelBlobKey)
	if err != nil {
		return p.failScheme(scheme, fmt.Errorf("extract model answer: %w", err))
	}

	keywords, err := p.keywords.Keywords(text)
	if err != nil {
		return p.failScheme(scheme, fmt.Errorf("extract keywords: %w", err))
	}

	scheme.ModelText = &text
	scheme.Keywords = keywords
	scheme.ErrorDetail = nil
	if err := scheme.Transition(model.SchemeReady); err != nil {
		return permanent(err)
	}
	if err := p.schemes.Update(scheme); err != nil {
		return permanent(fmt.Errorf("persist prepared scheme %d: %w", schemeID, err))
	}

	log.Info().Uint("schemeID", schemeID).Int("keywords", len(keywords)).Msg("Scheme ready")
	return nil
}

func (p *Processor) HandleSheetEvaluate(ctx context.Context, t *asynq.Task) error {
	var payload SheetEvaluatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return permanent(fmt.Errorf("unmarshal sheet evaluate payload: %w", err))
	}
	return p.EvaluateSheet(ctx, payload.SheetID)
}

// EvaluateSheet runs the full pipeline for one sheet: idempotency guard,
// readiness guard, extraction, scoring, result persistence, completion.
func (p *Processor) EvaluateSheet(ctx context.Context, sheetID uint) error {
	sheet, err := p.sheets.FindByID(sheetID)
	if err != nil {
		return permanent(fmt.Errorf("answer sheet %d not found: %w", sheetID, err))
	}

	// A persisted result means the sheet is already graded. This check runs
	// before the readiness guard: a graded sheet must reach completed even if
	// its scheme has since been reset or deleted.
	existing, err := p.results.FindBySheetID(sheetID)
	if err != nil {
		return fmt.Errorf("check existing result for sheet %d: %w", sheetID, err)
	}
	if existing != nil {
		return p.finishGraded(sheet)
	}

	scheme, err := p.schemes.FindByID(sheet.SchemeID)
	if err != nil {
		return p.failSheet(sheet, permanent(fmt.Errorf("grading scheme %d not found: %w", sheet.SchemeID, err)))
	}
	if scheme.Status != model.SchemeReady || scheme.ModelText == nil {
		// Precondition failure, not a pipeline failure: the sheet keeps its
		// current status and the job is not retried.
		return permanent(fmt.Errorf("%w: scheme %d is %s", ErrSchemeNotReady, scheme.ID, scheme.Status))
	}

	start := time.Now()

	if err := sheet.Transition(model.SheetProcessing); err != nil {
		return permanent(err)
	}
	sheet.ErrorDetail = nil
	if err := p.sheets.Update(sheet); err != nil {
		return fmt.Errorf("mark sheet %d processing: %w", sheetID, err)
	}

	text, err := p.extractor.Extract(ctx, sheet.AnswerBlobKey)
	if err != nil {
		return p.failSheet(sheet, fmt.Errorf("extract answer text: %w", err))
	}

	sheet.ExtractedText = &text
	if err := p.sheets.Update(sheet); err != nil {
		return p.failSheet(sheet, fmt.Errorf("persist extracted text: %w", err))
	}

	eval, err := p.scorer.Score(ctx, text, *scheme.ModelText, scheme.Keywords, scheme.TotalMarks)
	if err != nil {
		return p.failSheet(sheet, fmt.Errorf("score answer: %w", err))
	}

	result := &model.Result{
		SheetID:         sheet.ID,
		SchemeID:        scheme.ID,
		RawScore:        eval.RawScore,
		MaxScore:        eval.MaxScore,
		Percentage:      eval.Percentage,
		SimilarityScore: eval.SimilarityScore,
		KeywordScore:    eval.KeywordScore,
		Feedback:        eval.Feedback,
		DurationSeconds: time.Since(start).Seconds(),
	}
	if err := p.results.Create(result); err != nil {
		return p.failSheet(sheet, permanent(fmt.Errorf("persist result: %w", err)))
	}

	now := time.Now()
	sheet.ProcessedAt = &now
	if err := sheet.Transition(model.SheetCompleted); err != nil {
		return permanent(err)
	}
	if err := p.sheets.Update(sheet); err != nil {
		return fmt.Errorf("mark sheet %d completed: %w", sheetID, err)
	}

	log.Info().Uint("sheetID", sheetID).Int("rawScore", eval.RawScore).
		Float64("percentage", eval.Percentage).Msg("Sheet evaluated")
	return nil
}

// finishGraded handles a sheet that already has a persisted Result. Normally
// a no-op success, but when the completion write was interrupted (worker died
// or the final update failed) the sheet is still in processing; finish the
// transition here so a retry repairs the record instead of skipping it.
func (p *Processor) finishGraded(sheet *model.AnswerSheet) error {
	if sheet.Status == model.SheetCompleted {
		log.Info().Uint("sheetID", sheet.ID).Msg("Sheet already evaluated, skipping")
		return nil
	}

	if sheet.ProcessedAt == nil {
		now := time.Now()
		sheet.ProcessedAt = &now
	}
	sheet.ErrorDetail = nil
	if err := sheet.Transition(model.SheetCompleted); err != nil {
		return permanent(err)
	}
	if err := p.sheets.Update(sheet); err != nil {
		return fmt.Errorf("finish completion of sheet %d: %w", sheet.ID, err)
	}

	log.Info().Uint("sheetID", sheet.ID).Msg("Sheet already graded, interrupted completion finished")
	return nil
}

func (p *Processor) HandleBulkEvaluate(ctx context.Context, t *asynq.Task) error {
	var payload BulkEvaluatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return permanent(fmt.Errorf("unmarshal bulk evaluate payload: %w", err))
	}

	failed := p.EvaluateMany(ctx, payload.SheetIDs)
	log.Info().Int("total", len(payload.SheetIDs)).Int("failed", failed).Msg("Bulk evaluation finished")
	return nil
}

// EvaluateMany partitions sheetIDs into fixed-size windows and evaluates each
// window's members concurrently, waiting for a window to fully finish before
// starting the next. A member's terminal failure never cancels its siblings or
// the remaining windows. Returns the number of members that failed.
func (p *Processor) EvaluateMany(ctx context.Context, sheetIDs []uint) int {
	var failed atomic.Int64

	for _, window := range partition(sheetIDs, p.windowSize) {
		var g errgroup.Group
		g.SetLimit(len(window))

		for _, id := range window {
			g.Go(func() error {
				if err := p.evaluateMember(ctx, id); err != nil {
					failed.Add(1)
					log.Error().Err(err).Uint("sheetID", id).Msg("Bulk member evaluation failed")
				}
				return nil
			})
		}

		// Member errors are swallowed above, so Wait only synchronizes.
		_ = g.Wait()
	}

	return int(failed.Load())
}

// evaluateMember runs one window member under the same bounded retry budget
// the queue runner grants a singly-enqueued evaluation: maxRetries retries
// with exponential backoff, stopping early on a permanent failure.
func (p *Processor) evaluateMember(ctx context.Context, sheetID uint) error {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.retryDelay << (attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
			log.Info().Uint("sheetID", sheetID).Int("attempt", attempt+1).Msg("Retrying bulk member evaluation")
		}

		lastErr = p.EvaluateSheet(ctx, sheetID)
		if lastErr == nil || errors.Is(lastErr, asynq.SkipRetry) {
			return lastErr
		}
	}
	return lastErr
}

func partition(ids []uint, size int) [][]uint {
	if size < 1 {
		size = 1
	}
	var windows [][]uint
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		windows = append(windows, ids[start:end])
	}
	return windows
}

// failSheet records a terminal failure on the sheet, then re-raises the cause
// so the job runner can apply its retry budget.
func (p *Processor) failSheet(sheet *model.AnswerSheet, cause error) error {
	now := time.Now()
	msg := cause.Error()
	sheet.ErrorDetail = &msg
	sheet.ProcessedAt = &now
	if err := sheet.Transition(model.SheetFailed); err != nil {
		log.Error().Err(err).Uint("sheetID", sheet.ID).Msg("Could not transition sheet to failed")
	} else if err := p.sheets.Update(sheet); err != nil {
		log.Error().Err(err).Uint("sheetID", sheet.ID).Msg("Could not persist sheet failure")
	}

	if isPermanent(cause) {
		return permanent(cause)
	}
	return cause
}

func (p *Processor) failScheme(scheme *model.GradingScheme, cause error) error {
	msg := cause.Error()
	scheme.ErrorDetail = &msg
	if err := scheme.Transition(model.SchemeFailed); err != nil {
		log.Error().Err(err).Uint("schemeID", scheme.ID).Msg("Could not transition scheme to failed")
	} else if err := p.schemes.Update(scheme); err != nil {
		log.Error().Err(err).Uint("schemeID", scheme.ID).Msg("Could not persist scheme failure")
	}

	if isPermanent(cause) {
		return permanent(cause)
	}
	return cause
}

// isPermanent classifies errors that bounded retries cannot fix: corrupt or
// empty documents and missing blobs.
func isPermanent(err error) bool {
	return errors.Is(err, ocr.ErrUnreadableDocument) ||
		errors.Is(err, ocr.ErrEmptyDocument) ||
		errors.Is(err, storage.ErrNotFound)
}

func permanent(err error) error {
	if errors.Is(err, asynq.SkipRetry) {
		return err
	}
	return errors.Join(err, asynq.SkipRetry)
}
