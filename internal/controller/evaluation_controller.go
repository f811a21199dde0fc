package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/trnhan/paperscore/internal/dto"
	"github.com/trnhan/paperscore/internal/model"
	"github.com/trnhan/paperscore/internal/repository"
	"github.com/trnhan/paperscore/internal/worker"
)

type EvaluationController struct {
	sheets   repository.SheetRepository
	schemes  repository.SchemeRepository
	results  repository.ResultRepository
	enqueuer worker.Enqueuer
}

func NewEvaluationController(
	sheets repository.SheetRepository,
	schemes repository.SchemeRepository,
	results repository.ResultRepository,
	enqueuer worker.Enqueuer,
) *EvaluationController {
	return &EvaluationController{
		sheets:   sheets,
		schemes:  schemes,
		results:  results,
		enqueuer: enqueuer,
	}
}

// Evaluate queues grading of a single sheet. Preconditions are checked here so
// the caller gets an immediate 4xx instead of a silently skipped job.
func (ctrl *EvaluationController) Evaluate(c *gin.Context) {
	sheetID, err := parseID(c, "sheet_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}

	sheet, err := ctrl.sheets.FindByID(sheetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Answer sheet not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to fetch answer sheet"})
		return
	}

	if reason, status := ctrl.evaluationBlocked(sheet); reason != "" {
		c.JSON(status, dto.ErrorResponse{Message: reason})
		return
	}

	jobID, err := ctrl.enqueuer.SubmitEvaluation(c.Request.Context(), sheetID)
	if err != nil {
		log.Error().Err(err).Uint("sheetID", sheetID).Msg("Evaluate: failed to queue evaluation")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to queue evaluation"})
		return
	}

	c.JSON(http.StatusAccepted, dto.JobAccepted{Message: "Evaluation queued", JobID: jobID})
}

// EvaluateBulk queues grading of many sheets at once. Sheets that fail their
// preconditions are reported as skipped; the rest go out as one batch job.
func (ctrl *EvaluationController) EvaluateBulk(c *gin.Context) {
	var req dto.BulkEvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "sheet_ids must be a non-empty array"})
		return
	}

	eligible := make([]uint, 0, len(req.SheetIDs))
	skipped := make([]dto.SkippedSheet, 0)
	for _, id := range req.SheetIDs {
		sheet, err := ctrl.sheets.FindByID(id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				skipped = append(skipped, dto.SkippedSheet{SheetID: id, Reason: "sheet not found"})
				continue
			}
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to fetch answer sheet"})
			return
		}
		if reason, _ := ctrl.evaluationBlocked(sheet); reason != "" {
			skipped = append(skipped, dto.SkippedSheet{SheetID: id, Reason: reason})
			continue
		}
		eligible = append(eligible, id)
	}

	if len(eligible) == 0 {
		c.JSON(http.StatusBadRequest, dto.BulkEvaluateResponse{
			Message: "No sheets eligible for evaluation",
			Skipped: skipped,
		})
		return
	}

	submission, err := ctrl.enqueuer.SubmitBulkEvaluation(c.Request.Context(), eligible)
	if err != nil {
		log.Error().Err(err).Int("count", len(eligible)).Msg("EvaluateBulk: failed to queue batch")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to queue bulk evaluation"})
		return
	}

	c.JSON(http.StatusAccepted, dto.BulkEvaluateResponse{
		Message:   "Bulk evaluation queued",
		JobID:     submission.JobID,
		Submitted: submission.Submitted,
		Skipped:   skipped,
	})
}

// GetResult returns the recorded result for one sheet.
func (ctrl *EvaluationController) GetResult(c *gin.Context) {
	sheetID, err := parseID(c, "sheet_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}

	result, err := ctrl.results.FindBySheetID(sheetID)
	if err != nil {
		log.Error().Err(err).Uint("sheetID", sheetID).Msg("GetResult: repository error")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to fetch result"})
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "No result recorded for this sheet"})
		return
	}

	var resp dto.ResultResponse
	if err := copier.Copy(&resp, result); err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to prepare response"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListResults returns all results recorded against one scheme, paginated.
func (ctrl *EvaluationController) ListResults(c *gin.Context) {
	schemeID, err := parseID(c, "scheme_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	page, limit := parsePagination(c, 20, 100)

	results, total, err := ctrl.results.FindByScheme(schemeID, page, limit)
	if err != nil {
		log.Error().Err(err).Uint("schemeID", schemeID).Msg("ListResults: repository error")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to list results"})
		return
	}

	items := make([]dto.ResultResponse, len(results))
	for i := range results {
		if err := copier.Copy(&items[i], &results[i]); err != nil {
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to prepare response"})
			return
		}
	}
	c.JSON(http.StatusOK, dto.ListResponse[dto.ResultResponse]{Items: items, Page: page, Limit: limit, Total: total})
}

// evaluationBlocked reports why a sheet cannot be queued right now, or "".
// The same check runs again inside the worker; this copy exists only to give
// the caller a synchronous answer.
func (ctrl *EvaluationController) evaluationBlocked(sheet *model.AnswerSheet) (string, int) {
	if existing, err := ctrl.results.FindBySheetID(sheet.ID); err == nil && existing != nil {
		return "sheet already evaluated", http.StatusConflict
	}

	scheme, err := ctrl.schemes.FindByID(sheet.SchemeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "grading scheme not found", http.StatusConflict
		}
		return "failed to fetch grading scheme", http.StatusInternalServerError
	}
	if scheme.Status != model.SchemeReady {
		return "grading scheme is not ready", http.StatusConflict
	}
	return "", 0
}
