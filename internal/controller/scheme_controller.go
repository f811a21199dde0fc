package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/trnhan/paperscore/config"
	"github.com/trnhan/paperscore/internal/dto"
	"github.com/trnhan/paperscore/internal/model"
	"github.com/trnhan/paperscore/internal/repository"
	"github.com/trnhan/paperscore/internal/storage"
	"github.com/trnhan/paperscore/internal/worker"
)

type SchemeController struct {
	schemes  repository.SchemeRepository
	results  repository.ResultRepository
	store    storage.ObjectStore
	enqueuer worker.Enqueuer
	upload   config.Upload
}

func NewSchemeController(
	schemes repository.SchemeRepository,
	results repository.ResultRepository,
	store storage.ObjectStore,
	enqueuer worker.Enqueuer,
	cfg *config.Config,
) *SchemeController {
	return &SchemeController{
		schemes:  schemes,
		results:  results,
		store:    store,
		enqueuer: enqueuer,
		upload:   cfg.Upload,
	}
}

// CreateScheme accepts a multipart upload of the model answer PDF, stores the
// blob, creates the scheme in processing state, and queues preparation.
func (ctrl *SchemeController) CreateScheme(c *gin.Context) {
	teacherID, err := parseTeacherID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}

	title := c.PostForm("title")
	if title == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "title is required"})
		return
	}

	totalMarks, err := strconv.Atoi(c.PostForm("total_marks"))
	if err != nil || totalMarks <= 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "total_marks must be a positive integer"})
		return
	}

	header, err := c.FormFile("model_answer")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "model_answer file is required"})
		return
	}
	if err := validatePDF(header, ctrl.upload.MaxFileSizeMB); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to read uploaded file"})
		return
	}
	defer file.Close()

	blobKey := fmt.Sprintf("schemes/%s.pdf", uuid.NewString())
	if err := ctrl.store.Upload(c.Request.Context(), blobKey, file, "application/pdf"); err != nil {
		log.Error().Err(err).Msg("CreateScheme: blob upload failed")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to store model answer"})
		return
	}

	scheme := &model.GradingScheme{
		TeacherID:    teacherID,
		Title:        title,
		Subject:      optional(c.PostForm("subject")),
		TotalMarks:   totalMarks,
		ModelBlobKey: blobKey,
		Keywords:     []string{},
		Status:       model.SchemeProcessing,
	}
	if err := ctrl.schemes.Create(scheme); err != nil {
		log.Error().Err(err).Msg("CreateScheme: failed to create scheme record")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to create grading scheme"})
		return
	}

	jobID, err := ctrl.enqueuer.SubmitSchemePreparation(c.Request.Context(), scheme.ID)
	if err != nil {
		log.Error().Err(err).Uint("schemeID", scheme.ID).Msg("CreateScheme: failed to queue preparation")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to queue model answer processing"})
		return
	}

	var resp dto.SchemeResponse
	if err := copier.Copy(&resp, scheme); err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to prepare response"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"scheme": resp, "job_id": jobID})
}

func (ctrl *SchemeController) GetScheme(c *gin.Context) {
	id, err := parseID(c, "scheme_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}

	scheme, err := ctrl.schemes.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Grading scheme not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to fetch grading scheme"})
		return
	}

	var resp dto.SchemeResponse
	if err := copier.Copy(&resp, scheme); err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to prepare response"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (ctrl *SchemeController) ListSchemes(c *gin.Context) {
	teacherID, err := parseTeacherID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	page, limit := parsePagination(c, 20, 100)

	schemes, total, err := ctrl.schemes.FindByTeacher(teacherID, page, limit)
	if err != nil {
		log.Error().Err(err).Msg("ListSchemes: repository error")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to list grading schemes"})
		return
	}

	items := make([]dto.SchemeResponse, len(schemes))
	for i := range schemes {
		if err := copier.Copy(&items[i], &schemes[i]); err != nil {
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to prepare response"})
			return
		}
	}
	c.JSON(http.StatusOK, dto.ListResponse[dto.SchemeResponse]{Items: items, Page: page, Limit: limit, Total: total})
}

// GetStatistics returns aggregate result statistics for one scheme.
func (ctrl *SchemeController) GetStatistics(c *gin.Context) {
	id, err := parseID(c, "scheme_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}

	if _, err := ctrl.schemes.FindByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Grading scheme not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to fetch grading scheme"})
		return
	}

	stats, err := ctrl.results.Statistics(id)
	if err != nil {
		log.Error().Err(err).Uint("schemeID", id).Msg("GetStatistics: repository error")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to compute statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (ctrl *SchemeController) DeleteScheme(c *gin.Context) {
	id, err := parseID(c, "scheme_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}

	scheme, err := ctrl.schemes.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Grading scheme not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to fetch grading scheme"})
		return
	}

	if err := ctrl.store.Delete(c.Request.Context(), scheme.ModelBlobKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Error().Err(err).Uint("schemeID", id).Msg("DeleteScheme: blob delete failed")
	}

	if _, err := ctrl.schemes.Delete(id); err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to delete grading scheme"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Grading scheme deleted"})
}
