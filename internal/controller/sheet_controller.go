package controller

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

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
)

type SheetController struct {
	sheets  repository.SheetRepository
	schemes repository.SchemeRepository
	results repository.ResultRepository
	store   storage.ObjectStore
	upload  config.Upload
}

func NewSheetController(
	sheets repository.SheetRepository,
	schemes repository.SchemeRepository,
	results repository.ResultRepository,
	store storage.ObjectStore,
	cfg *config.Config,
) *SheetController {
	return &SheetController{
		sheets:  sheets,
		schemes: schemes,
		results: results,
		store:   store,
		upload:  cfg.Upload,
	}
}

// UploadSheet stores a single answer sheet PDF against an existing scheme.
// The sheet starts pending; evaluation is triggered separately.
func (ctrl *SheetController) UploadSheet(c *gin.Context) {
	teacherID, err := parseTeacherID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	schemeID, err := parseID(c, "scheme_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}

	if _, err := ctrl.schemes.FindByID(schemeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Grading scheme not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to fetch grading scheme"})
		return
	}

	header, err := c.FormFile("answer_sheet")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "answer_sheet file is required"})
		return
	}
	if err := validatePDF(header, ctrl.upload.MaxFileSizeMB); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}

	sheet, err := ctrl.storeSheet(c, header, teacherID, schemeID,
		optional(c.PostForm("student_name")), optional(c.PostForm("student_roll_number")))
	if err != nil {
		log.Error().Err(err).Uint("schemeID", schemeID).Msg("UploadSheet: storing sheet failed")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to store answer sheet"})
		return
	}

	var resp dto.SheetResponse
	if err := copier.Copy(&resp, sheet); err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to prepare response"})
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// BulkUploadSheets accepts up to MaxBulkUpload PDFs in one multipart request.
// Each file is processed independently; one bad file never fails the batch.
func (ctrl *SheetController) BulkUploadSheets(c *gin.Context) {
	teacherID, err := parseTeacherID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	schemeID, err := parseID(c, "scheme_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}

	if _, err := ctrl.schemes.FindByID(schemeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Grading scheme not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to fetch grading scheme"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid multipart form"})
		return
	}
	files := form.File["answer_sheets"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "At least one answer_sheets file is required"})
		return
	}
	if len(files) > ctrl.upload.MaxBulkUpload {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Message: fmt.Sprintf("At most %d files per bulk upload", ctrl.upload.MaxBulkUpload),
		})
		return
	}

	resp := dto.BulkUploadResponse{Items: make([]dto.BulkUploadItem, 0, len(files))}
	for _, header := range files {
		item := dto.BulkUploadItem{Filename: header.Filename}

		if err := validatePDF(header, ctrl.upload.MaxFileSizeMB); err != nil {
			item.Error = optional(err.Error())
			resp.Failed++
			resp.Items = append(resp.Items, item)
			continue
		}

		// Student name defaults to the filename stem when not provided per file.
		name := studentNameFromFilename(header.Filename)
		sheet, err := ctrl.storeSheet(c, header, teacherID, schemeID, optional(name), nil)
		if err != nil {
			log.Error().Err(err).Str("filename", header.Filename).Msg("BulkUploadSheets: storing sheet failed")
			item.Error = optional("failed to store answer sheet")
			resp.Failed++
			resp.Items = append(resp.Items, item)
			continue
		}

		item.SheetID = &sheet.ID
		item.StudentName = sheet.StudentName
		resp.Uploaded++
		resp.Items = append(resp.Items, item)
	}

	c.JSON(http.StatusCreated, resp)
}

func (ctrl *SheetController) GetSheet(c *gin.Context) {
	id, err := parseID(c, "sheet_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}

	sheet, err := ctrl.sheets.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Answer sheet not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to fetch answer sheet"})
		return
	}

	var resp dto.SheetResponse
	if err := copier.Copy(&resp, sheet); err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to prepare response"})
		return
	}

	if sheet.Status == model.SheetCompleted {
		result, err := ctrl.results.FindBySheetID(id)
		if err != nil {
			log.Error().Err(err).Uint("sheetID", id).Msg("GetSheet: result lookup failed")
		} else if result != nil {
			var rr dto.ResultResponse
			if err := copier.Copy(&rr, result); err == nil {
				resp.Result = &rr
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (ctrl *SheetController) ListSheets(c *gin.Context) {
	teacherID, err := parseTeacherID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	page, limit := parsePagination(c, 20, 100)

	var filter repository.SheetFilter
	if raw := c.Query("scheme_id"); raw != "" {
		schemeID, err := parseQueryID(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid scheme_id"})
			return
		}
		filter.SchemeID = schemeID
	}
	if raw := c.Query("status"); raw != "" {
		filter.Status = model.SheetStatus(raw)
	}

	sheets, total, err := ctrl.sheets.FindByTeacher(teacherID, filter, page, limit)
	if err != nil {
		log.Error().Err(err).Msg("ListSheets: repository error")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to list answer sheets"})
		return
	}

	items := make([]dto.SheetResponse, len(sheets))
	for i := range sheets {
		if err := copier.Copy(&items[i], &sheets[i]); err != nil {
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to prepare response"})
			return
		}
	}
	c.JSON(http.StatusOK, dto.ListResponse[dto.SheetResponse]{Items: items, Page: page, Limit: limit, Total: total})
}

func (ctrl *SheetController) DeleteSheet(c *gin.Context) {
	id, err := parseID(c, "sheet_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}

	sheet, err := ctrl.sheets.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Answer sheet not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to fetch answer sheet"})
		return
	}

	if err := ctrl.store.Delete(c.Request.Context(), sheet.AnswerBlobKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Error().Err(err).Uint("sheetID", id).Msg("DeleteSheet: blob delete failed")
	}
	if _, err := ctrl.results.DeleteBySheetID(id); err != nil {
		log.Error().Err(err).Uint("sheetID", id).Msg("DeleteSheet: result delete failed")
	}

	if _, err := ctrl.sheets.Delete(id); err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to delete answer sheet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Answer sheet deleted"})
}

func (ctrl *SheetController) storeSheet(
	c *gin.Context,
	header *multipart.FileHeader,
	teacherID, schemeID uint,
	studentName, rollNumber *string,
) (*model.AnswerSheet, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	blobKey := fmt.Sprintf("sheets/%s.pdf", uuid.NewString())
	if err := ctrl.store.Upload(c.Request.Context(), blobKey, file, "application/pdf"); err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}

	sheet := &model.AnswerSheet{
		TeacherID:         teacherID,
		SchemeID:          schemeID,
		StudentName:       studentName,
		StudentRollNumber: rollNumber,
		AnswerBlobKey:     blobKey,
		Status:            model.SheetPending,
	}
	if err := ctrl.sheets.Create(sheet); err != nil {
		return nil, fmt.Errorf("create sheet record: %w", err)
	}
	return sheet, nil
}
