// Package controller shapes HTTP requests and responses around the pipeline's
// entry points. Everything long-running is queued; handlers only validate,
// persist the trigger record, and acknowledge.
package controller

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const mb = 1 << 20

func parseID(c *gin.Context, name string) (uint, error) {
	val, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return uint(val), nil
}

func parseTeacherID(c *gin.Context) (uint, error) {
	val, err := strconv.ParseUint(c.Query("teacher_id"), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("teacher_id query parameter is required")
	}
	return uint(val), nil
}

func parsePagination(c *gin.Context, defaultLimit, maxLimit int) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}
	return page, limit
}

func validatePDF(header *multipart.FileHeader, maxSizeMB int) error {
	if header.Header.Get("Content-Type") != "application/pdf" {
		return fmt.Errorf("file %s must be a PDF", header.Filename)
	}
	if header.Size > int64(maxSizeMB)*mb {
		return fmt.Errorf("file %s exceeds the %dMB limit", header.Filename, maxSizeMB)
	}
	return nil
}

func parseQueryID(raw string) (uint, error) {
	val, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(val), nil
}

// studentNameFromFilename derives a display name from an uploaded file's stem,
// e.g. "jane_doe.pdf" becomes "jane doe".
func studentNameFromFilename(filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return strings.TrimSpace(strings.ReplaceAll(stem, "_", " "))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
