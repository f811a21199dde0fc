package repository

import (
	"errors"
	"math"

	"github.com/trnhan/paperscore/internal/model"
	"gorm.io/gorm"
)

// SchemeStatistics aggregates all results recorded against one scheme.
// A result passes when its percentage is at least 50.
type SchemeStatistics struct {
	TotalEvaluated int64   `json:"total_evaluated"`
	AverageScore   float64 `json:"average_score"`
	HighestScore   int     `json:"highest_score"`
	LowestScore    int     `json:"lowest_score"`
	PassRate       float64 `json:"pass_rate"`
}

type ResultRepository interface {
	Create(result *model.Result) error
	FindBySheetID(sheetID uint) (*model.Result, error)
	FindByScheme(schemeID uint, page, limit int) ([]model.Result, int64, error)
	Statistics(schemeID uint) (*SchemeStatistics, error)
	DeleteBySheetID(sheetID uint) (bool, error)
}

type resultRepository struct {
	db *gorm.DB
}

func NewResultRepository(db *gorm.DB) ResultRepository {
	return &resultRepository{db: db}
}

func (r *resultRepository) Create(result *model.Result) error {
	return r.db.Create(result).Error
}

// FindBySheetID returns (nil, nil) when no result exists so callers can use
// presence as the "already graded" check without error juggling.
func (r *resultRepository) FindBySheetID(sheetID uint) (*model.Result, error) {
	var result model.Result
	err := r.db.Where("sheet_id = ?", sheetID).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *resultRepository) FindByScheme(schemeID uint, page, limit int) ([]model.Result, int64, error) {
	var results []model.Result
	var total int64

	query := r.db.Model(&model.Result{}).Where("scheme_id = ?", schemeID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("evaluated_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&results).Error
	return results, total, err
}

func (r *resultRepository) Statistics(schemeID uint) (*SchemeStatistics, error) {
	var row struct {
		TotalEvaluated int64
		AverageScore   *float64
		HighestScore   *int
		LowestScore    *int
		PassCount      int64
	}

	err := r.db.Model(&model.Result{}).
		Select(`COUNT(*) AS total_evaluated,
			AVG(raw_score) AS average_score,
			MAX(raw_score) AS highest_score,
			MIN(raw_score) AS lowest_score,
			COUNT(*) FILTER (WHERE percentage >= 50) AS pass_count`).
		Where("scheme_id = ?", schemeID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	stats := &SchemeStatistics{TotalEvaluated: row.TotalEvaluated}
	if row.TotalEvaluated == 0 {
		return stats, nil
	}
	if row.AverageScore != nil {
		stats.AverageScore = roundTo2(*row.AverageScore)
	}
	if row.HighestScore != nil {
		stats.HighestScore = *row.HighestScore
	}
	if row.LowestScore != nil {
		stats.LowestScore = *row.LowestScore
	}
	stats.PassRate = roundTo2(float64(row.PassCount) / float64(row.TotalEvaluated) * 100)
	return stats, nil
}

func (r *resultRepository) DeleteBySheetID(sheetID uint) (bool, error) {
	res := r.db.Where("sheet_id = ?", sheetID).Delete(&model.Result{})
	return res.RowsAffected > 0, res.Error
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
