package repository

import (
	"github.com/trnhan/paperscore/internal/model"
	"gorm.io/gorm"
)

type SchemeRepository interface {
	Create(scheme *model.GradingScheme) error
	FindByID(id uint) (*model.GradingScheme, error)
	FindByTeacher(teacherID uint, page, limit int) ([]model.GradingScheme, int64, error)
	Update(scheme *model.GradingScheme) error
	Delete(id uint) (bool, error)
}

type schemeRepository struct {
	db *gorm.DB
}

func NewSchemeRepository(db *gorm.DB) SchemeRepository {
	return &schemeRepository{db: db}
}

func (r *schemeRepository) Create(scheme *model.GradingScheme) error {
	return r.db.Create(scheme).Error
}

func (r *schemeRepository) FindByID(id uint) (*model.GradingScheme, error) {
	var scheme model.GradingScheme
	err := r.db.First(&scheme, id).Error
	if err != nil {
		return nil, err
	}
	return &scheme, nil
}

func (r *schemeRepository) FindByTeacher(teacherID uint, page, limit int) ([]model.GradingScheme, int64, error) {
	var schemes []model.GradingScheme
	var total int64

	query := r.db.Model(&model.GradingScheme{}).Where("teacher_id = ?", teacherID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&schemes).Error
	return schemes, total, err
}

func (r *schemeRepository) Update(scheme *model.GradingScheme) error {
	return r.db.Save(scheme).Error
}

func (r *schemeRepository) Delete(id uint) (bool, error) {
	res := r.db.Delete(&model.GradingScheme{}, id)
	return res.RowsAffected > 0, res.Error
}
