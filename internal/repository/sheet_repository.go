package repository

import (
	"github.com/trnhan/paperscore/internal/model"
	"gorm.io/gorm"
)

// SheetFilter narrows sheet listings. Zero values mean "no filter".
type SheetFilter struct {
	SchemeID uint
	Status   model.SheetStatus
}

type SheetRepository interface {
	Create(sheet *model.AnswerSheet) error
	CreateBatch(sheets []model.AnswerSheet) error
	FindByID(id uint) (*model.AnswerSheet, error)
	FindByTeacher(teacherID uint, filter SheetFilter, page, limit int) ([]model.AnswerSheet, int64, error)
	Update(sheet *model.AnswerSheet) error
	Delete(id uint) (bool, error)
}

type sheetRepository struct {
	db *gorm.DB
}

func NewSheetRepository(db *gorm.DB) SheetRepository {
	return &sheetRepository{db: db}
}

func (r *sheetRepository) Create(sheet *model.AnswerSheet) error {
	return r.db.Create(sheet).Error
}

func (r *sheetRepository) CreateBatch(sheets []model.AnswerSheet) error {
	if len(sheets) == 0 {
		return nil
	}
	return r.db.Create(&sheets).Error
}

func (r *sheetRepository) FindByID(id uint) (*model.AnswerSheet, error) {
	var sheet model.AnswerSheet
	err := r.db.First(&sheet, id).Error
	if err != nil {
		return nil, err
	}
	return &sheet, nil
}

func (r *sheetRepository) FindByTeacher(teacherID uint, filter SheetFilter, page, limit int) ([]model.AnswerSheet, int64, error) {
	var sheets []model.AnswerSheet
	var total int64

	query := r.db.Model(&model.AnswerSheet{}).Where("teacher_id = ?", teacherID)
	if filter.SchemeID != 0 {
		query = query.Where("scheme_id = ?", filter.SchemeID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("uploaded_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&sheets).Error
	return sheets, total, err
}

func (r *sheetRepository) Update(sheet *model.AnswerSheet) error {
	return r.db.Save(sheet).Error
}

func (r *sheetRepository) Delete(id uint) (bool, error) {
	res := r.db.Delete(&model.AnswerSheet{}, id)
	return res.RowsAffected > 0, res.Error
}
