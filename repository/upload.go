package repository

import (
	"context"
	"errors"

	"github.com/datafocusbr/balancete_backend/models"
	"github.com/datafocusbr/balancete_backend/utils"
	"gorm.io/gorm"
)

type gormUploadRepo struct {
	db *gorm.DB
}

func (r *gormUploadRepo) Create(ctx context.Context, upload *models.Upload) error {
	return r.db.WithContext(ctx).Create(upload).Error
}

func (r *gormUploadRepo) Get(ctx context.Context, id string) (*models.Upload, error) {
	var upload models.Upload
	if err := r.db.WithContext(ctx).First(&upload, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &upload, nil
}

func (r *gormUploadRepo) Save(ctx context.Context, upload *models.Upload) error {
	return r.db.WithContext(ctx).Save(upload).Error
}

func (r *gormUploadRepo) FindPrevious(ctx context.Context, empresaId string, mes int, ano int) (*models.Upload, error) {
	var upload models.Upload
	err := r.db.WithContext(ctx).
		Where("empresa_id = ? AND mes = ? AND ano = ?", empresaId, mes, ano).
		Where("status IN ?", []models.UploadStatus{models.UploadStatusConcluido, models.UploadStatusComAlertas}).
		Order("total_linhas DESC").
		Order("created_at DESC").
		First(&upload).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &upload, nil
}

func (r *gormUploadRepo) ListByStatus(ctx context.Context, status models.UploadStatus) ([]models.Upload, error) {
	var uploads []models.Upload
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&uploads).Error
	return uploads, err
}
