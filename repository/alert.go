package repository

import (
	"context"
	"errors"

	"github.com/datafocusbr/balancete_backend/models"
	"github.com/datafocusbr/balancete_backend/utils"
	"gorm.io/gorm"
)

type gormAlertRepo struct {
	db *gorm.DB
}

func (r *gormAlertRepo) Create(ctx context.Context, alert *models.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *gormAlertRepo) Get(ctx context.Context, id uint) (*models.Alert, error) {
	var alert models.Alert
	if err := r.db.WithContext(ctx).First(&alert, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &alert, nil
}

func (r *gormAlertRepo) Save(ctx context.Context, alert *models.Alert) error {
	return r.db.WithContext(ctx).Save(alert).Error
}

func (r *gormAlertRepo) HasOpen(ctx context.Context, tipo models.AlertaTipo, classificacao string, uploadId string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("tipo = ? AND classificacao = ? AND upload_id = ? AND status = ?",
			tipo, classificacao, uploadId, models.AlertaStatusAberto).
		Count(&count).Error
	return count > 0, err
}

func (r *gormAlertRepo) applyFilter(ctx context.Context, filter AlertFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Alert{})

	if filter.Status != "" {
		q = q.Where("alertas.status = ?", filter.Status)
	}
	if filter.Tipo != "" {
		q = q.Where("alertas.tipo = ?", filter.Tipo)
	}
	if filter.Severidade != "" {
		q = q.Where("alertas.severidade = ?", filter.Severidade)
	}
	if filter.UploadId != "" {
		q = q.Where("alertas.upload_id = ?", filter.UploadId)
	}
	if filter.EmpresaId != "" {
		q = q.Joins("JOIN uploads ON uploads.id = alertas.upload_id").
			Where("uploads.empresa_id = ?", filter.EmpresaId)
	}
	if filter.Busca != "" {
		term := "%" + filter.Busca + "%"
		q = q.Where("alertas.mensagem LIKE ? OR alertas.classificacao LIKE ?", term, term)
	}
	return q
}

func (r *gormAlertRepo) List(ctx context.Context, filter AlertFilter) ([]models.Alert, error) {
	var alerts []models.Alert
	err := r.applyFilter(ctx, filter).
		Order("alertas.created_at DESC").
		Find(&alerts).Error
	return alerts, err
}

// CountByTipoConta groups alert counts by the catalog's account type for the
// subject classification. Alerts whose classification never reached the
// catalog are grouped under an empty type.
func (r *gormAlertRepo) CountByTipoConta(ctx context.Context, filter AlertFilter) ([]TipoContaCount, error) {
	var counts []TipoContaCount
	err := r.applyFilter(ctx, filter).
		Select("conta_catalogos.tipo_conta AS tipo_conta, COUNT(alertas.id) AS count").
		Joins("LEFT JOIN conta_catalogos ON conta_catalogos.classificacao = alertas.classificacao").
		Group("conta_catalogos.tipo_conta").
		Order("count DESC").
		Scan(&counts).Error
	return counts, err
}

func (r *gormAlertRepo) ArchiveOpenByClassificacao(ctx context.Context, classificacao string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("classificacao = ? AND status IN ?", classificacao,
			[]models.AlertaStatus{models.AlertaStatusAberto, models.AlertaStatusEmAnalise}).
		Update("status", models.AlertaStatusArquivado)
	return res.RowsAffected, res.Error
}

func (r *gormAlertRepo) DeleteByUpload(ctx context.Context, uploadId string) error {
	return r.db.WithContext(ctx).
		Where("upload_id = ?", uploadId).
		Delete(&models.Alert{}).Error
}
