package repository

import (
	"context"

	"github.com/datafocusbr/balancete_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormLedgerLineRepo struct {
	db *gorm.DB
}

func (r *gormLedgerLineRepo) CreateIgnoreDuplicate(ctx context.Context, line *models.LedgerLine) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(line)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormLedgerLineRepo) ListByUpload(ctx context.Context, uploadId string) ([]models.LedgerLine, error) {
	var lines []models.LedgerLine
	err := r.db.WithContext(ctx).
		Where("upload_id = ?", uploadId).
		Order("row_index ASC").
		Find(&lines).Error
	return lines, err
}

func (r *gormLedgerLineRepo) ClosingBalancesByKey(ctx context.Context, uploadId string) (map[string]decimal.Decimal, error) {
	var lines []models.LedgerLine
	err := r.db.WithContext(ctx).
		Select("classificacao", "conta", "sub_conta", "saldo_atual").
		Where("upload_id = ?", uploadId).
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	closing := make(map[string]decimal.Decimal, len(lines))
	for i := range lines {
		closing[lines[i].ContinuityKey()] = lines[i].SaldoAtual
	}
	return closing, nil
}

func (r *gormLedgerLineRepo) DeleteByUpload(ctx context.Context, uploadId string) error {
	return r.db.WithContext(ctx).
		Where("upload_id = ?", uploadId).
		Delete(&models.LedgerLine{}).Error
}
