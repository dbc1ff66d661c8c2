package repository

import (
	"context"
	"errors"

	"github.com/datafocusbr/balancete_backend/models"
	"github.com/datafocusbr/balancete_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormCatalogRepo struct {
	db *gorm.DB
}

func (r *gormCatalogRepo) GetByClassificacao(ctx context.Context, classificacao string) (*models.AccountCatalogEntry, error) {
	var entry models.AccountCatalogEntry
	err := r.db.WithContext(ctx).
		Where("classificacao = ?", classificacao).
		Order("last_seen_at DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (r *gormCatalogRepo) CreateIfAbsent(ctx context.Context, entry *models.AccountCatalogEntry) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "classificacao"}},
			DoNothing: true,
		}).
		Create(entry)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormCatalogRepo) Save(ctx context.Context, entry *models.AccountCatalogEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

func (r *gormCatalogRepo) List(ctx context.Context, filter CatalogFilter) ([]models.AccountCatalogEntry, error) {
	q := r.db.WithContext(ctx).Model(&models.AccountCatalogEntry{})

	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.TipoConta != "" {
		q = q.Where("tipo_conta = ?", filter.TipoConta)
	}
	if filter.Nivel > 0 {
		q = q.Where("nivel = ?", filter.Nivel)
	}
	// Prefix lookup takes priority over free-text search.
	if filter.ClassificacaoPrefix != "" {
		q = q.Where("classificacao LIKE ?", filter.ClassificacaoPrefix+"%")
	} else if filter.Busca != "" {
		term := "%" + filter.Busca + "%"
		q = q.Where("classificacao LIKE ? OR nome_conta LIKE ?", term, term)
	}

	var entries []models.AccountCatalogEntry
	err := q.Order("classificacao ASC").Find(&entries).Error
	return entries, err
}

func (r *gormCatalogRepo) DuplicateClassificacoes(ctx context.Context) ([]string, error) {
	var classificacoes []string
	err := r.db.WithContext(ctx).
		Model(&models.AccountCatalogEntry{}).
		Select("classificacao").
		Group("classificacao").
		Having("COUNT(*) > 1").
		Pluck("classificacao", &classificacoes).Error
	return classificacoes, err
}

func (r *gormCatalogRepo) ListByClassificacao(ctx context.Context, classificacao string) ([]models.AccountCatalogEntry, error) {
	var entries []models.AccountCatalogEntry
	err := r.db.WithContext(ctx).
		Where("classificacao = ?", classificacao).
		Order("last_seen_at DESC").
		Order("first_seen_at DESC").
		Find(&entries).Error
	return entries, err
}

func (r *gormCatalogRepo) DeleteByIds(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.AccountCatalogEntry{}).Error
}
