package repository

import (
	"context"

	"github.com/datafocusbr/balancete_backend/models"
	"gorm.io/gorm"
)

type gormAuditRepo struct {
	db *gorm.DB
}

func (r *gormAuditRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
