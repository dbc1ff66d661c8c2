package repository

import (
	"context"

	"github.com/datafocusbr/balancete_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Per-entity repositories are injected into the workflow engine instead of a
// process-global ORM handle, so transaction boundaries stay explicit and
// tests can run against their own database.

type UploadRepo interface {
	Create(ctx context.Context, upload *models.Upload) error
	Get(ctx context.Context, id string) (*models.Upload, error)
	Save(ctx context.Context, upload *models.Upload) error
	// FindPrevious returns the finished upload for the company's previous
	// reporting period. When the period was uploaded more than once, the
	// upload with the most lines wins (the most complete export).
	FindPrevious(ctx context.Context, empresaId string, mes int, ano int) (*models.Upload, error)
	ListByStatus(ctx context.Context, status models.UploadStatus) ([]models.Upload, error)
}

type LedgerLineRepo interface {
	// CreateIgnoreDuplicate inserts the line unless (upload_id, content_hash)
	// already exists; it reports whether a row was actually written.
	CreateIgnoreDuplicate(ctx context.Context, line *models.LedgerLine) (bool, error)
	ListByUpload(ctx context.Context, uploadId string) ([]models.LedgerLine, error)
	// ClosingBalancesByKey maps LedgerLine.ContinuityKey() to saldo_atual for
	// every line of the given upload. Used by the temporal continuity check.
	ClosingBalancesByKey(ctx context.Context, uploadId string) (map[string]decimal.Decimal, error)
	DeleteByUpload(ctx context.Context, uploadId string) error
}

type CatalogFilter struct {
	Status              models.ContaStatus
	TipoConta           models.TipoConta
	Nivel               int
	ClassificacaoPrefix string
	Busca               string
}

type CatalogRepo interface {
	GetByClassificacao(ctx context.Context, classificacao string) (*models.AccountCatalogEntry, error)
	// CreateIfAbsent attempts the insert, ignoring a unique-constraint
	// conflict; it reports whether this call created the row.
	CreateIfAbsent(ctx context.Context, entry *models.AccountCatalogEntry) (bool, error)
	Save(ctx context.Context, entry *models.AccountCatalogEntry) error
	List(ctx context.Context, filter CatalogFilter) ([]models.AccountCatalogEntry, error)
	// DuplicateClassificacoes returns every classification with more than one
	// live catalog row.
	DuplicateClassificacoes(ctx context.Context) ([]string, error)
	// ListByClassificacao returns all rows for one classification ordered by
	// last_seen_at desc, first_seen_at desc (the keep-first consolidation order).
	ListByClassificacao(ctx context.Context, classificacao string) ([]models.AccountCatalogEntry, error)
	DeleteByIds(ctx context.Context, ids []uint) error
}

type AlertFilter struct {
	Status     models.AlertaStatus
	Tipo       models.AlertaTipo
	Severidade models.AlertaSeveridade
	EmpresaId  string
	UploadId   string
	Busca      string
}

type TipoContaCount struct {
	TipoConta models.TipoConta `json:"tipo_conta"`
	Count     int64            `json:"count"`
}

type AlertRepo interface {
	Create(ctx context.Context, alert *models.Alert) error
	Get(ctx context.Context, id uint) (*models.Alert, error)
	Save(ctx context.Context, alert *models.Alert) error
	// HasOpen reports whether an ABERTO alert already exists for the dedup key.
	HasOpen(ctx context.Context, tipo models.AlertaTipo, classificacao string, uploadId string) (bool, error)
	List(ctx context.Context, filter AlertFilter) ([]models.Alert, error)
	CountByTipoConta(ctx context.Context, filter AlertFilter) ([]TipoContaCount, error)
	ArchiveOpenByClassificacao(ctx context.Context, classificacao string) (int64, error)
	DeleteByUpload(ctx context.Context, uploadId string) error
}

type AuditRepo interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

// Repos bundles one implementation of every repository, typically bound to a
// single *gorm.DB or transaction.
type Repos struct {
	Uploads UploadRepo
	Lines   LedgerLineRepo
	Catalog CatalogRepo
	Alerts  AlertRepo
	Audit   AuditRepo
}

func NewGormRepos(db *gorm.DB) *Repos {
	return &Repos{
		Uploads: &gormUploadRepo{db: db},
		Lines:   &gormLedgerLineRepo{db: db},
		Catalog: &gormCatalogRepo{db: db},
		Alerts:  &gormAlertRepo{db: db},
		Audit:   &gormAuditRepo{db: db},
	}
}
