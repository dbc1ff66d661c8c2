package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerLine is one row of an imported trial balance. Lines are append-only:
// a row is created once during ingestion and never updated, only superseded
// by a later upload for a later period.
//
// ContentHash is a deterministic digest of the immutable business fields;
// the unique (upload_id, content_hash) index makes re-submission of the same
// file idempotent at the line layer.
type LedgerLine struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UploadId      string          `gorm:"uniqueIndex:uniq_upload_hash;index;size:36;not null" json:"upload_id"`
	Classificacao string          `gorm:"index;size:100;not null" json:"classificacao"`
	Conta         string          `gorm:"size:50" json:"conta"`
	SubConta      string          `gorm:"size:50" json:"sub_conta"`
	NomeConta     string          `gorm:"size:255" json:"nome_conta"`
	TipoConta     TipoConta       `gorm:"size:30" json:"tipo_conta"`
	Nivel         int             `gorm:"not null;default:0" json:"nivel"`
	SaldoAnterior decimal.Decimal `gorm:"type:decimal(20,2)" json:"saldo_anterior"`
	Debito        decimal.Decimal `gorm:"type:decimal(20,2)" json:"debito"`
	Credito       decimal.Decimal `gorm:"type:decimal(20,2)" json:"credito"`
	SaldoAtual    decimal.Decimal `gorm:"type:decimal(20,2)" json:"saldo_atual"`
	ContentHash   string          `gorm:"uniqueIndex:uniq_upload_hash;size:64;not null" json:"content_hash"`
	RowIndex      int             `gorm:"not null;default:0" json:"row_index"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (LedgerLine) TableName() string {
	return "linha_uploads"
}

// ContinuityKey identifies the same account line across periods. Within one
// classification there may be several (conta, sub_conta) pairs, so the key is
// the full triple.
func (l *LedgerLine) ContinuityKey() string {
	return l.Classificacao + "|" + l.Conta + "|" + l.SubConta
}
