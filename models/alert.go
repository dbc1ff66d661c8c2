package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Alert is a materialized finding requiring human attention. At most one
// ABERTO alert may exist per (tipo, classificacao, upload_id); the alert
// engine enforces this before creating. Status is mutated only by an
// external reviewer action, never by a later unrelated upload.
type Alert struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	UploadId      string           `gorm:"index;size:36;not null" json:"upload_id"`
	Classificacao string           `gorm:"index;size:100" json:"classificacao"`
	Tipo          AlertaTipo       `gorm:"index;size:40;not null" json:"tipo"`
	Severidade    AlertaSeveridade `gorm:"index;size:10;not null" json:"severidade"`
	Status        AlertaStatus     `gorm:"index;size:15;not null;default:'ABERTO'" json:"status"`
	Mensagem      string           `gorm:"type:text" json:"mensagem"`
	Payload       string           `gorm:"type:text" json:"payload"`
	ResolvedBy    string           `gorm:"size:36" json:"resolved_by"`
	ResolvedAt    *time.Time       `json:"resolved_at"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Alert) TableName() string {
	return "alertas"
}

// AlertEvidence is the structured payload persisted with each alert.
// Decimal fields are rendered with two fraction digits so the evidence is
// stable across re-processing.
type AlertEvidence struct {
	RowIndex        int      `json:"row_index,omitempty"`
	Expected        string   `json:"expected,omitempty"`
	Actual          string   `json:"actual,omitempty"`
	Delta           string   `json:"delta,omitempty"`
	CatalogEntryId  uint     `json:"catalog_entry_id,omitempty"`
	NomeConta       string   `json:"nome_conta,omitempty"`
	Conta           string   `json:"conta,omitempty"`
	SubConta        string   `json:"sub_conta,omitempty"`
	PeriodoAnterior string   `json:"periodo_anterior,omitempty"`
	Campos          []string `json:"campos,omitempty"`
}

func (e *AlertEvidence) SetAmounts(expected, actual decimal.Decimal) {
	e.Expected = expected.StringFixed(2)
	e.Actual = actual.StringFixed(2)
	e.Delta = actual.Sub(expected).Abs().StringFixed(2)
}

func (e *AlertEvidence) ToJSON() string {
	b, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(b)
}
