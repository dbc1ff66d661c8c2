package models

import "time"

// AccountCatalogEntry is the system's memory of every classification ever
// seen across all companies. Exactly one live row per Classificacao; the
// unique index is load-bearing (catalog creates race across batches and are
// serialized on it, see workflow.CatalogMatcher).
type AccountCatalogEntry struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	Classificacao string      `gorm:"uniqueIndex;size:100;not null" json:"classificacao"`
	NomeConta     string      `gorm:"size:255" json:"nome_conta"`
	TipoConta     TipoConta   `gorm:"index;size:30" json:"tipo_conta"`
	Nivel         int         `gorm:"index;not null;default:0" json:"nivel"`
	Status        ContaStatus `gorm:"index;size:20;not null;default:'NOVA'" json:"status"`
	// FirstSeenPeriod is the "MM/YYYY" period of the upload that created the
	// entry. NOVA is only promoted to ATIVA when a later period observes the
	// classification again.
	FirstSeenPeriod string    `gorm:"size:7" json:"first_seen_period"`
	FirstSeenAt     time.Time `gorm:"not null" json:"first_seen_at"`
	LastSeenAt      time.Time `gorm:"index;not null" json:"last_seen_at"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AccountCatalogEntry) TableName() string {
	return "conta_catalogos"
}
