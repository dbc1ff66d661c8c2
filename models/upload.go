package models

import (
	"fmt"
	"time"
)

// Upload is one trial-balance file processed as a unit. Its lines live in
// linha_uploads partitioned by UploadId; the status is finalized exactly once.
type Upload struct {
	ID              string       `gorm:"primaryKey;size:36" json:"id"`
	EmpresaId       string       `gorm:"index;size:36;not null" json:"empresa_id"`
	Mes             int          `gorm:"not null" json:"mes"`
	Ano             int          `gorm:"not null" json:"ano"`
	Status          UploadStatus `gorm:"index;size:20;not null;default:'PROCESSANDO'" json:"status"`
	ArquivoNome     string       `gorm:"size:255" json:"arquivo_nome"`
	TotalLinhas     int          `gorm:"not null;default:0" json:"total_linhas"`
	ProcessedLinhas int          `gorm:"not null;default:0" json:"processed_linhas"`
	FailedLinhas    int          `gorm:"not null;default:0" json:"failed_linhas"`
	CreatedAt       time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// Period renders the reporting period as "MM/YYYY", the form used for
// catalog first-seen-period comparisons.
func (u *Upload) Period() string {
	return fmt.Sprintf("%02d/%04d", u.Mes, u.Ano)
}

// PeriodAfter reports whether this upload's period is strictly later than
// the given "MM/YYYY" period string.
func (u *Upload) PeriodAfter(period string) bool {
	var mes, ano int
	if _, err := fmt.Sscanf(period, "%d/%d", &mes, &ano); err != nil {
		return false
	}
	if u.Ano != ano {
		return u.Ano > ano
	}
	return u.Mes > mes
}

// PreviousPeriod returns the month/year immediately before this upload's
// period (December of the previous year for January uploads).
func (u *Upload) PreviousPeriod() (mes int, ano int) {
	if u.Mes == 1 {
		return 12, u.Ano - 1
	}
	return u.Mes - 1, u.Ano
}

func (u *Upload) IsFinal() bool {
	return u.Status == UploadStatusConcluido ||
		u.Status == UploadStatusComAlertas ||
		u.Status == UploadStatusCancelado
}
