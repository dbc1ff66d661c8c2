package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/datafocusbr/balancete_backend/models"
	"github.com/datafocusbr/balancete_backend/repository"
	"github.com/shopspring/decimal"
)

// Continuity severity thresholds are absolute amounts in reporting-currency
// units: a retroactive adjustment of a few thousand is already worth a call
// to the accounting firm.
var (
	continuidadeAlta  = decimal.NewFromInt(10000)
	continuidadeMedia = decimal.NewFromInt(1000)
)

// AlertEngine materializes matcher/checker findings as alerts, deduplicating
// against already-open alerts for the same (tipo, classificacao, uploadId).
// It never mutates alert status on its own; that is a reviewer action.
type AlertEngine struct {
	alerts  repository.AlertRepo
	created int
}

func NewAlertEngine(alerts repository.AlertRepo) *AlertEngine {
	return &AlertEngine{alerts: alerts}
}

// Created reports how many alerts this engine instance actually persisted
// (dedup-skipped findings are not counted).
func (e *AlertEngine) Created() int {
	return e.created
}

func (e *AlertEngine) emit(ctx context.Context, alert *models.Alert) error {
	exists, err := e.alerts.HasOpen(ctx, alert.Tipo, alert.Classificacao, alert.UploadId)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	alert.Status = models.AlertaStatusAberto
	if err := e.alerts.Create(ctx, alert); err != nil {
		return err
	}
	e.created++
	return nil
}

func (e *AlertEngine) EmitSaldoDivergente(ctx context.Context, line *models.LedgerLine, d *Divergence) error {
	ev := models.AlertEvidence{
		RowIndex:  line.RowIndex,
		NomeConta: line.NomeConta,
		Conta:     line.Conta,
		SubConta:  line.SubConta,
	}
	ev.SetAmounts(d.Expected, d.Actual)
	return e.emit(ctx, &models.Alert{
		UploadId:      line.UploadId,
		Classificacao: line.Classificacao,
		Tipo:          models.AlertaTipoSaldoDivergente,
		Severidade:    saldoSeverity(d),
		Mensagem: fmt.Sprintf(
			"Saldo divergente na conta %s (%s): esperado %s, encontrado %s",
			line.Classificacao, line.NomeConta, d.Expected.StringFixed(2), d.Actual.StringFixed(2)),
		Payload: ev.ToJSON(),
	})
}

func (e *AlertEngine) EmitContaNova(ctx context.Context, line *models.LedgerLine, entry *models.AccountCatalogEntry) error {
	ev := models.AlertEvidence{
		RowIndex:       line.RowIndex,
		CatalogEntryId: entry.ID,
		NomeConta:      line.NomeConta,
	}
	return e.emit(ctx, &models.Alert{
		UploadId:      line.UploadId,
		Classificacao: line.Classificacao,
		Tipo:          models.AlertaTipoContaNova,
		Severidade:    models.AlertaSeveridadeBaixa,
		Mensagem: fmt.Sprintf(
			"Nova conta detectada: %s - %s", line.Classificacao, line.NomeConta),
		Payload: ev.ToJSON(),
	})
}

func (e *AlertEngine) EmitReclassificada(ctx context.Context, line *models.LedgerLine, entry *models.AccountCatalogEntry) error {
	ev := models.AlertEvidence{
		RowIndex:       line.RowIndex,
		CatalogEntryId: entry.ID,
		NomeConta:      line.NomeConta,
		Campos:         []string{"nomeConta", "tipoConta"},
	}
	return e.emit(ctx, &models.Alert{
		UploadId:      line.UploadId,
		Classificacao: line.Classificacao,
		Tipo:          models.AlertaTipoDadoInconsistente,
		Severidade:    models.AlertaSeveridadeMedia,
		Mensagem: fmt.Sprintf(
			"Conta %s importada com nome/tipo diferente do catalogo (catalogo: %q, arquivo: %q)",
			line.Classificacao, entry.NomeConta, line.NomeConta),
		Payload: ev.ToJSON(),
	})
}

func (e *AlertEngine) EmitDadoInconsistente(ctx context.Context, uploadId string, classificacao string, rowIndex int, reason string) error {
	ev := models.AlertEvidence{RowIndex: rowIndex}
	return e.emit(ctx, &models.Alert{
		UploadId:      uploadId,
		Classificacao: classificacao,
		Tipo:          models.AlertaTipoDadoInconsistente,
		Severidade:    models.AlertaSeveridadeMedia,
		Mensagem:      "Dados inconsistentes na linha: " + reason,
		Payload:       ev.ToJSON(),
	})
}

func (e *AlertEngine) EmitContinuidadeDivergente(ctx context.Context, line *models.LedgerLine, d *Divergence, periodoAnterior string) error {
	ev := models.AlertEvidence{
		RowIndex:        line.RowIndex,
		NomeConta:       line.NomeConta,
		Conta:           line.Conta,
		SubConta:        line.SubConta,
		PeriodoAnterior: periodoAnterior,
	}
	ev.SetAmounts(d.Expected, d.Actual)
	return e.emit(ctx, &models.Alert{
		UploadId:      line.UploadId,
		Classificacao: line.Classificacao,
		Tipo:          models.AlertaTipoContinuidadeTemporal,
		Severidade:    continuidadeSeverity(d),
		Mensagem: fmt.Sprintf(
			"Alteracao retroativa detectada na conta %s (%s): saldo atual de %s era %s, mas o saldo anterior importado e %s",
			line.Classificacao, line.NomeConta, periodoAnterior,
			d.Expected.StringFixed(2), d.Actual.StringFixed(2)),
		Payload: ev.ToJSON(),
	})
}

// saldoSeverity bands on the divergence relative to the closing balance:
// under 1% BAIXA, under 10% MEDIA, otherwise ALTA. Balances under one
// currency unit band against 1 to avoid division blow-ups.
func saldoSeverity(d *Divergence) models.AlertaSeveridade {
	base := d.Actual.Abs()
	if base.LessThan(decimal.NewFromInt(1)) {
		base = decimal.NewFromInt(1)
	}
	ratio := d.Delta.Div(base)
	switch {
	case ratio.GreaterThanOrEqual(decimal.New(1, -1)): // 10%
		return models.AlertaSeveridadeAlta
	case ratio.GreaterThanOrEqual(decimal.New(1, -2)): // 1%
		return models.AlertaSeveridadeMedia
	default:
		return models.AlertaSeveridadeBaixa
	}
}

func continuidadeSeverity(d *Divergence) models.AlertaSeveridade {
	switch {
	case d.Delta.GreaterThan(continuidadeAlta):
		return models.AlertaSeveridadeAlta
	case d.Delta.GreaterThan(continuidadeMedia):
		return models.AlertaSeveridadeMedia
	default:
		return models.AlertaSeveridadeBaixa
	}
}

// UpdateStatus applies a reviewer action to an alert, validating the state
// machine. Resolution stamps resolvedAt/resolvedBy.
func (e *AlertEngine) UpdateStatus(ctx context.Context, id uint, next models.AlertaStatus, actorId string) (*models.Alert, error) {
	alert, err := e.alerts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !alert.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("transicao de status invalida: %s -> %s", alert.Status, next)
	}
	alert.Status = next
	if next == models.AlertaStatusResolvido {
		now := time.Now().UTC()
		alert.ResolvedAt = &now
		alert.ResolvedBy = actorId
	}
	if err := e.alerts.Save(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}
