package workflow_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/datafocusbr/balancete_backend/config"
	"github.com/datafocusbr/balancete_backend/models"
	"github.com/datafocusbr/balancete_backend/repository"
	"github.com/datafocusbr/balancete_backend/workflow"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "balancete_test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestProcessor(db *gorm.DB) *workflow.UploadProcessor {
	return &workflow.UploadProcessor{
		DB:       db,
		Logger:   config.GetLogger(),
		PoolSize: 2,
		Audit:    workflow.NopAuditHook{},
	}
}

func createUpload(t *testing.T, db *gorm.DB, empresaId string, mes, ano int) *models.Upload {
	t.Helper()
	upload := &models.Upload{
		ID:        uuid.NewString(),
		EmpresaId: empresaId,
		Mes:       mes,
		Ano:       ano,
		Status:    models.UploadStatusProcessando,
	}
	if err := repository.NewGormRepos(db).Uploads.Create(context.Background(), upload); err != nil {
		t.Fatalf("create upload: %v", err)
	}
	return upload
}

func row(classificacao, nome, anterior, debito, credito, atual string) workflow.RawRow {
	return workflow.RawRow{
		workflow.FieldClassificacao: classificacao,
		workflow.FieldConta:         "1001",
		workflow.FieldNomeConta:     nome,
		workflow.FieldSaldoAnterior: anterior,
		workflow.FieldDebito:        debito,
		workflow.FieldCredito:       credito,
		workflow.FieldSaldoAtual:    atual,
	}
}

func seedAtiva(t *testing.T, db *gorm.DB, classificacao, nome string) {
	t.Helper()
	now := time.Now().UTC()
	entry := &models.AccountCatalogEntry{
		Classificacao:   classificacao,
		NomeConta:       nome,
		TipoConta:       models.ParseTipoConta("", classificacao),
		Nivel:           3,
		Status:          models.ContaStatusAtiva,
		FirstSeenPeriod: "01/2024",
		FirstSeenAt:     now,
		LastSeenAt:      now,
	}
	if err := db.Create(entry).Error; err != nil {
		t.Fatalf("seed catalog entry: %v", err)
	}
}

func alertsFor(t *testing.T, db *gorm.DB, uploadId string) []models.Alert {
	t.Helper()
	alerts, err := repository.NewGormRepos(db).Alerts.List(context.Background(),
		repository.AlertFilter{UploadId: uploadId})
	if err != nil {
		t.Fatalf("list alerts: %v", err)
	}
	return alerts
}

func TestProcessUpload_BalancedBatchCompletesWithoutAlerts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedAtiva(t, db, "1.1.01", "Caixa")
	seedAtiva(t, db, "1.1.02", "Bancos")

	upload := createUpload(t, db, "emp-1", 3, 2025)
	result, err := newTestProcessor(db).ProcessUpload(ctx, upload.ID, []workflow.RawRow{
		row("1.1.01", "Caixa", "1000,00", "500,00", "200,00", "1300,00"),
		row("1.1.02", "Bancos", "2.500,00", "0,00", "500,00", "2000,00"),
	})
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if result.Processed != 2 || result.SkippedDuplicates != 0 || len(result.FailedLines) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.AlertsCreated != 0 {
		t.Fatalf("expected no alerts, got %d", result.AlertsCreated)
	}

	refreshed, err := repository.NewGormRepos(db).Uploads.Get(ctx, upload.ID)
	if err != nil {
		t.Fatalf("reload upload: %v", err)
	}
	if refreshed.Status != models.UploadStatusConcluido {
		t.Fatalf("expected CONCLUIDO, got %s", refreshed.Status)
	}
	if refreshed.ProcessedLinhas != 2 || refreshed.TotalLinhas != 2 {
		t.Fatalf("unexpected counters: %+v", refreshed)
	}
}

func TestProcessUpload_BalanceViolationRaisesSaldoDivergente(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedAtiva(t, db, "1.1.01", "Caixa")

	upload := createUpload(t, db, "emp-1", 3, 2025)
	// 1000 + 500 - 200 = 1300, file says 1250: delta 50 on base 1250 = 4% -> MEDIA.
	result, err := newTestProcessor(db).ProcessUpload(ctx, upload.ID, []workflow.RawRow{
		row("1.1.01", "Caixa", "1000,00", "500,00", "200,00", "1250,00"),
	})
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if result.AlertsCreated != 1 {
		t.Fatalf("expected 1 alert, got %d", result.AlertsCreated)
	}

	alerts := alertsFor(t, db, upload.ID)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert row, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Tipo != models.AlertaTipoSaldoDivergente {
		t.Fatalf("expected SALDO_DIVERGENTE, got %s", a.Tipo)
	}
	if a.Severidade != models.AlertaSeveridadeMedia {
		t.Fatalf("expected MEDIA severity, got %s", a.Severidade)
	}
	if a.Status != models.AlertaStatusAberto {
		t.Fatalf("expected ABERTO, got %s", a.Status)
	}

	refreshed, _ := repository.NewGormRepos(db).Uploads.Get(ctx, upload.ID)
	if refreshed.Status != models.UploadStatusComAlertas {
		t.Fatalf("expected COM_ALERTAS, got %s", refreshed.Status)
	}
}

func TestProcessUpload_EpsilonToleratesRoundingNoise(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedAtiva(t, db, "1.1.01", "Caixa")

	upload := createUpload(t, db, "emp-1", 3, 2025)
	// Off by exactly 0.01: inside the tolerance, no alert.
	result, err := newTestProcessor(db).ProcessUpload(ctx, upload.ID, []workflow.RawRow{
		row("1.1.01", "Caixa", "1000,00", "500,00", "200,00", "1300,01"),
	})
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if result.AlertsCreated != 0 {
		t.Fatalf("expected no alerts within epsilon, got %d", result.AlertsCreated)
	}
}

func TestProcessUpload_MalformedLineIsRecordedAndBatchContinues(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedAtiva(t, db, "1.1.01", "Caixa")
	seedAtiva(t, db, "1.1.02", "Bancos")

	upload := createUpload(t, db, "emp-1", 3, 2025)
	bad := row("1.1.02", "Bancos", "not-a-number", "0", "0", "0")
	result, err := newTestProcessor(db).ProcessUpload(ctx, upload.ID, []workflow.RawRow{
		row("1.1.01", "Caixa", "100,00", "0,00", "0,00", "100,00"),
		bad,
	})
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("expected 1 processed, got %d", result.Processed)
	}
	if len(result.FailedLines) != 1 || result.FailedLines[0].Index != 1 {
		t.Fatalf("unexpected failed lines: %+v", result.FailedLines)
	}

	alerts := alertsFor(t, db, upload.ID)
	if len(alerts) != 1 || alerts[0].Tipo != models.AlertaTipoDadoInconsistente {
		t.Fatalf("expected one DADO_INCONSISTENTE alert, got %+v", alerts)
	}

	refreshed, _ := repository.NewGormRepos(db).Uploads.Get(ctx, upload.ID)
	if refreshed.FailedLinhas != 1 || refreshed.TotalLinhas != 2 {
		t.Fatalf("unexpected counters: %+v", refreshed)
	}
}

func TestProcessUpload_TotalsRowIsDroppedSilently(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedAtiva(t, db, "1.1.01", "Caixa")

	upload := createUpload(t, db, "emp-1", 3, 2025)
	totals := workflow.RawRow{
		workflow.FieldClassificacao: "TOTAL GERAL",
		workflow.FieldSaldoAtual:    "1300,00",
	}
	result, err := newTestProcessor(db).ProcessUpload(ctx, upload.ID, []workflow.RawRow{
		row("1.1.01", "Caixa", "1000,00", "500,00", "200,00", "1300,00"),
		totals,
	})
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if result.Processed != 1 || len(result.FailedLines) != 0 {
		t.Fatalf("totals row should not count as processed or failed: %+v", result)
	}
}

func TestProcessUpload_DuplicateLineWithinBatchIsSkippedOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedAtiva(t, db, "1.1.01", "Caixa")

	upload := createUpload(t, db, "emp-1", 3, 2025)
	r := row("1.1.01", "Caixa", "100,00", "0,00", "0,00", "100,00")
	result, err := newTestProcessor(db).ProcessUpload(ctx, upload.ID, []workflow.RawRow{r, r})
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if result.Processed != 2 || result.SkippedDuplicates != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	lines, err := repository.NewGormRepos(db).Lines.ListByUpload(ctx, upload.ID)
	if err != nil {
		t.Fatalf("list lines: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected a single persisted line, got %d", len(lines))
	}
}

func TestProcessUpload_ResubmissionIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedAtiva(t, db, "1.1.01", "Caixa")

	upload := createUpload(t, db, "emp-1", 3, 2025)
	rows := []workflow.RawRow{
		// Divergent on purpose so re-processing also exercises alert dedup.
		row("1.1.01", "Caixa", "1000,00", "0,00", "0,00", "900,00"),
	}
	p := newTestProcessor(db)

	first, err := p.ProcessUpload(ctx, upload.ID, rows)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := p.ProcessUpload(ctx, upload.ID, rows)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.Processed != second.Processed {
		t.Fatalf("processed count changed on re-run: %d vs %d", first.Processed, second.Processed)
	}
	if second.SkippedDuplicates != 1 {
		t.Fatalf("expected the re-run to skip the persisted line, got %+v", second)
	}
	if second.AlertsCreated != 0 {
		t.Fatalf("re-run must not duplicate open alerts, created %d", second.AlertsCreated)
	}
	if alerts := alertsFor(t, db, upload.ID); len(alerts) != 1 {
		t.Fatalf("expected exactly one alert after two runs, got %d", len(alerts))
	}
}

func TestProcessUpload_UnknownClassificationBecomesNovaWithAlert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	upload := createUpload(t, db, "emp-1", 3, 2025)
	result, err := newTestProcessor(db).ProcessUpload(ctx, upload.ID, []workflow.RawRow{
		row("9.9.99", "Conta Inesperada", "0,00", "10,00", "0,00", "10,00"),
	})
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if result.AlertsCreated != 1 {
		t.Fatalf("expected CONTA_NOVA alert, got %d alerts", result.AlertsCreated)
	}

	entry, err := repository.NewGormRepos(db).Catalog.GetByClassificacao(ctx, "9.9.99")
	if err != nil {
		t.Fatalf("catalog lookup: %v", err)
	}
	if entry.Status != models.ContaStatusNova {
		t.Fatalf("expected NOVA, got %s", entry.Status)
	}
	if entry.FirstSeenPeriod != "03/2025" {
		t.Fatalf("expected first seen 03/2025, got %s", entry.FirstSeenPeriod)
	}

	alerts := alertsFor(t, db, upload.ID)
	if len(alerts) != 1 || alerts[0].Tipo != models.AlertaTipoContaNova {
		t.Fatalf("expected one CONTA_NOVA alert, got %+v", alerts)
	}
}

func TestProcessUpload_NovaIsPromotedToAtivaInLaterPeriod(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	p := newTestProcessor(db)

	first := createUpload(t, db, "emp-1", 1, 2025)
	if _, err := p.ProcessUpload(ctx, first.ID, []workflow.RawRow{
		row("3.1.01", "Receita de Vendas", "0,00", "0,00", "100,00", "-100,00"),
	}); err != nil {
		t.Fatalf("first period: %v", err)
	}

	catalog := repository.NewGormRepos(db).Catalog
	entry, _ := catalog.GetByClassificacao(ctx, "3.1.01")
	if entry.Status != models.ContaStatusNova {
		t.Fatalf("expected NOVA after first sighting, got %s", entry.Status)
	}

	second := createUpload(t, db, "emp-1", 2, 2025)
	if _, err := p.ProcessUpload(ctx, second.ID, []workflow.RawRow{
		row("3.1.01", "Receita de Vendas", "-100,00", "0,00", "50,00", "-150,00"),
	}); err != nil {
		t.Fatalf("second period: %v", err)
	}

	entry, _ = catalog.GetByClassificacao(ctx, "3.1.01")
	if entry.Status != models.ContaStatusAtiva {
		t.Fatalf("expected promotion to ATIVA, got %s", entry.Status)
	}
}

func TestProcessUpload_RetroactiveChangeRaisesContinuityAlert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedAtiva(t, db, "1.1.01", "Caixa")
	p := newTestProcessor(db)

	january := createUpload(t, db, "emp-1", 1, 2025)
	if _, err := p.ProcessUpload(ctx, january.ID, []workflow.RawRow{
		row("1.1.01", "Caixa", "0,00", "100,00", "0,00", "100,00"),
	}); err != nil {
		t.Fatalf("january: %v", err)
	}

	// February opens with 2.100 where January closed at 100: a 2.000
	// retroactive adjustment, which bands as MEDIA.
	february := createUpload(t, db, "emp-1", 2, 2025)
	result, err := p.ProcessUpload(ctx, february.ID, []workflow.RawRow{
		row("1.1.01", "Caixa", "2100,00", "0,00", "0,00", "2100,00"),
	})
	if err != nil {
		t.Fatalf("february: %v", err)
	}
	if result.AlertsCreated != 1 {
		t.Fatalf("expected continuity alert, got %d", result.AlertsCreated)
	}

	alerts := alertsFor(t, db, february.ID)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Tipo != models.AlertaTipoContinuidadeTemporal {
		t.Fatalf("expected CONTINUIDADE_TEMPORAL_DIVERGENTE, got %s", a.Tipo)
	}
	if a.Severidade != models.AlertaSeveridadeMedia {
		t.Fatalf("expected MEDIA severity for a 2000 delta, got %s", a.Severidade)
	}
}

func TestProcessUpload_NoPreviousPeriodSkipsContinuityCheck(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedAtiva(t, db, "1.1.01", "Caixa")

	upload := createUpload(t, db, "emp-1", 1, 2025)
	result, err := newTestProcessor(db).ProcessUpload(ctx, upload.ID, []workflow.RawRow{
		row("1.1.01", "Caixa", "5000,00", "0,00", "0,00", "5000,00"),
	})
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if result.AlertsCreated != 0 {
		t.Fatalf("no previous period: expected no alerts, got %d", result.AlertsCreated)
	}
}

func TestProcessUpload_StorageFailureCancelsBatchAndRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	upload := createUpload(t, db, "emp-1", 3, 2025)
	// Alert creation is the first write that touches alertas; removing the
	// table forces a mid-batch storage failure.
	if err := db.Exec("DROP TABLE alertas").Error; err != nil {
		t.Fatalf("drop alertas: %v", err)
	}

	_, err := newTestProcessor(db).ProcessUpload(ctx, upload.ID, []workflow.RawRow{
		row("9.9.99", "Conta Inesperada", "0,00", "10,00", "0,00", "10,00"),
	})
	if err == nil {
		t.Fatal("expected a batch failure")
	}

	refreshed, getErr := repository.NewGormRepos(db).Uploads.Get(ctx, upload.ID)
	if getErr != nil {
		t.Fatalf("reload upload: %v", getErr)
	}
	if refreshed.Status != models.UploadStatusCancelado {
		t.Fatalf("expected CANCELADO, got %s", refreshed.Status)
	}

	var lineCount int64
	if err := db.Model(&models.LedgerLine{}).Where("upload_id = ?", upload.ID).Count(&lineCount).Error; err != nil {
		t.Fatalf("count lines: %v", err)
	}
	if lineCount != 0 {
		t.Fatalf("batch writes must roll back, found %d lines", lineCount)
	}
}

func TestProcessUpload_PreloadFailureMarksCancelado(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	prev := createUpload(t, db, "emp-1", 2, 2025)
	prev.Status = models.UploadStatusConcluido
	if err := repository.NewGormRepos(db).Uploads.Save(ctx, prev); err != nil {
		t.Fatalf("finish previous upload: %v", err)
	}

	upload := createUpload(t, db, "emp-1", 3, 2025)
	// Loading the previous period's closings is the first read that touches
	// linha_uploads; removing the table fails the batch before its own
	// transaction even begins.
	if err := db.Exec("DROP TABLE linha_uploads").Error; err != nil {
		t.Fatalf("drop linha_uploads: %v", err)
	}

	_, err := newTestProcessor(db).ProcessUpload(ctx, upload.ID, []workflow.RawRow{
		row("1.1.01", "Caixa", "1000,00", "500,00", "200,00", "1300,00"),
	})
	if err == nil {
		t.Fatal("expected a batch failure")
	}

	refreshed, getErr := repository.NewGormRepos(db).Uploads.Get(ctx, upload.ID)
	if getErr != nil {
		t.Fatalf("reload upload: %v", getErr)
	}
	if refreshed.Status != models.UploadStatusCancelado {
		t.Fatalf("expected CANCELADO, got %s", refreshed.Status)
	}
}

func TestProcessUpload_CancelledContextMarksCancelado(t *testing.T) {
	db := openTestDB(t)

	upload := createUpload(t, db, "emp-1", 3, 2025)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestProcessor(db).ProcessUpload(ctx, upload.ID, []workflow.RawRow{
		row("1.1.01", "Caixa", "1000,00", "500,00", "200,00", "1300,00"),
	})
	if err == nil {
		t.Fatal("expected a batch failure")
	}

	refreshed, getErr := repository.NewGormRepos(db).Uploads.Get(context.Background(), upload.ID)
	if getErr != nil {
		t.Fatalf("reload upload: %v", getErr)
	}
	if refreshed.Status != models.UploadStatusCancelado {
		t.Fatalf("expected CANCELADO, got %s", refreshed.Status)
	}

	var lineCount int64
	if err := db.Model(&models.LedgerLine{}).Where("upload_id = ?", upload.ID).Count(&lineCount).Error; err != nil {
		t.Fatalf("count lines: %v", err)
	}
	if lineCount != 0 {
		t.Fatalf("cancelled batch must persist no lines, found %d", lineCount)
	}
}

func TestProcessUpload_ReclassifiedAccountRaisesDadoInconsistente(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedAtiva(t, db, "1.1.01", "Caixa Geral")

	upload := createUpload(t, db, "emp-1", 3, 2025)
	result, err := newTestProcessor(db).ProcessUpload(ctx, upload.ID, []workflow.RawRow{
		row("1.1.01", "Caixa Matriz", "100,00", "0,00", "0,00", "100,00"),
	})
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if result.AlertsCreated != 1 {
		t.Fatalf("expected 1 alert, got %d", result.AlertsCreated)
	}
	alerts := alertsFor(t, db, upload.ID)
	if alerts[0].Tipo != models.AlertaTipoDadoInconsistente {
		t.Fatalf("expected DADO_INCONSISTENTE, got %s", alerts[0].Tipo)
	}

	// Last writer wins on metadata.
	entry, _ := repository.NewGormRepos(db).Catalog.GetByClassificacao(ctx, "1.1.01")
	if entry.NomeConta != "Caixa Matriz" {
		t.Fatalf("expected refreshed nome, got %q", entry.NomeConta)
	}
}
