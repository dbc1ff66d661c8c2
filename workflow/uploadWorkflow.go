package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/datafocusbr/balancete_backend/config"
	"github.com/datafocusbr/balancete_backend/models"
	"github.com/datafocusbr/balancete_backend/repository"
	"github.com/datafocusbr/balancete_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultWorkerPoolSize = 4

type FailedLine struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// BatchResult summarizes one ProcessUpload run. Processed counts every line
// that completed the pipeline, whether newly written or recognized as already
// persisted; SkippedDuplicates is the subset that were dedup skips. This
// keeps Processed stable across re-runs of the identical batch.
type BatchResult struct {
	Processed         int          `json:"processed"`
	SkippedDuplicates int          `json:"skipped_duplicates"`
	FailedLines       []FailedLine `json:"failed_lines"`
	AlertsCreated     int          `json:"alerts_created"`
}

// UploadProcessor coordinates one batch end-to-end: fan-out over a bounded
// worker pool, per-line outcomes, a single transaction for all catalog/alert/
// line writes, and exactly-once finalization of the upload status.
type UploadProcessor struct {
	DB       *gorm.DB
	Logger   *logrus.Logger
	PoolSize int
	Audit    AuditHook
}

func NewUploadProcessor(db *gorm.DB, logger *logrus.Logger) *UploadProcessor {
	return &UploadProcessor{
		DB:       db,
		Logger:   logger,
		PoolSize: config.IntFromEnv("UPLOAD_WORKER_POOL_SIZE", defaultWorkerPoolSize),
		Audit:    NewAuditHook(repository.NewGormRepos(db).Audit, logger),
	}
}

type lineJob struct {
	index int
	row   RawRow
}

// batchState is shared by the pool. All persistence runs through the tx gate:
// the batch owns a single transaction, and gorm transactions are not safe for
// concurrent use, so workers serialize at their suspension points (the
// persistence calls) and stay parallel for normalization and checking.
type batchState struct {
	gate    sync.Mutex
	repos   *repository.Repos
	matcher *CatalogMatcher
	engine  *AlertEngine

	mu        sync.Mutex
	processed int
	skipped   int
	failed    []FailedLine
	fatal     error
}

func (s *batchState) recordFailed(index int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, FailedLine{Index: index, Reason: reason})
}

func (s *batchState) recordFatal(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fatal == nil {
		s.fatal = err
	}
}

// ProcessUpload runs the full pipeline for one uploaded batch. Malformed
// lines are recorded and skipped; any storage failure cancels the batch,
// rolls back its own writes and marks the upload CANCELADO. Catalog state
// committed by other batches is never touched by the rollback.
func (p *UploadProcessor) ProcessUpload(ctx context.Context, uploadId string, rows []RawRow) (*BatchResult, error) {
	repos := repository.NewGormRepos(p.DB)

	upload, err := repos.Uploads.Get(ctx, uploadId)
	if err != nil {
		if ctx.Err() == nil {
			return nil, err
		}
		// The caller's context died before the batch could read its own row.
		// Reload over a fresh context so the upload still reaches a terminal
		// status instead of sitting in PROCESSANDO.
		upload, err = repos.Uploads.Get(context.Background(), uploadId)
		if err != nil {
			return nil, err
		}
		p.cancelUpload(repos, upload, ctx.Err())
		return nil, ctx.Err()
	}
	if upload.Status == models.UploadStatusCancelado {
		p.Logger.WithFields(logrus.Fields{
			"module":   "workflow",
			"uploadId": uploadId,
		}).Warn("reprocessando upload cancelado")
	}
	upload.Status = models.UploadStatusProcessando
	if err := repos.Uploads.Save(ctx, upload); err != nil {
		perr := &PersistenceError{Op: "upload status", Err: err}
		p.cancelUpload(repos, upload, perr)
		return nil, perr
	}

	// Previous-period closings for the temporal continuity check. Read-only,
	// so it stays outside the batch transaction. A failure here is as fatal
	// as one mid-batch and takes the same CANCELADO path.
	prevClosing, prevPeriod, err := p.loadPreviousClosings(ctx, repos, upload)
	if err != nil {
		p.cancelUpload(repos, upload, err)
		return nil, err
	}

	tx := p.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		perr := &PersistenceError{Op: "begin", Err: tx.Error}
		p.cancelUpload(repos, upload, perr)
		return nil, perr
	}
	defer tx.Rollback()

	state := &batchState{
		repos: repository.NewGormRepos(tx),
	}
	state.matcher = NewCatalogMatcher(state.repos.Catalog)
	state.engine = NewAlertEngine(state.repos.Alerts)

	workCtx, cancelWork := context.WithCancel(ctx)
	defer cancelWork()

	jobs := make(chan lineJob)
	workers := p.PoolSize
	if workers < 1 {
		workers = 1
	}
	if workers > len(rows) && len(rows) > 0 {
		workers = len(rows)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				// In-flight lines finish; the cancellation flag is observed
				// before starting the next one.
				if workCtx.Err() != nil {
					return
				}
				if err := p.processLine(workCtx, state, upload, job, prevClosing, prevPeriod); err != nil {
					state.recordFatal(err)
					cancelWork()
					return
				}
			}
		}()
	}

feed:
	for i, row := range rows {
		select {
		case jobs <- lineJob{index: i, row: row}:
		case <-workCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	state.mu.Lock()
	fatal := state.fatal
	result := &BatchResult{
		Processed:         state.processed,
		SkippedDuplicates: state.skipped,
		FailedLines:       state.failed,
		AlertsCreated:     state.engine.Created(),
	}
	state.mu.Unlock()

	if fatal == nil && ctx.Err() != nil {
		fatal = ctx.Err()
	}
	if fatal != nil {
		tx.Rollback()
		p.cancelUpload(repos, upload, fatal)
		return nil, fatal
	}

	upload.TotalLinhas = result.Processed + len(result.FailedLines)
	upload.ProcessedLinhas = result.Processed
	upload.FailedLinhas = len(result.FailedLines)
	if result.AlertsCreated > 0 {
		upload.Status = models.UploadStatusComAlertas
	} else {
		upload.Status = models.UploadStatusConcluido
	}
	if err := state.repos.Uploads.Save(ctx, upload); err != nil {
		tx.Rollback()
		perr := &PersistenceError{Op: "finalize upload", Err: err}
		p.cancelUpload(repos, upload, perr)
		return nil, perr
	}
	if err := tx.Commit().Error; err != nil {
		perr := &PersistenceError{Op: "commit", Err: err}
		p.cancelUpload(repos, upload, perr)
		return nil, perr
	}

	if p.Audit != nil {
		p.Audit.AfterCommit(ctx, ChangeRecord{
			Action:   "PROCESS_UPLOAD",
			Entity:   "upload",
			EntityId: upload.ID,
			Detail:   result,
		})
	}

	p.Logger.WithFields(logrus.Fields{
		"module":        "workflow",
		"uploadId":      upload.ID,
		"status":        upload.Status,
		"processed":     result.Processed,
		"skipped":       result.SkippedDuplicates,
		"failed":        len(result.FailedLines),
		"alertsCreated": result.AlertsCreated,
	}).Info("upload processado")

	return result, nil
}

// processLine owns one line end-to-end: normalize and hash in parallel, then
// persist, match and alert under the transaction gate.
func (p *UploadProcessor) processLine(ctx context.Context, state *batchState, upload *models.Upload, job lineJob, prevClosing map[string]decimal.Decimal, prevPeriod string) error {
	line, err := NormalizeRow(job.row, job.index)
	if err != nil {
		if errors.Is(err, ErrTotalsRow) {
			return nil
		}
		var malformed *MalformedLineError
		if errors.As(err, &malformed) {
			state.recordFailed(malformed.Index, malformed.Reason)
			state.gate.Lock()
			defer state.gate.Unlock()
			emitErr := state.engine.EmitDadoInconsistente(ctx, upload.ID,
				strings.TrimSpace(job.row[FieldClassificacao]), malformed.Index, malformed.Reason)
			if emitErr != nil {
				return &PersistenceError{Op: "alerta dado inconsistente", Err: emitErr}
			}
			return nil
		}
		return err
	}

	line.UploadId = upload.ID
	line.ContentHash = HashLine(line)

	state.gate.Lock()
	defer state.gate.Unlock()

	inserted, err := state.repos.Lines.CreateIgnoreDuplicate(ctx, line)
	if err != nil {
		return &PersistenceError{Op: "linha", Err: err}
	}
	if !inserted {
		// Same logical fact already persisted for this upload: an exact
		// duplicate row or an idempotent re-submission. Not an error.
		state.mu.Lock()
		state.skipped++
		state.processed++
		state.mu.Unlock()
		return nil
	}

	match, err := state.matcher.Match(ctx, line, upload)
	if err != nil {
		return &PersistenceError{Op: "catalogo", Err: err}
	}
	if match.Outcome == MatchNew {
		if err := state.engine.EmitContaNova(ctx, line, match.Entry); err != nil {
			return &PersistenceError{Op: "alerta conta nova", Err: err}
		}
	}
	if match.Reclassified {
		if err := state.engine.EmitReclassificada(ctx, line, match.Entry); err != nil {
			return &PersistenceError{Op: "alerta reclassificacao", Err: err}
		}
	}

	if d := CheckBalance(line); d != nil {
		if err := state.engine.EmitSaldoDivergente(ctx, line, d); err != nil {
			return &PersistenceError{Op: "alerta saldo divergente", Err: err}
		}
	}
	if prevClosing != nil {
		if pc, ok := prevClosing[line.ContinuityKey()]; ok {
			if d := CheckContinuity(line, pc); d != nil {
				if err := state.engine.EmitContinuidadeDivergente(ctx, line, d, prevPeriod); err != nil {
					return &PersistenceError{Op: "alerta continuidade", Err: err}
				}
			}
		}
	}

	state.mu.Lock()
	state.processed++
	state.mu.Unlock()
	return nil
}

func (p *UploadProcessor) loadPreviousClosings(ctx context.Context, repos *repository.Repos, upload *models.Upload) (map[string]decimal.Decimal, string, error) {
	mes, ano := upload.PreviousPeriod()
	prev, err := repos.Uploads.FindPrevious(ctx, upload.EmpresaId, mes, ano)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, "", nil
		}
		return nil, "", &PersistenceError{Op: "upload anterior", Err: err}
	}
	closing, err := repos.Lines.ClosingBalancesByKey(ctx, prev.ID)
	if err != nil {
		return nil, "", &PersistenceError{Op: "linhas anteriores", Err: err}
	}
	return closing, prev.Period(), nil
}

// cancelUpload marks the batch CANCELADO outside the failed transaction so
// the terminal status survives the rollback.
func (p *UploadProcessor) cancelUpload(repos *repository.Repos, upload *models.Upload, cause error) {
	upload.Status = models.UploadStatusCancelado
	if err := repos.Uploads.Save(context.Background(), upload); err != nil {
		config.LogError(p.Logger, "workflow", "cancelUpload", "falha ao marcar upload cancelado", upload.ID, err)
	}
	config.LogError(p.Logger, "workflow", "ProcessUpload", "batch cancelado", upload.ID, cause)
}
