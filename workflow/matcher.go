package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/datafocusbr/balancete_backend/models"
	"github.com/datafocusbr/balancete_backend/repository"
	"github.com/datafocusbr/balancete_backend/utils"
)

type MatchOutcome string

const (
	MatchExisting MatchOutcome = "EXISTING"
	MatchNew      MatchOutcome = "NEW"
)

type MatchResult struct {
	Classificacao string
	Entry         *models.AccountCatalogEntry
	Outcome       MatchOutcome
	// Reclassified is set when the entry existed under a different
	// nomeConta/tipoConta. The classification code is the durable identity,
	// so this is surfaced as a DADO_INCONSISTENTE candidate, not as NEW.
	Reclassified bool
}

// CatalogMatcher resolves a line's classification against the shared account
// catalog and maintains entry lifecycle on observation.
type CatalogMatcher struct {
	catalog repository.CatalogRepo
}

func NewCatalogMatcher(catalog repository.CatalogRepo) *CatalogMatcher {
	return &CatalogMatcher{catalog: catalog}
}

// Match performs an exact lookup and, on miss, creates the entry with status
// NOVA. The create is insert-ignore-conflict keyed on the unique
// classificacao constraint, then re-read: first writer wins on existence,
// last writer wins on metadata. Never an in-process lock — batches for
// different companies race on the shared catalog across processes.
func (m *CatalogMatcher) Match(ctx context.Context, line *models.LedgerLine, upload *models.Upload) (*MatchResult, error) {
	now := time.Now().UTC()

	entry, err := m.catalog.GetByClassificacao(ctx, line.Classificacao)
	if err != nil {
		if !errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, err
		}
		candidate := &models.AccountCatalogEntry{
			Classificacao:   line.Classificacao,
			NomeConta:       line.NomeConta,
			TipoConta:       line.TipoConta,
			Nivel:           line.Nivel,
			Status:          models.ContaStatusNova,
			FirstSeenPeriod: upload.Period(),
			FirstSeenAt:     now,
			LastSeenAt:      now,
		}
		created, err := m.catalog.CreateIfAbsent(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if created {
			return &MatchResult{
				Classificacao: line.Classificacao,
				Entry:         candidate,
				Outcome:       MatchNew,
			}, nil
		}
		// Lost the race to a concurrent line: recover by re-reading.
		entry, err = m.catalog.GetByClassificacao(ctx, line.Classificacao)
		if err != nil {
			return nil, err
		}
	}

	// Reappearance after archival is a fresh NEW event: status back to NOVA
	// and the first-seen window restarts.
	if entry.Status == models.ContaStatusArquivada {
		entry.Status = models.ContaStatusNova
		entry.FirstSeenPeriod = upload.Period()
		entry.FirstSeenAt = now
		entry.LastSeenAt = now
		m.applyMetadata(entry, line)
		if err := m.catalog.Save(ctx, entry); err != nil {
			return nil, err
		}
		return &MatchResult{
			Classificacao: line.Classificacao,
			Entry:         entry,
			Outcome:       MatchNew,
		}, nil
	}

	reclassified := (line.NomeConta != "" && entry.NomeConta != "" && entry.NomeConta != line.NomeConta) ||
		(entry.TipoConta != "" && line.TipoConta != "" && entry.TipoConta != line.TipoConta)

	entry.LastSeenAt = now
	if entry.Status == models.ContaStatusNova && upload.PeriodAfter(entry.FirstSeenPeriod) {
		entry.Status = models.ContaStatusAtiva
	}
	m.applyMetadata(entry, line)
	if err := m.catalog.Save(ctx, entry); err != nil {
		return nil, err
	}

	return &MatchResult{
		Classificacao: line.Classificacao,
		Entry:         entry,
		Outcome:       MatchExisting,
		Reclassified:  reclassified,
	}, nil
}

func (m *CatalogMatcher) applyMetadata(entry *models.AccountCatalogEntry, line *models.LedgerLine) {
	if line.NomeConta != "" {
		entry.NomeConta = line.NomeConta
	}
	if line.TipoConta != "" {
		entry.TipoConta = line.TipoConta
	}
	if line.Nivel > 0 {
		entry.Nivel = line.Nivel
	}
}
