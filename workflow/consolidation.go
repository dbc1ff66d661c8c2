package workflow

import (
	"context"
	"fmt"

	"github.com/datafocusbr/balancete_backend/models"
	"github.com/datafocusbr/balancete_backend/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const consolidationLockName = "conta_catalogo:consolidacao"

type ConsolidationResult struct {
	Merged int `json:"merged"`
	Kept   int `json:"kept"`
}

// acquireConsolidationLock serializes consolidation across instances using
// MySQL advisory locks. GET_LOCK is connection-scoped, so acquire and release
// must run on the same pinned connection, and the release must come after the
// consolidation transaction has committed. Other dialects have no equivalent
// and run unserialized.
func acquireConsolidationLock(conn *gorm.DB) error {
	if conn.Dialector.Name() != "mysql" {
		return nil
	}
	var ok int
	if err := conn.Raw("SELECT GET_LOCK(?, 30)", consolidationLockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire consolidation lock")
	}
	return nil
}

func releaseConsolidationLock(conn *gorm.DB) {
	if conn.Dialector.Name() != "mysql" {
		return
	}
	var _ok int
	_ = conn.Raw("SELECT RELEASE_LOCK(?)", consolidationLockName).Scan(&_ok).Error
}

// ConsolidateCatalog removes duplicate catalog entries that share a
// classificacao, keeping the most recently seen one (first-seen recency
// breaks ties). Survivor metadata is not rewritten; the kept entry is by
// construction the freshest.
func ConsolidateCatalog(ctx context.Context, db *gorm.DB, logger *logrus.Logger) (*ConsolidationResult, error) {
	result := &ConsolidationResult{}

	// The lock has to outlive the COMMIT, so it cannot live inside the
	// transaction closure: pin one connection, lock it, run the transaction
	// on it, and release only after the transaction has returned.
	err := db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		if err := acquireConsolidationLock(conn); err != nil {
			return err
		}
		defer releaseConsolidationLock(conn)

		return conn.Transaction(func(tx *gorm.DB) error {
			catalog := repository.NewGormRepos(tx).Catalog

			duplicated, err := catalog.DuplicateClassificacoes(ctx)
			if err != nil {
				return err
			}

			for _, classificacao := range duplicated {
				entries, err := catalog.ListByClassificacao(ctx, classificacao)
				if err != nil {
					return err
				}
				if len(entries) < 2 {
					continue
				}
				var doomed []uint
				for _, entry := range entries[1:] {
					doomed = append(doomed, entry.ID)
				}
				if err := catalog.DeleteByIds(ctx, doomed); err != nil {
					return err
				}
				result.Merged += len(doomed)
				result.Kept++
				logger.WithFields(logrus.Fields{
					"module":        "workflow",
					"classificacao": classificacao,
					"removed":       len(doomed),
					"keptId":        entries[0].ID,
				}).Info("classificacao consolidada")
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ArchiveClassification retires a catalog entry and closes its open alerts.
// An archived account that reappears in a later upload is treated as new
// again by the matcher.
func ArchiveClassification(ctx context.Context, repos *repository.Repos, classificacao string) (*models.AccountCatalogEntry, error) {
	entry, err := repos.Catalog.GetByClassificacao(ctx, classificacao)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.ContaStatusArquivada {
		entry.Status = models.ContaStatusArquivada
		if err := repos.Catalog.Save(ctx, entry); err != nil {
			return nil, err
		}
	}
	if _, err := repos.Alerts.ArchiveOpenByClassificacao(ctx, classificacao); err != nil {
		return nil, err
	}
	return entry, nil
}
