package workflow

import (
	"context"
	"encoding/json"

	"github.com/datafocusbr/balancete_backend/config"
	"github.com/datafocusbr/balancete_backend/models"
	"github.com/datafocusbr/balancete_backend/repository"
	"github.com/datafocusbr/balancete_backend/utils"
	"github.com/sirupsen/logrus"
)

// ChangeRecord is the structured summary handed to the audit hook after a
// batch (or maintenance action) commits.
type ChangeRecord struct {
	Action   string `json:"action"`
	Entity   string `json:"entity"`
	EntityId string `json:"entity_id"`
	Detail   any    `json:"detail,omitempty"`
}

// AuditHook is invoked by the orchestrator strictly after commit. Failures
// here are logged, never propagated: audit is best-effort and must not undo
// a committed batch.
type AuditHook interface {
	AfterCommit(ctx context.Context, rec ChangeRecord)
}

type dbAuditHook struct {
	audit  repository.AuditRepo
	logger *logrus.Logger
}

func NewAuditHook(audit repository.AuditRepo, logger *logrus.Logger) AuditHook {
	return &dbAuditHook{audit: audit, logger: logger}
}

func (h *dbAuditHook) AfterCommit(ctx context.Context, rec ChangeRecord) {
	actor, _ := utils.GetActorIdFromContext(ctx)
	detail := ""
	if rec.Detail != nil {
		if b, err := json.Marshal(rec.Detail); err == nil {
			detail = string(b)
		}
	}
	entry := &models.AuditLog{
		Actor:    actor,
		Action:   rec.Action,
		Entity:   rec.Entity,
		EntityId: rec.EntityId,
		Detail:   detail,
	}
	if err := h.audit.Create(ctx, entry); err != nil {
		config.LogError(h.logger, "workflow", "AfterCommit", "audit write failed", rec, err)
	}
}

// NopAuditHook is for callers that have no audit store (tests, ad hoc tools).
type NopAuditHook struct{}

func (NopAuditHook) AfterCommit(context.Context, ChangeRecord) {}
