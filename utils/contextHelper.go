package utils

import (
	"context"

	"github.com/datafocusbr/balancete_backend/appctx"
	"github.com/google/uuid"
)

var (
	ContextKeyEmpresaId     = appctx.ContextKeyEmpresaId
	ContextKeyActorId       = appctx.ContextKeyActorId
	ContextKeyActorName     = appctx.ContextKeyActorName
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetEmpresaIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyEmpresaId)
}

func GetActorIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyActorId)
}

func GetActorNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyActorName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetEmpresaIdInContext(ctx context.Context, empresaId string) context.Context {
	return appctx.Set(ctx, ContextKeyEmpresaId, empresaId)
}

func SetActorIdInContext(ctx context.Context, actorId string) context.Context {
	return appctx.Set(ctx, ContextKeyActorId, actorId)
}

func SetActorNameInContext(ctx context.Context, actorName string) context.Context {
	return appctx.Set(ctx, ContextKeyActorName, actorName)
}

// SetCorrelationIdInContext keeps an existing correlation id when one is supplied,
// otherwise it mints a fresh one so a batch can be traced end-to-end.
func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	if correlationId == "" {
		correlationId = uuid.NewString()
	}
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
