package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/datafocusbr/balancete_backend/config"
	"github.com/datafocusbr/balancete_backend/models"
	"github.com/datafocusbr/balancete_backend/repository"
	"github.com/datafocusbr/balancete_backend/utils"
	"github.com/datafocusbr/balancete_backend/workflow"
	"github.com/gin-gonic/gin"
)

func alertFilterFromQuery(c *gin.Context) repository.AlertFilter {
	empresaId, _ := utils.GetEmpresaIdFromContext(c.Request.Context())
	return repository.AlertFilter{
		Status:     models.AlertaStatus(strings.TrimSpace(c.Query("status"))),
		Tipo:       models.AlertaTipo(strings.TrimSpace(c.Query("tipo"))),
		Severidade: models.AlertaSeveridade(strings.TrimSpace(c.Query("severidade"))),
		EmpresaId:  empresaId,
		UploadId:   strings.TrimSpace(c.Query("upload_id")),
		Busca:      strings.TrimSpace(c.Query("busca")),
	}
}

func listAlertasHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		repos := repository.NewGormRepos(config.GetDB())

		alertas, err := repos.Alerts.List(ctx, alertFilterFromQuery(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"alertas": alertas, "total": len(alertas)})
	}
}

func getAlertaHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		repos := repository.NewGormRepos(config.GetDB())

		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
			return
		}
		alerta, err := repos.Alerts.Get(ctx, uint(id))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "alerta not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"alerta": alerta})
	}
}

type updateAlertaStatusRequest struct {
	Status models.AlertaStatus `json:"status" binding:"required"`
}

func updateAlertaStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
			return
		}
		var req updateAlertaStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
			return
		}
		if !req.Status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + string(req.Status)})
			return
		}

		actorId, _ := utils.GetActorIdFromContext(ctx)
		engine := workflow.NewAlertEngine(repository.NewGormRepos(config.GetDB()).Alerts)
		alerta, err := engine.UpdateStatus(ctx, uint(id), req.Status, actorId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "alerta not found"})
				return
			}
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"alerta": alerta})
	}
}

func countAlertasByTipoContaHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		repos := repository.NewGormRepos(config.GetDB())

		counts, err := repos.Alerts.CountByTipoConta(ctx, alertFilterFromQuery(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"resumo": counts})
	}
}

func listContasHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		repos := repository.NewGormRepos(config.GetDB())

		nivel := 0
		if v := strings.TrimSpace(c.Query("nivel")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid nivel"})
				return
			}
			nivel = n
		}
		filter := repository.CatalogFilter{
			Status:              models.ContaStatus(strings.TrimSpace(c.Query("status"))),
			TipoConta:           models.TipoConta(strings.TrimSpace(c.Query("tipo_conta"))),
			Nivel:               nivel,
			ClassificacaoPrefix: strings.TrimSpace(c.Query("classificacao")),
			Busca:               strings.TrimSpace(c.Query("busca")),
		}
		contas, err := repos.Catalog.List(ctx, filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"contas": contas, "total": len(contas)})
	}
}

func archiveContaHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		repos := repository.NewGormRepos(config.GetDB())

		classificacao := strings.TrimSpace(c.Param("classificacao"))
		entry, err := workflow.ArchiveClassification(ctx, repos, classificacao)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "conta not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"conta": entry})
	}
}

func consolidarContasHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		ctx := c.Request.Context()

		result, err := workflow.ConsolidateCatalog(ctx, config.GetDB(), logger)
		if err != nil {
			config.LogError(logger, "alerts.go", "consolidarContasHandler", "consolidate", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"resultado": result})
	}
}
