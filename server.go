package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/datafocusbr/balancete_backend/config"
	"github.com/datafocusbr/balancete_backend/models"
	"github.com/datafocusbr/balancete_backend/utils"
	"github.com/datafocusbr/balancete_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// registerValidations binds custom form validations. "plain_filename" rejects
// values carrying a path component, used for user-supplied template names.
func registerValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("plain_filename", func(fl validator.FieldLevel) bool {
			name := fl.Field().String()
			return name == filepath.Base(name) && !strings.ContainsAny(name, `/\`)
		})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// readinessGate returns 503 until the database connection and the upload
// processor exist. The startup probe on /healthz always answers, so the
// revision stays healthy while dependencies come up.
func readinessGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || !uploadProcessorReady() {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	}
}

// empresaMiddleware binds the tenant and actor identity from request headers
// into the context. Every /api route is scoped to one empresa.
func empresaMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		empresaId := strings.TrimSpace(c.GetHeader("x-empresa-id"))
		if empresaId == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "x-empresa-id header is required"})
			return
		}
		ctx := utils.SetEmpresaIdInContext(c.Request.Context(), empresaId)
		if actorId := strings.TrimSpace(c.GetHeader("x-actor-id")); actorId != "" {
			ctx = utils.SetActorIdInContext(ctx, actorId)
		}
		if actorName := strings.TrimSpace(c.GetHeader("x-actor-name")); actorName != "" {
			ctx = utils.SetActorNameInContext(ctx, actorName)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()
	registerValidations()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until the DB is ready, app endpoints return 503.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(readinessGate())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PATCH", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization",
		"x-empresa-id", "x-actor-id", "x-actor-name", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	api := r.Group("/api", empresaMiddleware())
	api.POST("/uploads", uploadBalanceteHandler())
	api.GET("/uploads", listUploadsHandler())
	api.GET("/uploads/:id", getUploadHandler())
	api.GET("/uploads/:id/linhas", listUploadLinhasHandler())
	api.POST("/uploads/:id/reprocessar", reprocessUploadHandler())
	api.GET("/alertas", listAlertasHandler())
	api.GET("/alertas/resumo/tipo-conta", countAlertasByTipoContaHandler())
	api.GET("/alertas/:id", getAlertaHandler())
	api.PATCH("/alertas/:id/status", updateAlertaStatusHandler())
	api.GET("/contas", listContasHandler())
	api.POST("/contas/:classificacao/arquivar", archiveContaHandler())
	api.POST("/manutencao/consolidar-contas", consolidarContasHandler())
	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// The readiness gate stays closed until the processor exists too, so
	// /api/uploads never sees a nil processor.
	initUploadProcessor(workflow.NewUploadProcessor(db, logger))

	// AutoMigrate can run DDL that blocks tables; allow disabling migrations
	// on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/api")
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}
