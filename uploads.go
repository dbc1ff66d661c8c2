package main

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/datafocusbr/balancete_backend/config"
	"github.com/datafocusbr/balancete_backend/importer"
	"github.com/datafocusbr/balancete_backend/models"
	"github.com/datafocusbr/balancete_backend/repository"
	"github.com/datafocusbr/balancete_backend/utils"
	"github.com/datafocusbr/balancete_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxUploadSize = 50 << 20 // 50 MB

var (
	processorOnce sync.Once
	processor     *workflow.UploadProcessor
)

func initUploadProcessor(p *workflow.UploadProcessor) {
	processorOnce.Do(func() { processor = p })
}

func uploadProcessorReady() bool {
	return processor != nil
}

// uploadDir is where raw workbooks are kept so a CANCELADO batch can be
// reprocessed without re-uploading.
func uploadDir() string {
	if dir := strings.TrimSpace(os.Getenv("UPLOAD_DIR")); dir != "" {
		return dir
	}
	return "uploads"
}

func storedWorkbookPath(uploadId string) string {
	return filepath.Join(uploadDir(), uploadId+".xlsx")
}

func saveWorkbook(uploadId string, file multipart.File) error {
	if err := os.MkdirAll(uploadDir(), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(storedWorkbookPath(uploadId))
	if err != nil {
		return err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		return err
	}
	_, err = file.Seek(0, io.SeekStart)
	return err
}

type newUploadForm struct {
	Mes int `form:"mes" binding:"required,min=1,max=12"`
	Ano int `form:"ano" binding:"required,min=2000,max=2100"`
	// Optional column-template name under TEMPLATE_DIR, without extension.
	Template string `form:"template" binding:"omitempty,plain_filename"`
}

func loadColumnTemplate(name string) (*importer.ColumnTemplate, error) {
	if name == "" {
		return nil, nil
	}
	dir := strings.TrimSpace(os.Getenv("TEMPLATE_DIR"))
	if dir == "" {
		dir = "templates"
	}
	// The name is user input; never let it escape the template directory.
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid template name")
	}
	return importer.LoadTemplate(filepath.Join(dir, name+".yaml"))
}

func uploadBalanceteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		ctx := c.Request.Context()
		empresaId, _ := utils.GetEmpresaIdFromContext(ctx)

		var form newUploadForm
		if err := c.ShouldBind(&form); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mes (1-12) and ano are required"})
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file type: only .xlsx files are allowed"})
			return
		}
		if fileHeader.Size > maxUploadSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file exceeds the 50 MB limit"})
			return
		}

		tpl, err := loadColumnTemplate(form.Template)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
			return
		}
		defer file.Close()

		upload := &models.Upload{
			ID:          uuid.NewString(),
			EmpresaId:   empresaId,
			Mes:         form.Mes,
			Ano:         form.Ano,
			Status:      models.UploadStatusProcessando,
			ArquivoNome: fileHeader.Filename,
		}
		repos := repository.NewGormRepos(config.GetDB())
		if err := repos.Uploads.Create(ctx, upload); err != nil {
			config.LogError(logger, "uploads.go", "uploadBalanceteHandler", "create upload", upload, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register upload"})
			return
		}

		if err := saveWorkbook(upload.ID, file); err != nil {
			config.LogError(logger, "uploads.go", "uploadBalanceteHandler", "save workbook", upload.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store uploaded file"})
			return
		}

		rows, err := importer.ReadWorkbook(file, tpl)
		if err != nil {
			upload.Status = models.UploadStatusCancelado
			_ = repos.Uploads.Save(ctx, upload)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "upload_id": upload.ID})
			return
		}

		result, err := processor.ProcessUpload(ctx, upload.ID, rows)
		if err != nil {
			config.LogError(logger, "uploads.go", "uploadBalanceteHandler", "process upload", upload.ID, err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "upload_id": upload.ID})
			return
		}

		refreshed, err := repos.Uploads.Get(ctx, upload.ID)
		if err == nil {
			upload = refreshed
		}
		c.JSON(http.StatusCreated, gin.H{
			"upload": upload,
			"result": result,
		})
	}
}

func reprocessUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		ctx := c.Request.Context()
		uploadId := c.Param("id")

		repos := repository.NewGormRepos(config.GetDB())
		upload, err := repos.Uploads.Get(ctx, uploadId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if empresaId, _ := utils.GetEmpresaIdFromContext(ctx); upload.EmpresaId != empresaId {
			c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
			return
		}

		f, err := os.Open(storedWorkbookPath(uploadId))
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "original file is no longer available for reprocessing"})
			return
		}
		defer f.Close()

		rows, err := importer.ReadWorkbook(f, nil)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := processor.ProcessUpload(ctx, uploadId, rows)
		if err != nil {
			config.LogError(logger, "uploads.go", "reprocessUploadHandler", "reprocess upload", uploadId, err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "upload_id": uploadId})
			return
		}

		refreshed, err := repos.Uploads.Get(ctx, uploadId)
		if err == nil {
			upload = refreshed
		}
		c.JSON(http.StatusOK, gin.H{
			"upload": upload,
			"result": result,
		})
	}
}

func listUploadsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		empresaId, _ := utils.GetEmpresaIdFromContext(ctx)

		db := config.GetDB()
		q := db.WithContext(ctx).Model(&models.Upload{}).Where("empresa_id = ?", empresaId)
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			q = q.Where("status = ?", status)
		}
		var uploads []models.Upload
		if err := q.Order("ano DESC, mes DESC, created_at DESC").Find(&uploads).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"uploads": uploads})
	}
}

func getUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		repos := repository.NewGormRepos(config.GetDB())

		upload, err := repos.Uploads.Get(ctx, c.Param("id"))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if empresaId, _ := utils.GetEmpresaIdFromContext(ctx); upload.EmpresaId != empresaId {
			c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"upload": upload})
	}
}

func listUploadLinhasHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		repos := repository.NewGormRepos(config.GetDB())

		upload, err := repos.Uploads.Get(ctx, c.Param("id"))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if empresaId, _ := utils.GetEmpresaIdFromContext(ctx); upload.EmpresaId != empresaId {
			c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
			return
		}

		lines, err := repos.Lines.ListByUpload(ctx, upload.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"linhas": lines, "periodo": upload.Period()})
	}
}
