package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/datafocusbr/balancete_backend/config"
	"github.com/datafocusbr/balancete_backend/importer"
	"github.com/datafocusbr/balancete_backend/models"
	"github.com/datafocusbr/balancete_backend/repository"
	"github.com/datafocusbr/balancete_backend/utils"
	"github.com/datafocusbr/balancete_backend/workflow"
)

// Reprocesses cancelled uploads from the stored workbook copies under
// UPLOAD_DIR. Pass -upload-id to retry a single batch.
func main() {
	uploadID := flag.String("upload-id", "", "Optional: reprocess only this upload. If empty, reprocesses every CANCELADO upload.")
	uploadDir := flag.String("upload-dir", "", "Directory holding the stored workbooks (defaults to $UPLOAD_DIR or ./uploads)")
	flag.Parse()

	dir := strings.TrimSpace(*uploadDir)
	if dir == "" {
		dir = strings.TrimSpace(os.Getenv("UPLOAD_DIR"))
	}
	if dir == "" {
		dir = "uploads"
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	logger := config.GetLogger()
	repos := repository.NewGormRepos(db)
	processor := workflow.NewUploadProcessor(db, logger)

	var uploads []models.Upload
	if strings.TrimSpace(*uploadID) != "" {
		upload, err := repos.Uploads.Get(ctx, strings.TrimSpace(*uploadID))
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load upload: %v\n", err)
			os.Exit(1)
		}
		uploads = []models.Upload{*upload}
	} else {
		var err error
		uploads, err = repos.Uploads.ListByStatus(ctx, models.UploadStatusCancelado)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list cancelled uploads: %v\n", err)
			os.Exit(1)
		}
	}
	if len(uploads) == 0 {
		fmt.Println("nothing to reprocess")
		return
	}

	failures := 0
	for _, upload := range uploads {
		path := filepath.Join(dir, upload.ID+".xlsx")
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: workbook not available (%v), skipping\n", upload.ID, err)
			failures++
			continue
		}
		rows, err := importer.ReadWorkbook(f, nil)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: unreadable workbook: %v\n", upload.ID, err)
			failures++
			continue
		}

		runCtx := utils.SetEmpresaIdInContext(ctx, upload.EmpresaId)
		runCtx = utils.SetActorNameInContext(runCtx, "ReprocessarUploads")
		result, err := processor.ProcessUpload(runCtx, upload.ID, rows)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: reprocess failed: %v\n", upload.ID, err)
			failures++
			continue
		}
		fmt.Printf("%s: processed=%d skipped=%d failed=%d alerts=%d\n",
			upload.ID, result.Processed, result.SkippedDuplicates, len(result.FailedLines), result.AlertsCreated)
	}
	if failures > 0 {
		os.Exit(1)
	}
}
