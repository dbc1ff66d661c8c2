package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/datafocusbr/balancete_backend/config"
	"github.com/datafocusbr/balancete_backend/models"
	"github.com/datafocusbr/balancete_backend/repository"
	"github.com/datafocusbr/balancete_backend/workflow"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "List duplicated classifications without removing anything")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	logger := config.GetLogger()

	if *dryRun {
		catalog := repository.NewGormRepos(db).Catalog
		duplicated, err := catalog.DuplicateClassificacoes(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list duplicated classifications: %v\n", err)
			os.Exit(1)
		}
		if len(duplicated) == 0 {
			fmt.Println("no duplicated classifications found")
			return
		}
		for _, classificacao := range duplicated {
			entries, err := catalog.ListByClassificacao(ctx, classificacao)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to inspect %s: %v\n", classificacao, err)
				os.Exit(1)
			}
			fmt.Printf("%s: %d entries, would keep id=%d\n", classificacao, len(entries), entries[0].ID)
		}
		return
	}

	result, err := workflow.ConsolidateCatalog(ctx, db, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "consolidation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("consolidation done: merged=%d kept=%d\n", result.Merged, result.Kept)
}
