package models

import (
	"log"

	"github.com/datafocusbr/balancete_backend/config"
	"gorm.io/gorm"
)

func MigrateTable() {
	if err := Migrate(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Upload{}, &LedgerLine{},
		&AccountCatalogEntry{},
		&Alert{},
		&AuditLog{},
	)
}
