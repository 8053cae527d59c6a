package db

import (
	"fmt"

	"github.com/vektor-web/leadbot/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errAutoMigrate := conn.AutoMigrate(&models.Lead{}); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	// ddl defines an index or DDL statement to apply.
	type ddl struct {
		name string // Human-readable name for error reporting.
		sql  string // SQL to execute.
	}
	ddls := []ddl{
		{
			name: "idx_leads_source_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_leads_source_created_at
				ON leads (source, created_at DESC)
			`,
		},
		{
			name: "idx_leads_user_id_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_leads_user_id_created_at
				ON leads (user_id, created_at DESC)
			`,
		},
	}
	for _, item := range ddls {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}

	return nil
}
