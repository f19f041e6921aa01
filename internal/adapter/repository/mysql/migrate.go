package mysql

import (
	"creditflow-backend/internal/domain/audit"
	"creditflow-backend/internal/domain/decision"
	"creditflow-backend/internal/domain/document"
	"creditflow-backend/internal/domain/loan"

	"gorm.io/gorm"
)

// Models lists every table owned by this service.
func Models() []any {
	return []any{
		&loan.Application{},
		&decision.Decision{},
		&document.Document{},
		&audit.Entry{},
	}
}

// Migrate creates or updates the schema. The column types used by the models
// are portable across mysql, postgres and sqlite.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
