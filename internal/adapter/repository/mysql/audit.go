package mysql

import (
	"context"

	auditDomain "creditflow-backend/internal/domain/audit"

	"gorm.io/gorm"
)

type AuditRepository struct{ db *gorm.DB }

func NewAuditRepository(db *gorm.DB) *AuditRepository { return &AuditRepository{db: db} }

func (r *AuditRepository) Create(ctx context.Context, e *auditDomain.Entry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// ListByUser is used by tests and operators; newest first.
func (r *AuditRepository) ListByUser(ctx context.Context, userID string, limit int) ([]auditDomain.Entry, error) {
	var out []auditDomain.Entry
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return out, q.Find(&out).Error
}
