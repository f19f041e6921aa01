package mysql

import (
	"context"

	documentDomain "creditflow-backend/internal/domain/document"

	"gorm.io/gorm"
)

type DocumentRepository struct{ db *gorm.DB }

func NewDocumentRepository(db *gorm.DB) *DocumentRepository { return &DocumentRepository{db: db} }

func (r *DocumentRepository) Create(ctx context.Context, d *documentDomain.Document) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *DocumentRepository) ListByLoanID(ctx context.Context, loanNumericID uint64) ([]documentDomain.Document, error) {
	var out []documentDomain.Document
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanNumericID).
		Order("uploaded_at ASC, id ASC").
		Find(&out)
	return out, res.Error
}
