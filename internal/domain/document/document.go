// Package document holds metadata for files an applicant attaches to a Draft.
// The bytes live in an external file store; FilePath is the reference it
// returned.
package document

import (
	"context"
	"time"
)

// Table: loan_documents
type Document struct {
	ID         uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	DocumentID string    `gorm:"column:document_id;type:char(32);not null;uniqueIndex:ux_loan_documents_document_id" json:"document_id"`
	LoanID     uint64    `gorm:"column:loan_id;not null;index:idx_loan_documents_loan" json:"-"`
	FileName   string    `gorm:"column:file_name;size:255;not null" json:"file_name"`
	FilePath   string    `gorm:"column:file_path;size:1024;not null" json:"file_path"`
	SizeBytes  int64     `gorm:"column:size_bytes;not null" json:"size_bytes"`
	UploadedAt time.Time `gorm:"column:uploaded_at;not null" json:"uploaded_at"`
}

func (Document) TableName() string { return "loan_documents" }

type Repository interface {
	Create(ctx context.Context, d *Document) error
	ListByLoanID(ctx context.Context, loanID uint64) ([]Document, error)
}
