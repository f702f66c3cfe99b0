package models

import "time"

// DocumentStatus is the review state of a student submission.
type DocumentStatus string

const (
	DocumentPending  DocumentStatus = "PENDING"
	DocumentApproved DocumentStatus = "APPROVED"
	DocumentRejected DocumentStatus = "REJECTED"
)

// DocumentType names a collectible document. The name matches the template
// ("formato") that backs it, which is how submissions are gated on
// template availability.
type DocumentType struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Document represents a student submission for one document type within a
// process. A re-upload replaces the record in place, it does not version.
type Document struct {
	ID        int64          `db:"id" json:"id"`
	UserID    string         `db:"user_id" json:"user_id"`
	ProcessID int64          `db:"process_id" json:"process_id"`
	TypeID    int64          `db:"type_id" json:"type_id"`
	FilePath  string         `db:"file_path" json:"file_path"`
	Status    DocumentStatus `db:"status" json:"status"`
	Comments  *string        `db:"comments" json:"comments,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}
