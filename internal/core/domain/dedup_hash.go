package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentHash records the content hash of a source image seen by a batch.
// Kept is true once the document's entities were written.
type DocumentHash struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BatchID    uuid.UUID `gorm:"type:uuid;not null;index:idx_doc_batch_hash" json:"batch_id"`
	Hash       string    `gorm:"type:varchar(64);not null;index:idx_doc_batch_hash" json:"hash"`
	SourceFile string    `gorm:"type:varchar(500);not null" json:"source_file"`
	Kept       bool      `gorm:"default:false;index:idx_doc_kept" json:"kept"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Batch *IngestionBatch `gorm:"foreignKey:BatchID" json:"batch,omitempty"`
}

// TableName specifies the table name for GORM
func (DocumentHash) TableName() string {
	return "document_hashes"
}

// BeforeCreate GORM hook
func (d *DocumentHash) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
