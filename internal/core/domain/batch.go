package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IngestionBatch represents one run over a set of invoice images
type IngestionBatch struct {
	ID                uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Source            string     `gorm:"type:varchar(500);not null" json:"source"`
	Status            string     `gorm:"type:varchar(50);not null;default:'running'" json:"status"`
	TotalFiles        int        `gorm:"default:0" json:"total_files"`
	Succeeded         int        `gorm:"default:0" json:"succeeded"`
	Failed            int        `gorm:"default:0" json:"failed"`
	DuplicatesSkipped int        `gorm:"default:0" json:"duplicates_skipped"`
	AlreadyIngested   int        `gorm:"default:0" json:"already_ingested"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`

	// Relations
	DocumentHashes []DocumentHash `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE" json:"document_hashes,omitempty"`
}

// TableName specifies the table name for GORM
func (IngestionBatch) TableName() string {
	return "ingestion_batches"
}

// BeforeCreate GORM hook - called before creating a record
func (b *IngestionBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

const (
	BatchStatusRunning   = "running"
	BatchStatusCompleted = "completed"
	BatchStatusCancelled = "cancelled"
	BatchStatusFailed    = "failed"
)

// ValidStatuses returns list of valid batch statuses
func ValidStatuses() []string {
	return []string{
		BatchStatusRunning,
		BatchStatusCompleted,
		BatchStatusCancelled,
		BatchStatusFailed,
	}
}

// IsValidStatus checks if a status is valid
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// Finish stamps the completion time and final status.
func (b *IngestionBatch) Finish(status string, at time.Time) {
	b.Status = status
	b.CompletedAt = &at
}
