package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IngestionError is written for every document that produced no entities,
// either because cross-validation failed or because infrastructure did.
type IngestionError struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OccurredAt time.Time `gorm:"not null;index" json:"occurred_at"`
	SourceFile string    `gorm:"type:varchar(500);not null;index" json:"source_file"`
	Message    string    `gorm:"type:text;not null" json:"message"`
}

func (IngestionError) TableName() string {
	return "ingestion_errors"
}

func (e *IngestionError) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	return nil
}
