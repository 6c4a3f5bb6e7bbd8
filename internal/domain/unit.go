package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Unit is the learning artifact created at the end of the coaching flow. The
// assembly pipeline writes SourceMaterial onto it; lesson and podcast
// generation downstream consume that text as an opaque blob.
type Unit struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	ConversationID *uuid.UUID `gorm:"type:uuid;index" json:"conversation_id,omitempty"`

	Title       string `gorm:"type:text;not null" json:"title"`
	Description string `gorm:"type:text;not null;default:''" json:"description"`
	Status      string `gorm:"type:text;not null;default:'draft';index" json:"status"`

	SourceMaterial     string         `gorm:"column:source_material;type:text;not null;default:''" json:"source_material"`
	LearningObjectives datatypes.JSON `gorm:"column:learning_objectives;type:jsonb;not null;default:'[]'" json:"learning_objectives"`
	Metadata           datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Unit) TableName() string { return "unit" }
