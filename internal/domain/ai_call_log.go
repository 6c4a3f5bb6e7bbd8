package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AICallLog records one call to the LLM provider for auditing and debugging.
type AICallLog struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	ContextID *uuid.UUID `gorm:"type:uuid;index" json:"context_id,omitempty"`

	CallType string `gorm:"column:call_type;not null" json:"call_type"`
	Model    string `gorm:"column:model;not null" json:"model"`
	Prompt   string `gorm:"column:prompt;type:text" json:"prompt"`
	Response string `gorm:"column:response;type:text" json:"response"`
	Success  bool   `gorm:"column:success;not null" json:"success"`
	Error    string `gorm:"column:error;type:text;not null;default:''" json:"error"`

	Usage datatypes.JSON `gorm:"type:jsonb;column:usage;not null;default:'{}'" json:"usage"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (AICallLog) TableName() string { return "ai_call_log" }
