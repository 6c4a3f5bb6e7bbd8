package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// UnitGenerationRun tracks one pass of the unit source-material pipeline for a
// conversation. Attempts/heartbeat fields let a worker reclaim runs that
// failed transiently or whose owner crashed mid-flight.
type UnitGenerationRun struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index" json:"conversation_id"`
	UnitID         uuid.UUID `gorm:"type:uuid;not null;index" json:"unit_id"`

	Status   string `gorm:"type:text;not null;default:'queued';index" json:"status"`
	Stage    string `gorm:"type:text;not null;default:'assemble'" json:"stage"`
	Attempts int    `gorm:"not null;default:0" json:"attempts"`

	LastError   string     `gorm:"column:last_error;type:text;not null;default:''" json:"last_error"`
	LastErrorAt *time.Time `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	LockedAt    *time.Time `gorm:"column:locked_at" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time `gorm:"column:heartbeat_at" json:"heartbeat_at,omitempty"`

	Metadata datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (UnitGenerationRun) TableName() string { return "unit_generation_run" }
