package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TurnRoleUser      = "user"
	TurnRoleAssistant = "assistant"
)

// Conversation is one coaching dialogue. Everything the unit-creation
// pipeline needs from the dialogue (linked resource ids, coverage verdict,
// proposed objectives, accepted brief) lives in Metadata so the pipeline can
// fetch one row and read a consistent snapshot.
type Conversation struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Title  string `gorm:"type:text;not null;default:''" json:"title"`
	Status string `gorm:"type:text;not null;default:'active';index" json:"status"`

	Metadata datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Conversation) TableName() string { return "conversation" }

type ConversationTurn struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index:idx_conversation_turn_seq,priority:1" json:"conversation_id"`

	Seq     int64  `gorm:"not null;index:idx_conversation_turn_seq,priority:2" json:"seq"`
	Role    string `gorm:"type:text;not null" json:"role"`
	Content string `gorm:"type:text;not null" json:"content"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ConversationTurn) TableName() string { return "conversation_turn" }

// ConversationMetadata is the decoded shape of Conversation.Metadata.
//
// UncoveredLearningObjectiveIDs distinguishes three states the pipeline cares
// about: nil pointer = verdict never computed; empty slice = resources cover
// every proposed objective; non-empty = these objective ids need supplemental
// generation. The pointer-to-slice keeps JSON null and [] distinct across a
// decode/encode round trip.
type ConversationMetadata struct {
	ResourceIDs                   []uuid.UUID         `json:"resource_ids"`
	UncoveredLearningObjectiveIDs *[]string           `json:"uncovered_learning_objective_ids"`
	LearningObjectives            []LearningObjective `json:"learning_objectives,omitempty"`
	AcceptedBrief                 map[string]any      `json:"accepted_brief,omitempty"`
}

func (c *Conversation) DecodeMetadata() (ConversationMetadata, error) {
	var meta ConversationMetadata
	if len(c.Metadata) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(c.Metadata, &meta); err != nil {
		return ConversationMetadata{}, err
	}
	return meta, nil
}

func EncodeConversationMetadata(meta ConversationMetadata) (datatypes.JSON, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
