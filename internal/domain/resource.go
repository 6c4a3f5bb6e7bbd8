package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Resource types form a closed set; ValidateResource matches exhaustively so a
// new type cannot sneak in through an ad hoc string.
const (
	ResourceTypeFileUpload      = "file_upload"
	ResourceTypeURL             = "url"
	ResourceTypePhoto           = "photo"
	ResourceTypeGeneratedSource = "generated_source"
)

// Resource is a piece of learner- or system-provided material. Rows are
// immutable after creation: extracted text is never updated in place, and
// nothing in this subsystem hard-deletes them.
type Resource struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Type      string  `gorm:"type:text;not null;index" json:"type"`
	Filename  *string `gorm:"type:text" json:"filename,omitempty"`
	SourceURL *string `gorm:"column:source_url;type:text" json:"source_url,omitempty"`

	ExtractedText      string         `gorm:"column:extracted_text;type:text;not null;default:''" json:"extracted_text"`
	ExtractionMetadata datatypes.JSON `gorm:"column:extraction_metadata;type:jsonb;not null;default:'{}'" json:"extraction_metadata"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Resource) TableName() string { return "resource" }

// ValidateResource enforces the per-type filename/source_url invariant:
// upload and photo resources carry a filename, url resources carry a source
// url, generated sources carry neither.
func ValidateResource(r *Resource) error {
	if r == nil {
		return fmt.Errorf("resource is nil")
	}
	if r.UserID == uuid.Nil {
		return fmt.Errorf("resource user_id is required")
	}
	hasFilename := r.Filename != nil && *r.Filename != ""
	hasURL := r.SourceURL != nil && *r.SourceURL != ""
	switch r.Type {
	case ResourceTypeFileUpload, ResourceTypePhoto:
		if !hasFilename || hasURL {
			return fmt.Errorf("%s resource must have a filename and no source_url", r.Type)
		}
	case ResourceTypeURL:
		if !hasURL || hasFilename {
			return fmt.Errorf("url resource must have a source_url and no filename")
		}
	case ResourceTypeGeneratedSource:
		if hasFilename || hasURL {
			return fmt.Errorf("generated_source resource must have neither filename nor source_url")
		}
	default:
		return fmt.Errorf("unknown resource type %q", r.Type)
	}
	return nil
}

// SourceLabel is the label the combiner uses for this resource. Callers pass
// the 1-based position for the fallback label.
func (r *Resource) SourceLabel(position int) string {
	if r.Filename != nil && *r.Filename != "" {
		return *r.Filename
	}
	if r.SourceURL != nil && *r.SourceURL != "" {
		return *r.SourceURL
	}
	return fmt.Sprintf("Resource %d", position)
}

// UnitResourceLink records that a resource contributed to a unit. The
// composite unique index makes attachment idempotent at the database level.
type UnitResourceLink struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UnitID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_unit_resource,priority:1" json:"unit_id"`
	ResourceID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_unit_resource,priority:2" json:"resource_id"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (UnitResourceLink) TableName() string { return "unit_resource_link" }
