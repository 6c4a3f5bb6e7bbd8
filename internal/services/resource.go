package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lanternroom/lantern-backend/internal/data/repos"
	"github.com/lanternroom/lantern-backend/internal/domain"
	"github.com/lanternroom/lantern-backend/internal/pkg/dbctx"
	errs "github.com/lanternroom/lantern-backend/internal/pkg/errors"
	"github.com/lanternroom/lantern-backend/internal/pkg/logger"
)

const GeneratedSourceMethodAISupplemental = "ai_supplemental"

// GeneratedSourceMetadata is the extraction metadata every generated_source
// resource carries. UncoveredLOIDs is the exact uncovered-objective list that
// triggered the generation, possibly empty but never absent.
type GeneratedSourceMetadata struct {
	Method         string    `json:"method"`
	GeneratedAt    time.Time `json:"generated_at"`
	UncoveredLOIDs []string  `json:"uncovered_lo_ids"`
	UnitID         string    `json:"unit_id,omitempty"`
}

// CreateResourceInput describes a learner-provided resource. Exactly one of
// Filename and SourceURL must be set, matching Type.
type CreateResourceInput struct {
	UserID        uuid.UUID
	Type          string
	Filename      string
	SourceURL     string
	ExtractedText string
	Extraction    map[string]any
}

type ResourceService interface {
	// CreateLearnerResource persists an upload/url/photo resource. Extracted
	// text is capped at MaxExtractedTextBytes at creation; resources are
	// immutable afterwards.
	CreateLearnerResource(dbc dbctx.Context, input CreateResourceInput) (*domain.Resource, error)

	// CreateGeneratedSource persists an AI-generated supplemental resource.
	CreateGeneratedSource(dbc dbctx.Context, userID uuid.UUID, unitID uuid.UUID, sourceText string, meta GeneratedSourceMetadata) (*domain.Resource, error)

	GetResourcesByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Resource, error)
	AttachResourcesToUnit(dbc dbctx.Context, resourceIDs []uuid.UUID, unitID uuid.UUID) error
}

type resourceService struct {
	db           *gorm.DB
	log          *logger.Logger
	resourceRepo repos.ResourceRepo
}

func NewResourceService(db *gorm.DB, baseLog *logger.Logger, resourceRepo repos.ResourceRepo) ResourceService {
	return &resourceService{
		db:           db,
		log:          baseLog.With("service", "ResourceService"),
		resourceRepo: resourceRepo,
	}
}

func (s *resourceService) CreateLearnerResource(dbc dbctx.Context, input CreateResourceInput) (*domain.Resource, error) {
	if input.UserID == uuid.Nil {
		return nil, errs.Validationf("user_id is required")
	}
	if input.Type == domain.ResourceTypeGeneratedSource {
		return nil, errs.Validationf("generated_source resources are created by the pipeline, not by learners")
	}

	extraction := input.Extraction
	if extraction == nil {
		extraction = map[string]any{}
	}
	extractionJSON, err := json.Marshal(extraction)
	if err != nil {
		return nil, fmt.Errorf("marshal extraction metadata: %w", err)
	}

	res := &domain.Resource{
		ID:                 uuid.New(),
		UserID:             input.UserID,
		Type:               input.Type,
		ExtractedText:      TruncateUTF8(input.ExtractedText, MaxExtractedTextBytes),
		ExtractionMetadata: datatypes.JSON(extractionJSON),
	}
	if input.Filename != "" {
		filename := input.Filename
		res.Filename = &filename
	}
	if input.SourceURL != "" {
		sourceURL := input.SourceURL
		res.SourceURL = &sourceURL
	}
	if err := domain.ValidateResource(res); err != nil {
		return nil, errs.Validationf("%v", err)
	}

	if _, err := s.resourceRepo.Create(dbc, []*domain.Resource{res}); err != nil {
		s.log.Error("CreateLearnerResource failed", "error", err, "user_id", input.UserID)
		return nil, fmt.Errorf("create resource: %w", err)
	}
	s.log.Info("CreateLearnerResource", "resource_id", res.ID, "type", res.Type, "user_id", input.UserID)
	return res, nil
}

func (s *resourceService) CreateGeneratedSource(dbc dbctx.Context, userID uuid.UUID, unitID uuid.UUID, sourceText string, meta GeneratedSourceMetadata) (*domain.Resource, error) {
	if userID == uuid.Nil {
		return nil, errs.Validationf("user_id is required")
	}
	if sourceText == "" {
		return nil, errs.Validationf("source_text must be non-empty")
	}
	if meta.Method == "" {
		return nil, errs.Validationf("metadata method is required")
	}
	if meta.GeneratedAt.IsZero() {
		return nil, errs.Validationf("metadata generated_at is required")
	}
	if meta.UncoveredLOIDs == nil {
		return nil, errs.Validationf("metadata uncovered_lo_ids is required (may be empty)")
	}
	if unitID != uuid.Nil && meta.UnitID == "" {
		meta.UnitID = unitID.String()
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal generated-source metadata: %w", err)
	}

	res := &domain.Resource{
		ID:                 uuid.New(),
		UserID:             userID,
		Type:               domain.ResourceTypeGeneratedSource,
		ExtractedText:      TruncateUTF8(sourceText, MaxExtractedTextBytes),
		ExtractionMetadata: datatypes.JSON(metaJSON),
	}
	if err := domain.ValidateResource(res); err != nil {
		return nil, errs.Validationf("%v", err)
	}

	if _, err := s.resourceRepo.Create(dbc, []*domain.Resource{res}); err != nil {
		s.log.Error("CreateGeneratedSource failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("create generated source resource: %w", err)
	}
	s.log.Info("CreateGeneratedSource", "resource_id", res.ID, "method", meta.Method, "uncovered_count", len(meta.UncoveredLOIDs))
	return res, nil
}

func (s *resourceService) GetResourcesByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Resource, error) {
	return s.resourceRepo.GetByIDs(dbc, ids)
}

func (s *resourceService) AttachResourcesToUnit(dbc dbctx.Context, resourceIDs []uuid.UUID, unitID uuid.UUID) error {
	if err := s.resourceRepo.AttachToUnit(dbc, resourceIDs, unitID); err != nil {
		return errs.Linkf("attach resources to unit %s: %v", unitID, err)
	}
	return nil
}
