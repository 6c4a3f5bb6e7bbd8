package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lanternroom/lantern-backend/internal/data/repos"
	"github.com/lanternroom/lantern-backend/internal/domain"
	"github.com/lanternroom/lantern-backend/internal/pkg/dbctx"
	errs "github.com/lanternroom/lantern-backend/internal/pkg/errors"
	"github.com/lanternroom/lantern-backend/internal/pkg/logger"
)

// SourceMaterialResult is what one assembly pass produces: the final text for
// the unit, the learner resources that contributed (for provenance linking),
// and the generated supplemental resource when one was created.
type SourceMaterialResult struct {
	SourceMaterial     string
	LearnerResourceIDs []uuid.UUID
	GeneratedResource  *domain.Resource
}

// UnitAssemblyService builds a unit's source material from a coaching
// conversation and links contributing resources once the unit exists.
type UnitAssemblyService interface {
	// BuildSourceMaterial runs the assembly pipeline for a conversation:
	// fetch linked resources, combine their text under the byte budget,
	// generate supplemental text for uncovered objectives when the stored
	// verdict demands it, merge, and persist the generated supplement.
	//
	// Not idempotent with respect to resource creation: a second call after a
	// successful supplemental generation creates a second generated_source
	// row. There is no dedup key; retries must be policed by the caller.
	BuildSourceMaterial(dbc dbctx.Context, conversationID uuid.UUID, unitID uuid.UUID) (*SourceMaterialResult, error)

	// LinkResources attaches contributing resources to the created unit.
	// Learner-resource link failures are fatal; a generated-resource link
	// failure is logged and swallowed, leaving a valid but unlinked resource.
	LinkResources(dbc dbctx.Context, unitID uuid.UUID, learnerResourceIDs []uuid.UUID, generated *domain.Resource) error
}

type unitAssemblyService struct {
	db  *gorm.DB
	log *logger.Logger

	conversationRepo repos.ConversationRepo
	resourceRepo     repos.ResourceRepo
	resourceService  ResourceService
	generator        SupplementalGenerator

	maxSourceBytes int
}

func NewUnitAssemblyService(
	db *gorm.DB,
	baseLog *logger.Logger,
	conversationRepo repos.ConversationRepo,
	resourceRepo repos.ResourceRepo,
	resourceService ResourceService,
	generator SupplementalGenerator,
	maxSourceBytes int,
) UnitAssemblyService {
	if maxSourceBytes <= 0 {
		maxSourceBytes = DefaultMaxSourceBytes
	}
	return &unitAssemblyService{
		db:               db,
		log:              baseLog.With("service", "UnitAssemblyService"),
		conversationRepo: conversationRepo,
		resourceRepo:     resourceRepo,
		resourceService:  resourceService,
		generator:        generator,
		maxSourceBytes:   maxSourceBytes,
	}
}

func (s *unitAssemblyService) BuildSourceMaterial(dbc dbctx.Context, conversationID uuid.UUID, unitID uuid.UUID) (*SourceMaterialResult, error) {
	conv, err := s.conversationRepo.GetByID(dbc, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return nil, errs.NotFoundf("conversation %s", conversationID)
	}
	meta, err := conv.DecodeMetadata()
	if err != nil {
		return nil, fmt.Errorf("decode conversation metadata: %w", err)
	}

	// No linked resources: the unit falls back to the fully-generated path
	// elsewhere; this pipeline contributes nothing.
	if len(meta.ResourceIDs) == 0 {
		return &SourceMaterialResult{LearnerResourceIDs: []uuid.UUID{}}, nil
	}

	fetched, err := s.resourceRepo.GetByIDs(dbc, meta.ResourceIDs)
	if err != nil {
		return nil, fmt.Errorf("load conversation resources: %w", err)
	}
	// Ids that no longer resolve are skipped, not fatal. Restore the stored
	// order: the combiner's output order is part of its contract and the
	// repo does not guarantee row order for IN queries.
	byID := make(map[uuid.UUID]*domain.Resource, len(fetched))
	for _, r := range fetched {
		byID[r.ID] = r
	}
	ordered := make([]*domain.Resource, 0, len(meta.ResourceIDs))
	for _, id := range meta.ResourceIDs {
		if r, ok := byID[id]; ok {
			ordered = append(ordered, r)
		}
	}
	if len(ordered) < len(meta.ResourceIDs) {
		s.log.Warn("some conversation resources did not resolve",
			"conversation_id", conversationID,
			"requested", len(meta.ResourceIDs),
			"resolved", len(ordered),
		)
	}

	learnerIDs := make([]uuid.UUID, 0, len(ordered))
	hasText := false
	items := make([]SourceItem, 0, len(ordered))
	for i, r := range ordered {
		learnerIDs = append(learnerIDs, r.ID)
		if strings.TrimSpace(r.ExtractedText) != "" {
			hasText = true
		}
		items = append(items, SourceItem{
			Label:   r.SourceLabel(i + 1),
			Content: r.ExtractedText,
		})
	}
	if len(ordered) == 0 || !hasText {
		return &SourceMaterialResult{LearnerResourceIDs: learnerIDs}, nil
	}

	learnerText := CombineSources(items, s.maxSourceBytes)

	// A nil verdict means coverage was never evaluated. Resources were
	// shared, so we assume they cover the objectives and skip supplemental
	// generation, same as an explicit empty verdict. This is a deliberate
	// policy choice; see DESIGN.md.
	if meta.UncoveredLearningObjectiveIDs == nil || len(*meta.UncoveredLearningObjectiveIDs) == 0 {
		return &SourceMaterialResult{
			SourceMaterial:     learnerText,
			LearnerResourceIDs: learnerIDs,
		}, nil
	}
	uncovered := *meta.UncoveredLearningObjectiveIDs

	objectivesByID := domain.ObjectivesByID(meta.LearningObjectives)
	objectives := make([]domain.LearningObjective, 0, len(uncovered))
	for _, id := range uncovered {
		if lo, ok := objectivesByID[id]; ok {
			objectives = append(objectives, lo)
		} else {
			objectives = append(objectives, domain.LearningObjective{ID: id, Title: id})
		}
	}

	supplementalText, err := s.generator.Generate(dbc.Ctx, SupplementalRequest{
		UserID:              conv.UserID,
		ConversationID:      conv.ID,
		Objectives:          objectives,
		ConversationSummary: buildConversationSummary(conv, meta),
	})
	if err != nil {
		// Already ErrGeneration; the caller decides whether to retry or fall
		// back to learner text only.
		return nil, err
	}

	finalText := MergeSourceMaterial(learnerText, supplementalText)

	generated, err := s.resourceService.CreateGeneratedSource(dbc, conv.UserID, unitID, supplementalText, GeneratedSourceMetadata{
		Method:         GeneratedSourceMethodAISupplemental,
		GeneratedAt:    time.Now(),
		UncoveredLOIDs: uncovered,
	})
	if err != nil {
		return nil, fmt.Errorf("persist generated supplement: %w", err)
	}

	s.log.Info("BuildSourceMaterial",
		"conversation_id", conversationID,
		"learner_resources", len(learnerIDs),
		"uncovered_objectives", len(uncovered),
		"final_bytes", len(finalText),
	)
	return &SourceMaterialResult{
		SourceMaterial:     finalText,
		LearnerResourceIDs: learnerIDs,
		GeneratedResource:  generated,
	}, nil
}

func (s *unitAssemblyService) LinkResources(dbc dbctx.Context, unitID uuid.UUID, learnerResourceIDs []uuid.UUID, generated *domain.Resource) error {
	if unitID == uuid.Nil {
		return errs.Validationf("unit_id is required")
	}

	if len(learnerResourceIDs) > 0 {
		if err := s.resourceRepo.AttachToUnit(dbc, learnerResourceIDs, unitID); err != nil {
			return errs.Linkf("attach learner resources to unit %s: %v", unitID, err)
		}
	}

	if generated != nil {
		if err := s.resourceRepo.AttachToUnit(dbc, []uuid.UUID{generated.ID}, unitID); err != nil {
			// The generated resource stays persisted but unlinked. Non-fatal,
			// but operators need to see it.
			s.log.Error("failed to link generated resource to unit; resource is orphaned",
				"unit_id", unitID,
				"resource_id", generated.ID,
				"error", err,
			)
		}
	}
	return nil
}

func buildConversationSummary(conv *domain.Conversation, meta domain.ConversationMetadata) string {
	var parts []string
	if strings.TrimSpace(conv.Title) != "" {
		parts = append(parts, conv.Title)
	}
	if meta.AcceptedBrief != nil {
		for _, key := range []string{"topic", "summary", "goal"} {
			if v, ok := meta.AcceptedBrief[key].(string); ok && strings.TrimSpace(v) != "" {
				parts = append(parts, v)
			}
		}
	}
	return strings.Join(parts, "\n")
}
