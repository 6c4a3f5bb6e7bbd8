package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lanternroom/lantern-backend/internal/data/repos"
	"github.com/lanternroom/lantern-backend/internal/domain"
	"github.com/lanternroom/lantern-backend/internal/pkg/dbctx"
	errs "github.com/lanternroom/lantern-backend/internal/pkg/errors"
	"github.com/lanternroom/lantern-backend/internal/pkg/logger"
	"github.com/lanternroom/lantern-backend/internal/platform/openai"
)

const (
	ConversationStatusActive        = "active"
	ConversationStatusBriefAccepted = "brief_accepted"
	ConversationStatusConsumed      = "consumed"
)

// CoachService runs the learning-coach dialogue. Each assistant turn carries
// a structured coverage verdict alongside the conversational reply; the
// verdict is written wholesale into conversation metadata, replacing the
// previous one.
type CoachService interface {
	CreateConversation(dbc dbctx.Context, userID uuid.UUID, title string) (*domain.Conversation, error)
	// GetConversation returns the conversation and its turns, oldest first.
	GetConversation(dbc dbctx.Context, conversationID uuid.UUID) (*domain.Conversation, []*domain.ConversationTurn, error)

	// SendMessage appends the learner turn, asks the coach for a reply plus a
	// fresh coverage evaluation, appends the assistant turn, and persists the
	// updated metadata. Returns the assistant turn.
	SendMessage(dbc dbctx.Context, conversationID uuid.UUID, content string) (*domain.ConversationTurn, error)

	// AttachResources links already-created resources to the conversation so
	// subsequent coverage evaluations and the unit pipeline see them.
	AttachResources(dbc dbctx.Context, conversationID uuid.UUID, resourceIDs []uuid.UUID) error

	// AcceptBrief records the learner's acceptance of the proposed brief and
	// freezes the conversation for unit creation.
	AcceptBrief(dbc dbctx.Context, conversationID uuid.UUID, brief map[string]any) error
}

type coachService struct {
	db  *gorm.DB
	log *logger.Logger

	conversationRepo repos.ConversationRepo
	resourceRepo     repos.ResourceRepo
	aiLogRepo        repos.AICallLogRepo
	ai               openai.Client
}

func NewCoachService(
	db *gorm.DB,
	baseLog *logger.Logger,
	conversationRepo repos.ConversationRepo,
	resourceRepo repos.ResourceRepo,
	aiLogRepo repos.AICallLogRepo,
	ai openai.Client,
) CoachService {
	return &coachService{
		db:               db,
		log:              baseLog.With("service", "CoachService"),
		conversationRepo: conversationRepo,
		resourceRepo:     resourceRepo,
		aiLogRepo:        aiLogRepo,
		ai:               ai,
	}
}

func (s *coachService) CreateConversation(dbc dbctx.Context, userID uuid.UUID, title string) (*domain.Conversation, error) {
	if userID == uuid.Nil {
		return nil, errs.Validationf("user_id is required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "New conversation"
	}

	// uncovered_learning_objective_ids starts as JSON null: no verdict has
	// been computed yet.
	meta, err := domain.EncodeConversationMetadata(domain.ConversationMetadata{
		ResourceIDs:                   []uuid.UUID{},
		UncoveredLearningObjectiveIDs: nil,
	})
	if err != nil {
		return nil, fmt.Errorf("encode conversation metadata: %w", err)
	}

	conv := &domain.Conversation{
		ID:       uuid.New(),
		UserID:   userID,
		Title:    title,
		Status:   ConversationStatusActive,
		Metadata: meta,
	}
	if _, err := s.conversationRepo.Create(dbc, []*domain.Conversation{conv}); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	s.log.Info("CreateConversation", "conversation_id", conv.ID, "user_id", userID)
	return conv, nil
}

func (s *coachService) GetConversation(dbc dbctx.Context, conversationID uuid.UUID) (*domain.Conversation, []*domain.ConversationTurn, error) {
	conv, err := s.conversationRepo.GetByID(dbc, conversationID)
	if err != nil {
		return nil, nil, fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return nil, nil, errs.NotFoundf("conversation %s", conversationID)
	}
	turns, err := s.conversationRepo.GetTurns(dbc, conversationID, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("load turns: %w", err)
	}
	return conv, turns, nil
}

func (s *coachService) SendMessage(dbc dbctx.Context, conversationID uuid.UUID, content string) (*domain.ConversationTurn, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errs.Validationf("message content must be non-empty")
	}

	conv, err := s.conversationRepo.GetByID(dbc, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return nil, errs.NotFoundf("conversation %s", conversationID)
	}
	if conv.Status == ConversationStatusConsumed {
		return nil, errs.Validationf("conversation %s has been consumed by unit creation", conversationID)
	}

	maxSeq, err := s.conversationRepo.MaxTurnSeq(dbc, conversationID)
	if err != nil {
		return nil, fmt.Errorf("next turn seq: %w", err)
	}
	userTurn := &domain.ConversationTurn{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Seq:            maxSeq + 1,
		Role:           domain.TurnRoleUser,
		Content:        content,
	}
	if _, err := s.conversationRepo.AppendTurns(dbc, []*domain.ConversationTurn{userTurn}); err != nil {
		return nil, fmt.Errorf("append user turn: %w", err)
	}

	turns, err := s.conversationRepo.GetTurns(dbc, conversationID, 0)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	meta, err := conv.DecodeMetadata()
	if err != nil {
		return nil, fmt.Errorf("decode conversation metadata: %w", err)
	}
	resources, err := s.resourceRepo.GetByIDs(dbc, meta.ResourceIDs)
	if err != nil {
		return nil, fmt.Errorf("load conversation resources: %w", err)
	}

	prompt := buildCoachPrompt(turns, meta.LearningObjectives, resources)
	raw, callErr := s.ai.GenerateJSON(dbc.Ctx, coachSystemPrompt, prompt, "coach_reply", coachReplySchema())
	s.recordCall(dbc, conv, prompt, raw, callErr)
	if callErr != nil {
		return nil, fmt.Errorf("coach reply call: %w", callErr)
	}
	reply, err := decodeCoachReply(raw)
	if err != nil {
		return nil, fmt.Errorf("decode coach reply: %w", err)
	}

	assistantTurn := &domain.ConversationTurn{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Seq:            userTurn.Seq + 1,
		Role:           domain.TurnRoleAssistant,
		Content:        reply.Reply,
	}
	if _, err := s.conversationRepo.AppendTurns(dbc, []*domain.ConversationTurn{assistantTurn}); err != nil {
		return nil, fmt.Errorf("append assistant turn: %w", err)
	}

	// Read-then-write the full metadata map. The verdict replaces the stored
	// one wholesale on every evaluated turn; it is never merged.
	if reply.Objectives != nil {
		meta.LearningObjectives = reply.Objectives
	}
	meta.UncoveredLearningObjectiveIDs = reply.Uncovered
	encoded, err := domain.EncodeConversationMetadata(meta)
	if err != nil {
		return nil, fmt.Errorf("encode conversation metadata: %w", err)
	}
	if err := s.conversationRepo.UpdateMetadata(dbc, conversationID, encoded); err != nil {
		return nil, fmt.Errorf("update conversation metadata: %w", err)
	}

	return assistantTurn, nil
}

func (s *coachService) AttachResources(dbc dbctx.Context, conversationID uuid.UUID, resourceIDs []uuid.UUID) error {
	if len(resourceIDs) == 0 {
		return nil
	}
	conv, err := s.conversationRepo.GetByID(dbc, conversationID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return errs.NotFoundf("conversation %s", conversationID)
	}
	if conv.Status == ConversationStatusConsumed {
		return errs.Validationf("conversation %s has been consumed by unit creation", conversationID)
	}

	resources, err := s.resourceRepo.GetByIDs(dbc, resourceIDs)
	if err != nil {
		return fmt.Errorf("load resources: %w", err)
	}
	found := make(map[uuid.UUID]bool, len(resources))
	for _, r := range resources {
		if r.UserID != conv.UserID {
			return errs.Validationf("resource %s does not belong to the conversation owner", r.ID)
		}
		found[r.ID] = true
	}
	for _, id := range resourceIDs {
		if !found[id] {
			return errs.NotFoundf("resource %s", id)
		}
	}

	meta, err := conv.DecodeMetadata()
	if err != nil {
		return fmt.Errorf("decode conversation metadata: %w", err)
	}
	existing := make(map[uuid.UUID]bool, len(meta.ResourceIDs))
	for _, id := range meta.ResourceIDs {
		existing[id] = true
	}
	for _, id := range resourceIDs {
		if !existing[id] {
			meta.ResourceIDs = append(meta.ResourceIDs, id)
			existing[id] = true
		}
	}
	encoded, err := domain.EncodeConversationMetadata(meta)
	if err != nil {
		return fmt.Errorf("encode conversation metadata: %w", err)
	}
	if err := s.conversationRepo.UpdateMetadata(dbc, conversationID, encoded); err != nil {
		return fmt.Errorf("update conversation metadata: %w", err)
	}
	s.log.Info("AttachResources", "conversation_id", conversationID, "attached", len(resourceIDs))
	return nil
}

func (s *coachService) AcceptBrief(dbc dbctx.Context, conversationID uuid.UUID, brief map[string]any) error {
	conv, err := s.conversationRepo.GetByID(dbc, conversationID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return errs.NotFoundf("conversation %s", conversationID)
	}
	if conv.Status == ConversationStatusConsumed {
		return errs.Validationf("conversation %s has been consumed by unit creation", conversationID)
	}
	if brief == nil {
		brief = map[string]any{}
	}

	meta, err := conv.DecodeMetadata()
	if err != nil {
		return fmt.Errorf("decode conversation metadata: %w", err)
	}
	meta.AcceptedBrief = brief
	encoded, err := domain.EncodeConversationMetadata(meta)
	if err != nil {
		return fmt.Errorf("encode conversation metadata: %w", err)
	}
	if err := s.conversationRepo.UpdateMetadata(dbc, conversationID, encoded); err != nil {
		return fmt.Errorf("update conversation metadata: %w", err)
	}
	return s.conversationRepo.UpdateFields(dbc, conversationID, map[string]interface{}{
		"status": ConversationStatusBriefAccepted,
	})
}

func (s *coachService) recordCall(dbc dbctx.Context, conv *domain.Conversation, prompt string, raw map[string]any, callErr error) {
	if s.aiLogRepo == nil {
		return
	}
	response := ""
	if raw != nil {
		if encoded, err := json.Marshal(raw); err == nil {
			response = string(encoded)
		}
	}
	userID := conv.UserID
	convID := conv.ID
	entry := &domain.AICallLog{
		ID:        uuid.New(),
		UserID:    &userID,
		ContextID: &convID,
		CallType:  "coach_reply",
		Model:     s.ai.Model(),
		Prompt:    prompt,
		Response:  response,
		Success:   callErr == nil,
		Usage:     datatypes.JSON([]byte(`{}`)),
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	if _, err := s.aiLogRepo.Create(dbc, []*domain.AICallLog{entry}); err != nil {
		s.log.Warn("failed to record coach call", "error", err)
	}
}
