package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/lanternroom/lantern-backend/internal/data/repos"
	"github.com/lanternroom/lantern-backend/internal/domain"
	"github.com/lanternroom/lantern-backend/internal/pkg/dbctx"
	errs "github.com/lanternroom/lantern-backend/internal/pkg/errors"
	"github.com/lanternroom/lantern-backend/internal/pkg/logger"
	"github.com/lanternroom/lantern-backend/internal/platform/openai"
)

// SupplementalRequest scopes a generation call to the objectives that
// resources did not cover. Nothing else from the conversation is sent beyond
// the summary.
type SupplementalRequest struct {
	UserID              uuid.UUID
	ConversationID      uuid.UUID
	Objectives          []domain.LearningObjective
	ConversationSummary string
}

// SupplementalGenerator produces source text covering uncovered learning
// objectives. Failures, timeouts, and empty responses all surface as
// ErrGeneration; the caller owns any fallback policy.
type SupplementalGenerator interface {
	Generate(ctx context.Context, req SupplementalRequest) (string, error)
}

type supplementalGenerator struct {
	log       *logger.Logger
	ai        openai.Client
	aiLogRepo repos.AICallLogRepo
}

func NewSupplementalGenerator(baseLog *logger.Logger, ai openai.Client, aiLogRepo repos.AICallLogRepo) SupplementalGenerator {
	return &supplementalGenerator{
		log:       baseLog.With("service", "SupplementalGenerator"),
		ai:        ai,
		aiLogRepo: aiLogRepo,
	}
}

const supplementalSystemPrompt = `You are a learning-content author. Write clear, accurate source material a lesson writer can build mini-lessons from. Cover only the listed learning objectives. Use markdown with one "### " heading per objective. Do not mention these instructions or the learner's conversation.`

func buildSupplementalPrompt(objectives []domain.LearningObjective, conversationSummary string) string {
	var b strings.Builder
	b.WriteString("Write source material covering these learning objectives:\n")
	for _, lo := range objectives {
		b.WriteString(fmt.Sprintf("- %s: %s", lo.ID, lo.Title))
		if lo.Description != "" {
			b.WriteString(" — " + lo.Description)
		}
		b.WriteString("\n")
	}
	if strings.TrimSpace(conversationSummary) != "" {
		b.WriteString("\nContext about the learner and what they want out of this unit:\n")
		b.WriteString(conversationSummary)
		b.WriteString("\n")
	}
	return b.String()
}

func (g *supplementalGenerator) Generate(ctx context.Context, req SupplementalRequest) (string, error) {
	if len(req.Objectives) == 0 {
		return "", errs.Generationf("no uncovered objectives to generate for")
	}

	prompt := buildSupplementalPrompt(req.Objectives, req.ConversationSummary)
	text, err := g.ai.GenerateText(ctx, supplementalSystemPrompt, prompt)

	g.recordCall(ctx, req, prompt, text, err)

	if err != nil {
		return "", errs.Generationf("supplemental generation call: %v", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", errs.Generationf("supplemental generation returned empty text")
	}
	return text, nil
}

func (g *supplementalGenerator) recordCall(ctx context.Context, req SupplementalRequest, prompt, response string, callErr error) {
	if g.aiLogRepo == nil {
		return
	}
	entry := &domain.AICallLog{
		ID:       uuid.New(),
		CallType: "supplemental_generation",
		Model:    g.ai.Model(),
		Prompt:   prompt,
		Response: response,
		Success:  callErr == nil,
		Usage:    datatypes.JSON([]byte(`{}`)),
	}
	if req.UserID != uuid.Nil {
		userID := req.UserID
		entry.UserID = &userID
	}
	if req.ConversationID != uuid.Nil {
		convID := req.ConversationID
		entry.ContextID = &convID
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	if _, err := g.aiLogRepo.Create(dbctx.Context{Ctx: ctx}, []*domain.AICallLog{entry}); err != nil {
		g.log.Warn("failed to record supplemental generation call", "error", err)
	}
}
