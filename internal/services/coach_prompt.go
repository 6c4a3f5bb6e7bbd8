package services

import (
	"fmt"
	"strings"

	"github.com/lanternroom/lantern-backend/internal/domain"
)

const coachSystemPrompt = `You are a learning coach helping a learner shape a personalized learning unit. Converse naturally: clarify what they want to learn, propose learning objectives with stable ids (lo_1, lo_2, ...), and refine them as the dialogue evolves.

Whenever the learner has shared materials and objectives exist, evaluate coverage: an objective id belongs in uncovered_learning_objective_ids only when the shared materials do not adequately support teaching it. Sharing more material can only shrink this list while the objectives stay the same. Return an empty list when materials cover everything, and null when no materials have been shared or objectives are not yet settled.`

// excerpt cap per resource inside the evaluation prompt. Full texts go
// through the combiner during unit assembly, not here.
const coachResourceExcerptBytes = 4000

func buildCoachPrompt(turns []*domain.ConversationTurn, objectives []domain.LearningObjective, resources []*domain.Resource) string {
	var b strings.Builder

	b.WriteString("Conversation so far:\n")
	for _, turn := range turns {
		speaker := "Learner"
		if turn.Role == domain.TurnRoleAssistant {
			speaker = "Coach"
		}
		b.WriteString(fmt.Sprintf("%s: %s\n", speaker, turn.Content))
	}

	if len(objectives) > 0 {
		b.WriteString("\nCurrently proposed learning objectives:\n")
		for _, lo := range objectives {
			b.WriteString(fmt.Sprintf("- %s: %s", lo.ID, lo.Title))
			if lo.Description != "" {
				b.WriteString(" — " + lo.Description)
			}
			b.WriteString("\n")
		}
	}

	if len(resources) > 0 {
		b.WriteString("\nMaterials the learner has shared:\n")
		for i, r := range resources {
			b.WriteString(fmt.Sprintf("\n[%s]\n", r.SourceLabel(i+1)))
			b.WriteString(TruncateUTF8(r.ExtractedText, coachResourceExcerptBytes))
			b.WriteString("\n")
		}
	} else {
		b.WriteString("\nThe learner has not shared any materials yet.\n")
	}

	return b.String()
}

func coachReplySchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"reply": map[string]any{
				"type":        "string",
				"description": "Conversational reply to the learner.",
			},
			"learning_objectives": map[string]any{
				"type":        []string{"array", "null"},
				"description": "Full current set of proposed objectives, or null to keep the previous set.",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"id":          map[string]any{"type": "string"},
						"title":       map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
					},
					"required": []string{"id", "title", "description"},
				},
			},
			"uncovered_learning_objective_ids": map[string]any{
				"type":        []string{"array", "null"},
				"description": "Objective ids not adequately supported by shared materials; empty when fully covered; null when not evaluable yet.",
				"items":       map[string]any{"type": "string"},
			},
		},
		"required": []string{"reply", "learning_objectives", "uncovered_learning_objective_ids"},
	}
}

// CoachReply is the decoded structured reply for one coach turn. Uncovered
// keeps the three verdict states apart: nil pointer (not evaluated), empty
// slice (fully covered), non-empty slice (these ids need supplementing).
type CoachReply struct {
	Reply      string
	Objectives []domain.LearningObjective
	Uncovered  *[]string
}

func decodeCoachReply(raw map[string]any) (CoachReply, error) {
	var out CoachReply
	if raw == nil {
		return out, fmt.Errorf("empty reply object")
	}

	reply, ok := raw["reply"].(string)
	if !ok || strings.TrimSpace(reply) == "" {
		return out, fmt.Errorf("reply text missing")
	}
	out.Reply = reply

	if rawObjectives, ok := raw["learning_objectives"].([]any); ok {
		objectives := make([]domain.LearningObjective, 0, len(rawObjectives))
		for _, item := range rawObjectives {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			lo := domain.LearningObjective{}
			lo.ID, _ = m["id"].(string)
			lo.Title, _ = m["title"].(string)
			lo.Description, _ = m["description"].(string)
			if lo.ID == "" || lo.Title == "" {
				continue
			}
			objectives = append(objectives, lo)
		}
		out.Objectives = objectives
	}

	if rawUncovered, ok := raw["uncovered_learning_objective_ids"].([]any); ok {
		uncovered := make([]string, 0, len(rawUncovered))
		for _, item := range rawUncovered {
			if id, ok := item.(string); ok && id != "" {
				uncovered = append(uncovered, id)
			}
		}
		out.Uncovered = &uncovered
	}

	return out, nil
}
