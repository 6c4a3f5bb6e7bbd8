package domain

// LearningObjective is one proposed outcome for a unit under construction.
// Objectives are produced by the coaching conversation at brief finalization
// and live inside Conversation metadata; they are copied onto the Unit when
// the unit is created, never persisted as rows of their own.
type LearningObjective struct {
	// ID is a stable conversation-scoped id ("lo_1", "lo_2", ...).
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ObjectivesByID indexes objectives by their stable id.
func ObjectivesByID(objectives []LearningObjective) map[string]LearningObjective {
	out := make(map[string]LearningObjective, len(objectives))
	for _, lo := range objectives {
		if lo.ID == "" {
			continue
		}
		out[lo.ID] = lo
	}
	return out
}
