package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/lanternroom/lantern-backend/internal/domain"
	"github.com/lanternroom/lantern-backend/internal/pkg/dbctx"
	"github.com/lanternroom/lantern-backend/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func conversationWithMeta(t *testing.T, userID uuid.UUID, meta domain.ConversationMetadata) *domain.Conversation {
	t.Helper()
	raw, err := domain.EncodeConversationMetadata(meta)
	if err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	return &domain.Conversation{
		ID:       uuid.New(),
		UserID:   userID,
		Title:    "Test conversation",
		Status:   ConversationStatusBriefAccepted,
		Metadata: raw,
	}
}

func strptr(s string) *string { return &s }

type fakeConversationRepo struct {
	conversations map[uuid.UUID]*domain.Conversation
	turns         []*domain.ConversationTurn
	updatedFields map[uuid.UUID]map[string]interface{}
}

func newFakeConversationRepo(convs ...*domain.Conversation) *fakeConversationRepo {
	r := &fakeConversationRepo{
		conversations: map[uuid.UUID]*domain.Conversation{},
		updatedFields: map[uuid.UUID]map[string]interface{}{},
	}
	for _, c := range convs {
		r.conversations[c.ID] = c
	}
	return r
}

func (r *fakeConversationRepo) Create(dbc dbctx.Context, conversations []*domain.Conversation) ([]*domain.Conversation, error) {
	for _, c := range conversations {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		r.conversations[c.ID] = c
	}
	return conversations, nil
}

func (r *fakeConversationRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Conversation, error) {
	var out []*domain.Conversation
	for _, id := range ids {
		if c, ok := r.conversations[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeConversationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Conversation, error) {
	return r.conversations[id], nil
}

func (r *fakeConversationRepo) ListByUserID(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*domain.Conversation, error) {
	var out []*domain.Conversation
	for _, c := range r.conversations {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeConversationRepo) AppendTurns(dbc dbctx.Context, turns []*domain.ConversationTurn) ([]*domain.ConversationTurn, error) {
	r.turns = append(r.turns, turns...)
	return turns, nil
}

func (r *fakeConversationRepo) GetTurns(dbc dbctx.Context, conversationID uuid.UUID, limit int) ([]*domain.ConversationTurn, error) {
	var out []*domain.ConversationTurn
	for _, turn := range r.turns {
		if turn.ConversationID == conversationID {
			out = append(out, turn)
		}
	}
	return out, nil
}

func (r *fakeConversationRepo) MaxTurnSeq(dbc dbctx.Context, conversationID uuid.UUID) (int64, error) {
	var max int64
	for _, turn := range r.turns {
		if turn.ConversationID == conversationID && turn.Seq > max {
			max = turn.Seq
		}
	}
	return max, nil
}

func (r *fakeConversationRepo) UpdateMetadata(dbc dbctx.Context, id uuid.UUID, metadata datatypes.JSON) error {
	c, ok := r.conversations[id]
	if !ok {
		return nil
	}
	c.Metadata = metadata
	return nil
}

func (r *fakeConversationRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	r.updatedFields[id] = updates
	if c, ok := r.conversations[id]; ok {
		if status, ok := updates["status"].(string); ok {
			c.Status = status
		}
	}
	return nil
}

type fakeResourceRepo struct {
	resources   map[uuid.UUID]*domain.Resource
	attachCalls [][]uuid.UUID
	attachErr   func(resourceIDs []uuid.UUID) error
}

func newFakeResourceRepo(resources ...*domain.Resource) *fakeResourceRepo {
	r := &fakeResourceRepo{resources: map[uuid.UUID]*domain.Resource{}}
	for _, res := range resources {
		r.resources[res.ID] = res
	}
	return r
}

func (r *fakeResourceRepo) Create(dbc dbctx.Context, resources []*domain.Resource) ([]*domain.Resource, error) {
	for _, res := range resources {
		if res.ID == uuid.Nil {
			res.ID = uuid.New()
		}
		r.resources[res.ID] = res
	}
	return resources, nil
}

// GetByIDs deliberately iterates the map so row order never matches the input
// order, same as an IN query.
func (r *fakeResourceRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Resource, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []*domain.Resource
	for id, res := range r.resources {
		if want[id] {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *fakeResourceRepo) GetByUserID(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*domain.Resource, error) {
	var out []*domain.Resource
	for _, res := range r.resources {
		if res.UserID == userID {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *fakeResourceRepo) AttachToUnit(dbc dbctx.Context, resourceIDs []uuid.UUID, unitID uuid.UUID) error {
	if r.attachErr != nil {
		if err := r.attachErr(resourceIDs); err != nil {
			return err
		}
	}
	r.attachCalls = append(r.attachCalls, resourceIDs)
	return nil
}

func (r *fakeResourceRepo) GetLinksByUnitID(dbc dbctx.Context, unitID uuid.UUID) ([]*domain.UnitResourceLink, error) {
	return nil, nil
}

type fakeResourceService struct {
	created   []*domain.Resource
	meta      []GeneratedSourceMetadata
	createErr error
}

func (s *fakeResourceService) CreateLearnerResource(dbc dbctx.Context, input CreateResourceInput) (*domain.Resource, error) {
	return nil, nil
}

func (s *fakeResourceService) CreateGeneratedSource(dbc dbctx.Context, userID uuid.UUID, unitID uuid.UUID, sourceText string, meta GeneratedSourceMetadata) (*domain.Resource, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	if unitID != uuid.Nil && meta.UnitID == "" {
		meta.UnitID = unitID.String()
	}
	res := &domain.Resource{
		ID:            uuid.New(),
		UserID:        userID,
		Type:          domain.ResourceTypeGeneratedSource,
		ExtractedText: sourceText,
	}
	s.created = append(s.created, res)
	s.meta = append(s.meta, meta)
	return res, nil
}

func (s *fakeResourceService) GetResourcesByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Resource, error) {
	return nil, nil
}

func (s *fakeResourceService) AttachResourcesToUnit(dbc dbctx.Context, resourceIDs []uuid.UUID, unitID uuid.UUID) error {
	return nil
}

type fakeGenerator struct {
	text  string
	err   error
	calls []SupplementalRequest
}

func (g *fakeGenerator) Generate(ctx context.Context, req SupplementalRequest) (string, error) {
	g.calls = append(g.calls, req)
	if g.err != nil {
		return "", g.err
	}
	return g.text, nil
}
