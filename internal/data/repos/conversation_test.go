package repos_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/lanternroom/lantern-backend/internal/data/repos"
	"github.com/lanternroom/lantern-backend/internal/data/repos/testutil"
	"github.com/lanternroom/lantern-backend/internal/domain"
	"github.com/lanternroom/lantern-backend/internal/pkg/dbctx"
)

func TestConversationRepoCreateAndGet(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := repos.NewConversationRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, tx, "conv-repo@test.local")
	meta, err := domain.EncodeConversationMetadata(domain.ConversationMetadata{
		ResourceIDs:                   []uuid.UUID{},
		UncoveredLearningObjectiveIDs: nil,
	})
	if err != nil {
		t.Fatalf("encode metadata: %v", err)
	}

	conv := &domain.Conversation{
		ID:       uuid.New(),
		UserID:   user.ID,
		Title:    "Tides",
		Status:   "active",
		Metadata: meta,
	}
	if _, err := repo.Create(dbc, []*domain.Conversation{conv}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(dbc, conv.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.Title != "Tides" {
		t.Fatalf("got = %+v", got)
	}
	decoded, err := got.DecodeMetadata()
	if err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if decoded.UncoveredLearningObjectiveIDs != nil {
		t.Fatal("null verdict must survive the jsonb round trip")
	}
	if decoded.ResourceIDs == nil || len(decoded.ResourceIDs) != 0 {
		t.Fatalf("resource ids = %v", decoded.ResourceIDs)
	}
}

func TestConversationRepoGetByIDMissing(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := repos.NewConversationRepo(db, testutil.Logger(t))

	got, err := repo.GetByID(dbc, uuid.New())
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for a missing conversation, got %+v", got)
	}
}

func TestConversationRepoTurns(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := repos.NewConversationRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, tx, "conv-turns@test.local")
	conv := testutil.SeedConversation(t, ctx, tx, user.ID, "")

	maxSeq, err := repo.MaxTurnSeq(dbc, conv.ID)
	if err != nil {
		t.Fatalf("MaxTurnSeq: %v", err)
	}
	if maxSeq != 0 {
		t.Fatalf("max seq on empty conversation = %d", maxSeq)
	}

	turns := []*domain.ConversationTurn{
		{ID: uuid.New(), ConversationID: conv.ID, Seq: 1, Role: domain.TurnRoleUser, Content: "hello"},
		{ID: uuid.New(), ConversationID: conv.ID, Seq: 2, Role: domain.TurnRoleAssistant, Content: "hi there"},
	}
	if _, err := repo.AppendTurns(dbc, turns); err != nil {
		t.Fatalf("AppendTurns: %v", err)
	}

	got, err := repo.GetTurns(dbc, conv.ID, 0)
	if err != nil {
		t.Fatalf("GetTurns: %v", err)
	}
	if len(got) != 2 || got[0].Seq != 1 || got[1].Seq != 2 {
		t.Fatalf("turns out of order: %+v", got)
	}

	maxSeq, err = repo.MaxTurnSeq(dbc, conv.ID)
	if err != nil {
		t.Fatalf("MaxTurnSeq: %v", err)
	}
	if maxSeq != 2 {
		t.Fatalf("max seq = %d", maxSeq)
	}
}

func TestConversationRepoUpdateMetadataReplacesDocument(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := repos.NewConversationRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, tx, "conv-meta@test.local")
	conv := testutil.SeedConversation(t, ctx, tx, user.ID, `{"resource_ids":[],"uncovered_learning_objective_ids":["lo_1"]}`)

	next := datatypes.JSON([]byte(`{"resource_ids":[],"uncovered_learning_objective_ids":[]}`))
	if err := repo.UpdateMetadata(dbc, conv.ID, next); err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}

	got, err := repo.GetByID(dbc, conv.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	decoded, err := got.DecodeMetadata()
	if err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if decoded.UncoveredLearningObjectiveIDs == nil || len(*decoded.UncoveredLearningObjectiveIDs) != 0 {
		t.Fatalf("verdict not replaced: %v", decoded.UncoveredLearningObjectiveIDs)
	}
}

func TestConversationRepoUpdateFields(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := repos.NewConversationRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, tx, "conv-fields@test.local")
	conv := testutil.SeedConversation(t, ctx, tx, user.ID, "")

	if err := repo.UpdateFields(dbc, conv.ID, map[string]interface{}{"status": "brief_accepted"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, err := repo.GetByID(dbc, conv.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != "brief_accepted" {
		t.Fatalf("status = %q", got.Status)
	}
}
