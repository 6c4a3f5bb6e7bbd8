package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lanternroom/lantern-backend/internal/domain"
	"github.com/lanternroom/lantern-backend/internal/pkg/dbctx"
	errs "github.com/lanternroom/lantern-backend/internal/pkg/errors"
)

type fakeUnitRepo struct {
	units   map[uuid.UUID]*domain.Unit
	updates map[uuid.UUID][]map[string]interface{}
}

func newFakeUnitRepo(units ...*domain.Unit) *fakeUnitRepo {
	r := &fakeUnitRepo{
		units:   map[uuid.UUID]*domain.Unit{},
		updates: map[uuid.UUID][]map[string]interface{}{},
	}
	for _, u := range units {
		r.units[u.ID] = u
	}
	return r
}

func (r *fakeUnitRepo) Create(dbc dbctx.Context, units []*domain.Unit) ([]*domain.Unit, error) {
	for _, u := range units {
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		r.units[u.ID] = u
	}
	return units, nil
}

func (r *fakeUnitRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Unit, error) {
	var out []*domain.Unit
	for _, id := range ids {
		if u, ok := r.units[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUnitRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Unit, error) {
	return r.units[id], nil
}

func (r *fakeUnitRepo) ListByUserID(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*domain.Unit, error) {
	var out []*domain.Unit
	for _, u := range r.units {
		if u.UserID == userID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUnitRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	r.updates[id] = append(r.updates[id], updates)
	if u, ok := r.units[id]; ok {
		if status, ok := updates["status"].(string); ok {
			u.Status = status
		}
		if material, ok := updates["source_material"].(string); ok {
			u.SourceMaterial = material
		}
	}
	return nil
}

type fakeRunRepo struct {
	runs       map[uuid.UUID]*domain.UnitGenerationRun
	updates    map[uuid.UUID][]map[string]interface{}
	heartbeats int
}

func newFakeRunRepo(runs ...*domain.UnitGenerationRun) *fakeRunRepo {
	r := &fakeRunRepo{
		runs:    map[uuid.UUID]*domain.UnitGenerationRun{},
		updates: map[uuid.UUID][]map[string]interface{}{},
	}
	for _, run := range runs {
		r.runs[run.ID] = run
	}
	return r
}

func (r *fakeRunRepo) Create(dbc dbctx.Context, runs []*domain.UnitGenerationRun) ([]*domain.UnitGenerationRun, error) {
	for _, run := range runs {
		if run.ID == uuid.Nil {
			run.ID = uuid.New()
		}
		r.runs[run.ID] = run
	}
	return runs, nil
}

func (r *fakeRunRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.UnitGenerationRun, error) {
	var out []*domain.UnitGenerationRun
	for _, id := range ids {
		if run, ok := r.runs[id]; ok {
			out = append(out, run)
		}
	}
	return out, nil
}

func (r *fakeRunRepo) GetLatestByUnitID(dbc dbctx.Context, unitID uuid.UUID) (*domain.UnitGenerationRun, error) {
	var latest *domain.UnitGenerationRun
	for _, run := range r.runs {
		if run.UnitID != unitID {
			continue
		}
		if latest == nil || run.CreatedAt.After(latest.CreatedAt) {
			latest = run
		}
	}
	return latest, nil
}

func (r *fakeRunRepo) ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*domain.UnitGenerationRun, error) {
	for _, run := range r.runs {
		if run.Status == domain.RunStatusQueued {
			run.Status = domain.RunStatusRunning
			run.Attempts++
			return run, nil
		}
	}
	return nil, nil
}

func (r *fakeRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	r.updates[id] = append(r.updates[id], updates)
	if run, ok := r.runs[id]; ok {
		if status, ok := updates["status"].(string); ok {
			run.Status = status
		}
		if stage, ok := updates["stage"].(string); ok {
			run.Stage = stage
		}
	}
	return nil
}

func (r *fakeRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	r.heartbeats++
	return nil
}

// fakeAssembly stands in for the full pipeline inside worker tests.
type fakeAssembly struct {
	result  *SourceMaterialResult
	err     error
	linkErr error
	builds  int
	links   int
}

func (a *fakeAssembly) BuildSourceMaterial(dbc dbctx.Context, conversationID uuid.UUID, unitID uuid.UUID) (*SourceMaterialResult, error) {
	a.builds++
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func (a *fakeAssembly) LinkResources(dbc dbctx.Context, unitID uuid.UUID, learnerResourceIDs []uuid.UUID, generated *domain.Resource) error {
	a.links++
	return a.linkErr
}

func workerFixture(t *testing.T) (*unitCreationService, *fakeConversationRepo, *fakeUnitRepo, *fakeRunRepo, *fakeAssembly, *domain.UnitGenerationRun) {
	t.Helper()
	userID := uuid.New()
	conv := conversationWithMeta(t, userID, domain.ConversationMetadata{})
	unit := &domain.Unit{ID: uuid.New(), UserID: userID, Status: UnitStatusGenerating}
	run := &domain.UnitGenerationRun{
		ID:             uuid.New(),
		UserID:         userID,
		ConversationID: conv.ID,
		UnitID:         unit.ID,
		Status:         domain.RunStatusRunning,
		Stage:          "assemble",
	}

	convRepo := newFakeConversationRepo(conv)
	unitRepo := newFakeUnitRepo(unit)
	runRepo := newFakeRunRepo(run)
	assembly := &fakeAssembly{result: &SourceMaterialResult{SourceMaterial: "combined text"}}

	svc := &unitCreationService{
		log:              testLogger(t),
		conversationRepo: convRepo,
		unitRepo:         unitRepo,
		runRepo:          runRepo,
		assembly:         assembly,
	}
	return svc, convRepo, unitRepo, runRepo, assembly, run
}

func TestProcessRunSuccess(t *testing.T) {
	svc, convRepo, unitRepo, runRepo, assembly, run := workerFixture(t)

	svc.processRun(context.Background(), run)

	if assembly.builds != 1 || assembly.links != 1 {
		t.Fatalf("builds=%d links=%d", assembly.builds, assembly.links)
	}
	unit := unitRepo.units[run.UnitID]
	if unit.Status != UnitStatusReady {
		t.Fatalf("unit status = %q", unit.Status)
	}
	if unit.SourceMaterial != "combined text" {
		t.Fatalf("unit source material = %q", unit.SourceMaterial)
	}
	if runRepo.runs[run.ID].Status != domain.RunStatusSucceeded {
		t.Fatalf("run status = %q", runRepo.runs[run.ID].Status)
	}
	if convRepo.conversations[run.ConversationID].Status != ConversationStatusConsumed {
		t.Fatalf("conversation status = %q", convRepo.conversations[run.ConversationID].Status)
	}
}

func TestProcessRunAssemblyFailure(t *testing.T) {
	svc, convRepo, unitRepo, runRepo, assembly, run := workerFixture(t)
	assembly.err = errs.Generationf("model down")

	svc.processRun(context.Background(), run)

	if runRepo.runs[run.ID].Status != domain.RunStatusFailed {
		t.Fatalf("run status = %q", runRepo.runs[run.ID].Status)
	}
	if runRepo.runs[run.ID].Stage != "assemble" {
		t.Fatalf("run stage = %q", runRepo.runs[run.ID].Stage)
	}
	if unitRepo.units[run.UnitID].Status != UnitStatusFailed {
		t.Fatalf("unit status = %q", unitRepo.units[run.UnitID].Status)
	}
	if convRepo.conversations[run.ConversationID].Status == ConversationStatusConsumed {
		t.Fatal("failed run must not consume the conversation")
	}
	if assembly.links != 0 {
		t.Fatal("link step must not run after an assembly failure")
	}
}

func TestProcessRunLinkFailure(t *testing.T) {
	svc, _, unitRepo, runRepo, assembly, run := workerFixture(t)
	assembly.linkErr = errs.Linkf("db down")

	svc.processRun(context.Background(), run)

	if runRepo.runs[run.ID].Status != domain.RunStatusFailed {
		t.Fatalf("run status = %q", runRepo.runs[run.ID].Status)
	}
	if runRepo.runs[run.ID].Stage != "link" {
		t.Fatalf("run stage = %q", runRepo.runs[run.ID].Stage)
	}
	// The unit had its material written before linking failed; the failure
	// marker wins.
	if unitRepo.units[run.UnitID].Status != UnitStatusFailed {
		t.Fatalf("unit status = %q", unitRepo.units[run.UnitID].Status)
	}
	if unitRepo.units[run.UnitID].SourceMaterial != "combined text" {
		t.Fatal("source material should survive a link failure")
	}
}
