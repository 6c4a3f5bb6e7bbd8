package services

import (
	"context"
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

const (
	UnitStatusGenerating = "generating"
	UnitStatusReady      = "ready"
	UnitStatusFailed     = "failed"
)

// UnitCreationService turns an accepted coaching conversation into a unit. It
// enqueues a generation run and processes runs on an in-process worker so the
// HTTP request returns immediately while assembly (which may spend seconds in
// an LLM call) happens in the background.
type UnitCreationService interface {
	EnqueueFromConversation(dbc dbctx.Context, userID uuid.UUID, conversationID uuid.UUID) (*domain.Unit, *domain.UnitGenerationRun, error)
	GetUnit(dbc dbctx.Context, unitID uuid.UUID) (*domain.Unit, *domain.UnitGenerationRun, error)
	StartWorker(ctx context.Context)
}

type unitCreationService struct {
	db  *gorm.DB
	log *logger.Logger

	conversationRepo repos.ConversationRepo
	unitRepo         repos.UnitRepo
	runRepo          repos.UnitGenerationRunRepo
	assembly         UnitAssemblyService
}

func NewUnitCreationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	conversationRepo repos.ConversationRepo,
	unitRepo repos.UnitRepo,
	runRepo repos.UnitGenerationRunRepo,
	assembly UnitAssemblyService,
) UnitCreationService {
	return &unitCreationService{
		db:               db,
		log:              baseLog.With("service", "UnitCreationService"),
		conversationRepo: conversationRepo,
		unitRepo:         unitRepo,
		runRepo:          runRepo,
		assembly:         assembly,
	}
}

func (s *unitCreationService) EnqueueFromConversation(dbc dbctx.Context, userID uuid.UUID, conversationID uuid.UUID) (*domain.Unit, *domain.UnitGenerationRun, error) {
	var unit *domain.Unit
	var run *domain.UnitGenerationRun

	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}

	err := transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}

		conv, err := s.conversationRepo.GetByID(txc, conversationID)
		if err != nil {
			return fmt.Errorf("load conversation: %w", err)
		}
		if conv == nil || conv.UserID != userID {
			return errs.NotFoundf("conversation %s", conversationID)
		}
		if conv.Status == ConversationStatusConsumed {
			return errs.Validationf("conversation %s already produced a unit", conversationID)
		}
		meta, err := conv.DecodeMetadata()
		if err != nil {
			return fmt.Errorf("decode conversation metadata: %w", err)
		}

		objectivesJSON, err := json.Marshal(meta.LearningObjectives)
		if err != nil {
			return fmt.Errorf("marshal learning objectives: %w", err)
		}

		title := conv.Title
		if meta.AcceptedBrief != nil {
			if t, ok := meta.AcceptedBrief["title"].(string); ok && t != "" {
				title = t
			}
		}

		now := time.Now()
		convID := conversationID
		unit = &domain.Unit{
			ID:                 uuid.New(),
			UserID:             userID,
			ConversationID:     &convID,
			Title:              title,
			Status:             UnitStatusGenerating,
			LearningObjectives: datatypes.JSON(objectivesJSON),
			Metadata:           datatypes.JSON([]byte(`{}`)),
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if _, err := s.unitRepo.Create(txc, []*domain.Unit{unit}); err != nil {
			return fmt.Errorf("create unit: %w", err)
		}

		run = &domain.UnitGenerationRun{
			ID:             uuid.New(),
			UserID:         userID,
			ConversationID: conversationID,
			UnitID:         unit.ID,
			Status:         domain.RunStatusQueued,
			Stage:          "assemble",
			Metadata:       datatypes.JSON([]byte(`{}`)),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if _, err := s.runRepo.Create(txc, []*domain.UnitGenerationRun{run}); err != nil {
			return fmt.Errorf("create generation run: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("EnqueueFromConversation", "unit_id", unit.ID, "run_id", run.ID, "conversation_id", conversationID)
	return unit, run, nil
}

func (s *unitCreationService) GetUnit(dbc dbctx.Context, unitID uuid.UUID) (*domain.Unit, *domain.UnitGenerationRun, error) {
	unit, err := s.unitRepo.GetByID(dbc, unitID)
	if err != nil {
		return nil, nil, fmt.Errorf("load unit: %w", err)
	}
	if unit == nil {
		return nil, nil, errs.NotFoundf("unit %s", unitID)
	}
	run, err := s.runRepo.GetLatestByUnitID(dbc, unitID)
	if err != nil {
		return nil, nil, fmt.Errorf("load generation run: %w", err)
	}
	return unit, run, nil
}

func (s *unitCreationService) StartWorker(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		const maxAttempts = 5
		const retryDelay = 30 * time.Second
		const staleRunning = 2 * time.Minute

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			dbc := dbctx.Context{Ctx: ctx}
			run, err := s.runRepo.ClaimNextRunnable(dbc, maxAttempts, retryDelay, staleRunning)
			if err != nil {
				s.log.Error("claim generation run failed", "error", err)
				continue
			}
			if run == nil {
				continue
			}
			s.processRun(ctx, run)
		}
	}()
}

func (s *unitCreationService) processRun(ctx context.Context, run *domain.UnitGenerationRun) {
	dbc := dbctx.Context{Ctx: ctx}
	log := s.log.With("run_id", run.ID, "unit_id", run.UnitID, "conversation_id", run.ConversationID)
	log.Info("processing unit generation run")

	fail := func(stage string, err error) {
		log.Error("unit generation run failed", "stage", stage, "error", err)
		now := time.Now()
		if uErr := s.runRepo.UpdateFields(dbc, run.ID, map[string]interface{}{
			"status":        domain.RunStatusFailed,
			"stage":         stage,
			"last_error":    err.Error(),
			"last_error_at": now,
		}); uErr != nil {
			log.Error("failed to mark run failed", "error", uErr)
		}
		if uErr := s.unitRepo.UpdateFields(dbc, run.UnitID, map[string]interface{}{
			"status": UnitStatusFailed,
		}); uErr != nil {
			log.Error("failed to mark unit failed", "error", uErr)
		}
	}

	result, err := s.assembly.BuildSourceMaterial(dbc, run.ConversationID, run.UnitID)
	if err != nil {
		fail("assemble", err)
		return
	}
	_ = s.runRepo.Heartbeat(dbc, run.ID)

	if err := s.unitRepo.UpdateFields(dbc, run.UnitID, map[string]interface{}{
		"source_material": result.SourceMaterial,
		"status":          UnitStatusReady,
	}); err != nil {
		fail("persist", err)
		return
	}
	_ = s.runRepo.Heartbeat(dbc, run.ID)

	if err := s.assembly.LinkResources(dbc, run.UnitID, result.LearnerResourceIDs, result.GeneratedResource); err != nil {
		// The unit exists and keeps its source material; only the resource
		// provenance step failed.
		fail("link", err)
		return
	}

	if err := s.conversationRepo.UpdateFields(dbc, run.ConversationID, map[string]interface{}{
		"status": ConversationStatusConsumed,
	}); err != nil {
		log.Warn("failed to mark conversation consumed", "error", err)
	}

	if err := s.runRepo.UpdateFields(dbc, run.ID, map[string]interface{}{
		"status": domain.RunStatusSucceeded,
		"stage":  "done",
	}); err != nil {
		log.Error("failed to mark run succeeded", "error", err)
	}
	log.Info("unit generation run succeeded", "source_bytes", len(result.SourceMaterial))
}
