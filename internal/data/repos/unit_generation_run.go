package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lanternroom/lantern-backend/internal/domain"
	"github.com/lanternroom/lantern-backend/internal/pkg/dbctx"
	"github.com/lanternroom/lantern-backend/internal/pkg/logger"
)

type UnitGenerationRunRepo interface {
	Create(dbc dbctx.Context, runs []*domain.UnitGenerationRun) ([]*domain.UnitGenerationRun, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.UnitGenerationRun, error)
	GetLatestByUnitID(dbc dbctx.Context, unitID uuid.UUID) (*domain.UnitGenerationRun, error)

	// ClaimNextRunnable claims the next run that is runnable:
	// - status=queued
	// - OR status=failed, attempts < maxAttempts, last_error_at older than retryDelay (or NULL)
	// - OR status=running with a stale heartbeat (crash recovery)
	ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*domain.UnitGenerationRun, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
}

type unitGenerationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUnitGenerationRunRepo(db *gorm.DB, baseLog *logger.Logger) UnitGenerationRunRepo {
	return &unitGenerationRunRepo{db: db, log: baseLog.With("repo", "UnitGenerationRunRepo")}
}

func (r *unitGenerationRunRepo) Create(dbc dbctx.Context, runs []*domain.UnitGenerationRun) ([]*domain.UnitGenerationRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(runs) == 0 {
		return []*domain.UnitGenerationRun{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *unitGenerationRunRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.UnitGenerationRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.UnitGenerationRun
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *unitGenerationRunRepo) GetLatestByUnitID(dbc dbctx.Context, unitID uuid.UUID) (*domain.UnitGenerationRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if unitID == uuid.Nil {
		return nil, nil
	}
	var run domain.UnitGenerationRun
	err := transaction.WithContext(dbc.Ctx).
		Where("unit_id = ?", unitID).
		Order("created_at DESC").
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *unitGenerationRunRepo) ClaimNextRunnable(
	dbc dbctx.Context,
	maxAttempts int,
	retryDelay time.Duration,
	staleRunning time.Duration,
) (*domain.UnitGenerationRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	now := time.Now()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)

	var claimed *domain.UnitGenerationRun

	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var run domain.UnitGenerationRun

		q := txx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
				(
					status = ?
					OR (
						status = ?
						AND attempts < ?
						AND (last_error_at IS NULL OR last_error_at < ?)
					)
					OR (
						status = ?
						AND heartbeat_at IS NOT NULL
						AND heartbeat_at < ?
					)
				)
			`, domain.RunStatusQueued, domain.RunStatusFailed, maxAttempts, retryCutoff, domain.RunStatusRunning, staleCutoff).
			Order("created_at ASC")

		qErr := q.First(&run).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}

		uErr := txx.Model(&domain.UnitGenerationRun{}).
			Where("id = ?", run.ID).
			Updates(map[string]interface{}{
				"status":       domain.RunStatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}

		claimed = &run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *unitGenerationRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&domain.UnitGenerationRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *unitGenerationRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return transaction.WithContext(dbc.Ctx).
		Model(&domain.UnitGenerationRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}
