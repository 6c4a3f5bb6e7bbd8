package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lanternroom/lantern-backend/internal/domain"
	"github.com/lanternroom/lantern-backend/internal/pkg/dbctx"
	"github.com/lanternroom/lantern-backend/internal/pkg/logger"
)

type UnitRepo interface {
	Create(dbc dbctx.Context, units []*domain.Unit) ([]*domain.Unit, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Unit, error)
	// GetByID returns (nil, nil) when the unit does not exist.
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Unit, error)
	ListByUserID(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*domain.Unit, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type unitRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUnitRepo(db *gorm.DB, baseLog *logger.Logger) UnitRepo {
	return &unitRepo{db: db, log: baseLog.With("repo", "UnitRepo")}
}

func (r *unitRepo) Create(dbc dbctx.Context, units []*domain.Unit) ([]*domain.Unit, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(units) == 0 {
		return []*domain.Unit{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

func (r *unitRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Unit, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.Unit
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

func (r *unitRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Unit, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var unit domain.Unit
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&unit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *unitRepo) ListByUserID(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*domain.Unit, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.Unit
	if userID == uuid.Nil {
		return results, nil
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *unitRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&domain.Unit{}).
		Where("id = ?", id).
		Updates(updates).Error
}
