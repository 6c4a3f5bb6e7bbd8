package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lanternroom/lantern-backend/internal/domain"
	"github.com/lanternroom/lantern-backend/internal/pkg/dbctx"
	"github.com/lanternroom/lantern-backend/internal/pkg/logger"
)

type ResourceRepo interface {
	Create(dbc dbctx.Context, resources []*domain.Resource) ([]*domain.Resource, error)
	// GetByIDs returns only the resources that exist; missing ids are silently
	// omitted. Row order is not guaranteed to match the input order.
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Resource, error)
	GetByUserID(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*domain.Resource, error)

	// AttachToUnit links resources to a unit. Attaching an already-linked
	// resource is a no-op, not an error.
	AttachToUnit(dbc dbctx.Context, resourceIDs []uuid.UUID, unitID uuid.UUID) error
	GetLinksByUnitID(dbc dbctx.Context, unitID uuid.UUID) ([]*domain.UnitResourceLink, error)
}

type resourceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResourceRepo(db *gorm.DB, baseLog *logger.Logger) ResourceRepo {
	return &resourceRepo{db: db, log: baseLog.With("repo", "ResourceRepo")}
}

func (r *resourceRepo) Create(dbc dbctx.Context, resources []*domain.Resource) ([]*domain.Resource, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(resources) == 0 {
		return []*domain.Resource{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

func (r *resourceRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Resource, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.Resource
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

func (r *resourceRepo) GetByUserID(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*domain.Resource, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.Resource
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

func (r *resourceRepo) AttachToUnit(dbc dbctx.Context, resourceIDs []uuid.UUID, unitID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if unitID == uuid.Nil || len(resourceIDs) == 0 {
		return nil
	}
	links := make([]*domain.UnitResourceLink, 0, len(resourceIDs))
	for _, rid := range resourceIDs {
		if rid == uuid.Nil {
			continue
		}
		links = append(links, &domain.UnitResourceLink{
			ID:         uuid.New(),
			UnitID:     unitID,
			ResourceID: rid,
		})
	}
	if len(links) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&links).Error
}

func (r *resourceRepo) GetLinksByUnitID(dbc dbctx.Context, unitID uuid.UUID) ([]*domain.UnitResourceLink, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.UnitResourceLink
	if unitID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("unit_id = ?", unitID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
