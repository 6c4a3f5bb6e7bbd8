package repos

import (
	"gorm.io/gorm"

	"github.com/lanternroom/lantern-backend/internal/domain"
	"github.com/lanternroom/lantern-backend/internal/pkg/dbctx"
	"github.com/lanternroom/lantern-backend/internal/pkg/logger"
)

type AICallLogRepo interface {
	Create(dbc dbctx.Context, logs []*domain.AICallLog) ([]*domain.AICallLog, error)
}

type aiCallLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAICallLogRepo(db *gorm.DB, baseLog *logger.Logger) AICallLogRepo {
	return &aiCallLogRepo{db: db, log: baseLog.With("repo", "AICallLogRepo")}
}

func (r *aiCallLogRepo) Create(dbc dbctx.Context, logs []*domain.AICallLog) ([]*domain.AICallLog, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(logs) == 0 {
		return []*domain.AICallLog{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
