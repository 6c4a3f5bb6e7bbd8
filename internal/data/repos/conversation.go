package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lanternroom/lantern-backend/internal/domain"
	"github.com/lanternroom/lantern-backend/internal/pkg/dbctx"
	"github.com/lanternroom/lantern-backend/internal/pkg/logger"
)

type ConversationRepo interface {
	Create(dbc dbctx.Context, conversations []*domain.Conversation) ([]*domain.Conversation, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Conversation, error)
	// GetByID returns (nil, nil) when the conversation does not exist.
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Conversation, error)
	ListByUserID(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*domain.Conversation, error)

	AppendTurns(dbc dbctx.Context, turns []*domain.ConversationTurn) ([]*domain.ConversationTurn, error)
	GetTurns(dbc dbctx.Context, conversationID uuid.UUID, limit int) ([]*domain.ConversationTurn, error)
	MaxTurnSeq(dbc dbctx.Context, conversationID uuid.UUID) (int64, error)

	// UpdateMetadata replaces the whole metadata document. Partial patches are
	// deliberately unsupported: callers read the full map, mutate it, and write
	// it back, which keeps concurrent writers from silently dropping keys.
	UpdateMetadata(dbc dbctx.Context, id uuid.UUID, metadata datatypes.JSON) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
	return &conversationRepo{db: db, log: baseLog.With("repo", "ConversationRepo")}
}

func (r *conversationRepo) Create(dbc dbctx.Context, conversations []*domain.Conversation) ([]*domain.Conversation, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(conversations) == 0 {
		return []*domain.Conversation{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&conversations).Error; err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *conversationRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Conversation, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.Conversation
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

func (r *conversationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Conversation, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var conv domain.Conversation
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) ListByUserID(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*domain.Conversation, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.Conversation
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

func (r *conversationRepo) AppendTurns(dbc dbctx.Context, turns []*domain.ConversationTurn) ([]*domain.ConversationTurn, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(turns) == 0 {
		return []*domain.ConversationTurn{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&turns).Error; err != nil {
		return nil, err
	}
	return turns, nil
}

func (r *conversationRepo) GetTurns(dbc dbctx.Context, conversationID uuid.UUID, limit int) ([]*domain.ConversationTurn, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.ConversationTurn
	if conversationID == uuid.Nil {
		return results, nil
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *conversationRepo) MaxTurnSeq(dbc dbctx.Context, conversationID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var maxSeq *int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&domain.ConversationTurn{}).
		Where("conversation_id = ?", conversationID).
		Select("MAX(seq)").
		Scan(&maxSeq).Error; err != nil {
		return 0, err
	}
	if maxSeq == nil {
		return 0, nil
	}
	return *maxSeq, nil
}

func (r *conversationRepo) UpdateMetadata(dbc dbctx.Context, id uuid.UUID, metadata datatypes.JSON) error {
	return r.UpdateFields(dbc, id, map[string]interface{}{"metadata": metadata})
}

func (r *conversationRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(updates).Error
}
