package repository

import (
	"context"

	"position-monitor/internal/model"
	"position-monitor/pkg/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BotUserRepository interface {
	// Upsert subscribes the user, reactivating it if it had unsubscribed.
	Upsert(ctx context.Context, user *model.BotUser, opts ...utils.DBOption) error
	ListActive(ctx context.Context, opts ...utils.DBOption) ([]model.BotUser, error)
	Deactivate(ctx context.Context, telegramID int64, opts ...utils.DBOption) error
}

type botUserRepository struct {
	db *gorm.DB
}

func NewBotUserRepository(db *gorm.DB) BotUserRepository {
	return &botUserRepository{
		db: db,
	}
}

func (r *botUserRepository) Upsert(ctx context.Context, user *model.BotUser, opts ...utils.DBOption) error {
	user.IsActive = true
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "first_name", "last_name", "is_active", "updated_at"}),
	}).Create(user).Error
}

func (r *botUserRepository) ListActive(ctx context.Context, opts ...utils.DBOption) ([]model.BotUser, error) {
	var users []model.BotUser
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if err := tx.Where("is_active = ?", true).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *botUserRepository) Deactivate(ctx context.Context, telegramID int64, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Model(&model.BotUser{}).
		Where("telegram_id = ?", telegramID).
		Updates(map[string]interface{}{"is_active": false, "updated_at": utils.TimeNow()}).Error
}
