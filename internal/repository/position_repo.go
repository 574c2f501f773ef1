package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"position-monitor/internal/dto"
	"position-monitor/internal/model"
	"position-monitor/pkg/utils"

	jsoniter "github.com/json-iterator/go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PositionRepository implements contract.PositionStore on PostgreSQL. Every
// write is logged to position_logs in the same transaction.
type PositionRepository interface {
	ListPositions(ctx context.Context, activeOnly bool) ([]model.Position, error)
	FindPositionsByName(ctx context.Context, name string) ([]model.Position, error)
	GetPosition(ctx context.Context, id uint) (*model.Position, error)
	CreatePosition(ctx context.Context, position *model.Position) (uint, error)
	UpdatePosition(ctx context.Context, id uint, update dto.PositionUpdate) error
	ClosePosition(ctx context.Context, id uint, close dto.PositionClose) error
	DeletePosition(ctx context.Context, id uint) error
	ListPositionLogs(ctx context.Context, positionID uint) ([]model.PositionLog, error)
	DeleteLogsOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

type positionRepository struct {
	db  *gorm.DB
	uow UnitOfWork
}

func NewPositionRepository(db *gorm.DB, uow UnitOfWork) PositionRepository {
	return &positionRepository{
		db:  db,
		uow: uow,
	}
}

func (r *positionRepository) ListPositions(ctx context.Context, activeOnly bool) ([]model.Position, error) {
	var positions []model.Position

	q := r.db.WithContext(ctx)
	if activeOnly {
		q = q.Where("is_active = ?", true).Order("created_at DESC, id DESC")
	} else {
		q = q.Order("is_active DESC, created_at DESC, id DESC")
	}

	if err := q.Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	return positions, nil
}

func (r *positionRepository) FindPositionsByName(ctx context.Context, name string) ([]model.Position, error) {
	var positions []model.Position
	if err := r.db.WithContext(ctx).
		Where("name = ?", strings.ToUpper(strings.TrimSpace(name))).
		Order("is_active DESC, created_at DESC, id DESC").
		Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to find positions by name %s: %w", name, err)
	}
	return positions, nil
}

func (r *positionRepository) GetPosition(ctx context.Context, id uint) (*model.Position, error) {
	var position model.Position
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&position).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, dto.ErrPositionNotFound
		}
		return nil, fmt.Errorf("failed to get position %d: %w", id, err)
	}
	return &position, nil
}

func (r *positionRepository) CreatePosition(ctx context.Context, position *model.Position) (uint, error) {
	err := r.uow.Run(ctx, func(opts ...utils.DBOption) error {
		if err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(position).Error; err != nil {
			return err
		}
		return r.insertLog(ctx, position.ID, dto.PositionLogActionCreate, map[string]interface{}{
			"name":        position.Name,
			"direction":   position.Direction,
			"percent":     position.Percent,
			"leverage":    position.Leverage,
			"entry_price": position.EntryPrice,
			"take_profit": position.TakeProfit,
			"stop_loss":   position.StopLoss,
		}, opts...)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: create position: %v", dto.ErrStoreWriteFailed, err)
	}
	return position.ID, nil
}

func (r *positionRepository) UpdatePosition(ctx context.Context, id uint, update dto.PositionUpdate) error {
	if update.IsActive != nil && *update.IsActive {
		return fmt.Errorf("%w: a closed position cannot be reactivated", dto.ErrInvalidInput)
	}

	fields := updateFields(update)
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = utils.TimeNow()

	return r.uow.Run(ctx, func(opts ...utils.DBOption) error {
		res := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
			Model(&model.Position{}).
			Where("id = ?", id).
			Updates(fields)
		if res.Error != nil {
			return fmt.Errorf("%w: update position %d: %v", dto.ErrStoreWriteFailed, id, res.Error)
		}
		if res.RowsAffected == 0 {
			return dto.ErrPositionNotFound
		}
		delete(fields, "updated_at")
		return r.insertLog(ctx, id, dto.PositionLogActionUpdate, fields, opts...)
	})
}

func (r *positionRepository) ClosePosition(ctx context.Context, id uint, close dto.PositionClose) error {
	return r.uow.Run(ctx, func(opts ...utils.DBOption) error {
		db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)

		res := db.Model(&model.Position{}).
			Where("id = ? AND is_active = ?", id, true).
			Updates(map[string]interface{}{
				"is_active":    false,
				"close_reason": string(close.Reason),
				"closed_at":    close.ClosedAt,
				"final_pnl":    close.FinalPnL,
				"updated_at":   utils.TimeNow(),
			})
		if res.Error != nil {
			return fmt.Errorf("%w: close position %d: %v", dto.ErrStoreWriteFailed, id, res.Error)
		}

		if res.RowsAffected == 0 {
			var count int64
			if err := db.Model(&model.Position{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return fmt.Errorf("%w: close position %d: %v", dto.ErrStoreWriteFailed, id, err)
			}
			if count == 0 {
				return dto.ErrPositionNotFound
			}
			return dto.ErrPositionAlreadyClosed
		}

		return r.insertLog(ctx, id, dto.PositionLogActionClose, map[string]interface{}{
			"close_reason": close.Reason,
			"price":        close.Price,
			"final_pnl":    close.FinalPnL,
			"message":      fmt.Sprintf("Reason: %s, PnL: %s", close.Reason, utils.FormatPercentage(close.FinalPnL)),
		}, opts...)
	})
}

// DeletePosition hard deletes the row; position_logs follow through
// ON DELETE CASCADE.
func (r *positionRepository) DeletePosition(ctx context.Context, id uint) error {
	return r.uow.Run(ctx, func(opts ...utils.DBOption) error {
		res := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
			Where("id = ?", id).
			Delete(&model.Position{})
		if res.Error != nil {
			return fmt.Errorf("%w: delete position %d: %v", dto.ErrStoreWriteFailed, id, res.Error)
		}
		if res.RowsAffected == 0 {
			return dto.ErrPositionNotFound
		}
		return nil
	})
}

func (r *positionRepository) ListPositionLogs(ctx context.Context, positionID uint) ([]model.PositionLog, error) {
	var logs []model.PositionLog
	if err := r.db.WithContext(ctx).
		Where("position_id = ?", positionID).
		Order("created_at ASC, id ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list logs of position %d: %w", positionID, err)
	}
	return logs, nil
}

// DeleteLogsOlderThan removes audit rows older than retentionDays, keeping the
// history of positions that are still active.
func (r *positionRepository) DeleteLogsOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	before := utils.TimeNow().AddDate(0, 0, -retentionDays)

	res := r.db.WithContext(ctx).
		Where("created_at < ? AND position_id NOT IN (SELECT id FROM positions WHERE is_active = ?)", before, true).
		Delete(&model.PositionLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete position logs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *positionRepository) insertLog(ctx context.Context, positionID uint, action string, details map[string]interface{}, opts ...utils.DBOption) error {
	raw, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode %s log details: %w", action, err)
	}

	entry := &model.PositionLog{
		PositionID: positionID,
		Action:     action,
		Details:    datatypes.JSON(raw),
	}
	if err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(entry).Error; err != nil {
		return fmt.Errorf("%w: insert %s log: %v", dto.ErrStoreWriteFailed, action, err)
	}
	return nil
}

func updateFields(update dto.PositionUpdate) map[string]interface{} {
	fields := map[string]interface{}{}
	if update.IsActive != nil {
		fields["is_active"] = *update.IsActive
	}
	if update.CloseReason != nil {
		fields["close_reason"] = string(*update.CloseReason)
	}
	if update.ClosedAt != nil {
		fields["closed_at"] = *update.ClosedAt
	}
	if update.FinalPnL != nil {
		fields["final_pnl"] = *update.FinalPnL
	}
	return fields
}
