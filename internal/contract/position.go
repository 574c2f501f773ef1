package contract

import (
	"context"

	"position-monitor/internal/dto"
	"position-monitor/internal/model"
)

// PositionStore is the durable position table used by the monitor.
type PositionStore interface {
	// ListPositions returns positions newest first. With activeOnly false,
	// active positions come before closed ones.
	ListPositions(ctx context.Context, activeOnly bool) ([]model.Position, error)
	// FindPositionsByName returns every position for symbol name, active
	// first.
	FindPositionsByName(ctx context.Context, name string) ([]model.Position, error)
	GetPosition(ctx context.Context, id uint) (*model.Position, error)
	CreatePosition(ctx context.Context, position *model.Position) (uint, error)
	// UpdatePosition applies the non-nil fields unconditionally (last write wins).
	UpdatePosition(ctx context.Context, id uint, update dto.PositionUpdate) error
	// ClosePosition closes id only if it is still active. It returns
	// dto.ErrPositionAlreadyClosed when nothing matched.
	ClosePosition(ctx context.Context, id uint, close dto.PositionClose) error
	// DeletePosition removes the position and its audit log. It returns
	// dto.ErrPositionNotFound when nothing matched.
	DeletePosition(ctx context.Context, id uint) error
	ListPositionLogs(ctx context.Context, positionID uint) ([]model.PositionLog, error)
}

type QuoteFetcher interface {
	// Fetch returns the live price for symbol. An unknown symbol is a result
	// with Found false; errors are reserved for transport failures.
	Fetch(ctx context.Context, symbol string) (dto.QuoteResult, error)
}

// Notifier is fire-and-forget: it never reports delivery errors to the caller.
type Notifier interface {
	Notify(ctx context.Context, event dto.CloseEvent)
}
