package dto

import (
	"time"

	"position-monitor/internal/model"
	"position-monitor/pkg/utils"
)

type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

type CloseReason string

const (
	CloseReasonTakeProfit CloseReason = "tp"
	CloseReasonStopLoss   CloseReason = "sl"
	CloseReasonManual     CloseReason = "manual"
)

// ThresholdHit is the outcome of evaluating a price against TP/SL.
type ThresholdHit string

const (
	ThresholdNone  ThresholdHit = "none"
	ThresholdTPHit ThresholdHit = "tp_hit"
	ThresholdSLHit ThresholdHit = "sl_hit"
)

// CloseReason maps a hit to the reason stored on the position. ThresholdNone
// maps to the empty reason.
func (h ThresholdHit) CloseReason() CloseReason {
	switch h {
	case ThresholdTPHit:
		return CloseReasonTakeProfit
	case ThresholdSLHit:
		return CloseReasonStopLoss
	}
	return ""
}

const (
	PositionLogActionCreate = "CREATE"
	PositionLogActionUpdate = "UPDATE"
	PositionLogActionClose  = "CLOSE"
)

// QuoteResult is a single live price lookup. Found is false when the exchange
// does not know the symbol or returned no usable price.
type QuoteResult struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Found  bool    `json:"found"`
}

// CloseEvent is the snapshot handed to the notifier when a position closes.
type CloseEvent struct {
	PositionID uint        `json:"position_id"`
	Name       string      `json:"name"`
	Direction  Direction   `json:"direction"`
	Leverage   int         `json:"leverage"`
	Percent    int         `json:"percent"`
	EntryPrice float64     `json:"entry_price"`
	TakeProfit float64     `json:"take_profit"`
	StopLoss   float64     `json:"stop_loss"`
	Price      float64     `json:"price"`
	Reason     CloseReason `json:"close_reason"`
	FinalPnL   float64     `json:"final_pnl"`
	ClosedAt   time.Time   `json:"closed_at"`
}

// NewCloseEvent snapshots p as closed at price.
func NewCloseEvent(p model.Position, close PositionClose) CloseEvent {
	return CloseEvent{
		PositionID: p.ID,
		Name:       p.Name,
		Direction:  Direction(p.Direction),
		Leverage:   p.Leverage,
		Percent:    p.Percent,
		EntryPrice: p.EntryPrice,
		TakeProfit: p.TakeProfit,
		StopLoss:   p.StopLoss,
		Price:      close.Price,
		Reason:     close.Reason,
		FinalPnL:   close.FinalPnL,
		ClosedAt:   close.ClosedAt,
	}
}

// PositionUpdate lists the mutable fields of a position. Nil fields are left
// untouched.
type PositionUpdate struct {
	IsActive    *bool
	CloseReason *CloseReason
	ClosedAt    *time.Time
	FinalPnL    *float64
}

// PositionClose is the one-way ACTIVE to CLOSED transition.
type PositionClose struct {
	Reason   CloseReason
	ClosedAt time.Time
	FinalPnL float64
	Price    float64
}

// Update expresses the close as a plain field update.
func (c PositionClose) Update() PositionUpdate {
	return PositionUpdate{
		IsActive:    utils.ToPointer(false),
		CloseReason: utils.ToPointer(c.Reason),
		ClosedAt:    utils.ToPointer(c.ClosedAt),
		FinalPnL:    utils.ToPointer(c.FinalPnL),
	}
}

type CreatePositionRequest struct {
	Name       string    `json:"name" validate:"required,alphanum,max=32"`
	Direction  Direction `json:"direction" validate:"required,oneof=long short"`
	Percent    int       `json:"percent" validate:"required,min=1,max=100"`
	Leverage   int       `json:"leverage" validate:"required,min=1,max=125"`
	TakeProfit float64   `json:"take_profit" validate:"required,gt=0"`
	StopLoss   float64   `json:"stop_loss" validate:"required,gt=0"`
}

type PositionLogResponse struct {
	ID        uint                   `json:"id"`
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details"`
	CreatedAt time.Time              `json:"created_at"`
}

// ClosedPositionOutput is one entry of a monitor cycle report.
type ClosedPositionOutput struct {
	PositionID uint        `json:"position_id"`
	Name       string      `json:"name"`
	Reason     CloseReason `json:"reason"`
	Price      float64     `json:"price"`
	FinalPnL   float64     `json:"final_pnl"`
}

type PositionErrorOutput struct {
	PositionID uint   `json:"position_id,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
	Error      string `json:"error"`
}

// MonitorCycleOutput is the JSON body of a monitor cycle job result.
type MonitorCycleOutput struct {
	Cycle           uint64                 `json:"cycle"`
	ActivePositions int                    `json:"active_positions"`
	Symbols         int                    `json:"symbols"`
	QuotesFound     int                    `json:"quotes_found"`
	Closed          []ClosedPositionOutput `json:"closed"`
	Errors          []PositionErrorOutput  `json:"errors,omitempty"`
}
