package model

import "time"

type Position struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"not null" json:"name"`
	Direction   string     `gorm:"not null" json:"direction"`
	Percent     int        `gorm:"not null" json:"percent"`
	Leverage    int        `gorm:"not null" json:"leverage"`
	EntryPrice  float64    `gorm:"not null" json:"entry_price"`
	TakeProfit  float64    `gorm:"not null" json:"take_profit"`
	StopLoss    float64    `gorm:"not null" json:"stop_loss"`
	IsActive    bool       `gorm:"not null;default:true" json:"is_active"`
	CloseReason *string    `json:"close_reason"`
	ClosedAt    *time.Time `json:"closed_at"`
	FinalPnL    *float64   `gorm:"column:final_pnl" json:"final_pnl"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}
