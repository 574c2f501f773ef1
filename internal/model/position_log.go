package model

import (
	"time"

	"gorm.io/datatypes"
)

// PositionLog is an append-only audit entry for a position change.
type PositionLog struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	PositionID uint           `gorm:"not null" json:"position_id"`
	Action     string         `gorm:"not null" json:"action"`
	Details    datatypes.JSON `json:"details"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (PositionLog) TableName() string {
	return "position_logs"
}
