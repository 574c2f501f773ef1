package repository

import (
	"position-monitor/config"
	"position-monitor/pkg/logger"

	"gorm.io/gorm"
)

type Repository struct {
	PositionRepo PositionRepository
	BotUserRepo  BotUserRepository
	BybitRepo    BybitRepository
	UnitOfWork   UnitOfWork
}

func NewRepository(cfg *config.Config, db *gorm.DB, log *logger.Logger) *Repository {
	uow := NewUnitOfWork(db)

	return &Repository{
		PositionRepo: NewPositionRepository(db, uow),
		BotUserRepo:  NewBotUserRepository(db),
		BybitRepo:    NewBybitRepository(cfg.Bybit, log),
		UnitOfWork:   uow,
	}
}
