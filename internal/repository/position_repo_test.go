package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"position-monitor/internal/dto"
	"position-monitor/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockPositionRepo(t *testing.T) (PositionRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return NewPositionRepository(db, NewUnitOfWork(db)), mock
}

func TestPositionRepository_ListPositions(t *testing.T) {
	repo, mock := newMockPositionRepo(t)

	rows := sqlmock.NewRows([]string{"id", "name", "direction", "percent", "leverage", "entry_price", "take_profit", "stop_loss", "is_active"}).
		AddRow(2, "ETHUSDT", "short", 100, 5, 3000.0, 2500.0, 3300.0, true).
		AddRow(1, "BTCUSDT", "long", 50, 10, 100.0, 120.0, 90.0, true)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "positions" WHERE is_active = $1 ORDER BY created_at DESC, id DESC`)).
		WithArgs(true).
		WillReturnRows(rows)

	positions, err := repo.ListPositions(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "ETHUSDT", positions[0].Name)
	assert.Equal(t, 120.0, positions[1].TakeProfit)
	assert.True(t, positions[1].IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPositionRepository_ListPositions_All(t *testing.T) {
	repo, mock := newMockPositionRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "positions" ORDER BY is_active DESC, created_at DESC, id DESC`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	positions, err := repo.ListPositions(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, positions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPositionRepository_GetPosition_NotFound(t *testing.T) {
	repo, mock := newMockPositionRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "positions" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetPosition(context.Background(), 42)
	assert.ErrorIs(t, err, dto.ErrPositionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPositionRepository_CreatePosition(t *testing.T) {
	repo, mock := newMockPositionRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "positions"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "position_logs"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	id, err := repo.CreatePosition(context.Background(), &model.Position{
		Name:       "BTCUSDT",
		Direction:  "long",
		Percent:    50,
		Leverage:   10,
		EntryPrice: 100,
		TakeProfit: 120,
		StopLoss:   90,
		IsActive:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPositionRepository_ClosePosition(t *testing.T) {
	closeReq := dto.PositionClose{
		Reason:   dto.CloseReasonTakeProfit,
		ClosedAt: time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC),
		FinalPnL: 125,
		Price:    125,
	}

	t.Run("active position is closed and logged", func(t *testing.T) {
		repo, mock := newMockPositionRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "positions" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "position_logs"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
		mock.ExpectCommit()

		require.NoError(t, repo.ClosePosition(context.Background(), 1, closeReq))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already closed position is not touched", func(t *testing.T) {
		repo, mock := newMockPositionRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "positions" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "positions" WHERE id = $1`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectRollback()

		err := repo.ClosePosition(context.Background(), 1, closeReq)
		assert.ErrorIs(t, err, dto.ErrPositionAlreadyClosed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing position", func(t *testing.T) {
		repo, mock := newMockPositionRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "positions" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "positions" WHERE id = $1`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectRollback()

		err := repo.ClosePosition(context.Background(), 99, closeReq)
		assert.ErrorIs(t, err, dto.ErrPositionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPositionRepository_DeletePosition(t *testing.T) {
	t.Run("existing position is removed", func(t *testing.T) {
		repo, mock := newMockPositionRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "positions" WHERE id = $1`)).
			WithArgs(1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.DeletePosition(context.Background(), 1))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing position", func(t *testing.T) {
		repo, mock := newMockPositionRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "positions" WHERE id = $1`)).
			WithArgs(99).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.DeletePosition(context.Background(), 99)
		assert.ErrorIs(t, err, dto.ErrPositionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPositionRepository_FindPositionsByName(t *testing.T) {
	repo, mock := newMockPositionRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "positions" WHERE name = $1 ORDER BY is_active DESC, created_at DESC, id DESC`)).
		WithArgs("BTCUSDT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "is_active"}).
			AddRow(3, "BTCUSDT", true).
			AddRow(1, "BTCUSDT", false))

	positions, err := repo.FindPositionsByName(context.Background(), " btcusdt ")
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.True(t, positions[0].IsActive)
	assert.False(t, positions[1].IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPositionRepository_UpdatePosition(t *testing.T) {
	t.Run("reactivation is rejected", func(t *testing.T) {
		repo, mock := newMockPositionRepo(t)
		active := true

		err := repo.UpdatePosition(context.Background(), 1, dto.PositionUpdate{IsActive: &active})
		assert.ErrorIs(t, err, dto.ErrInvalidInput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("close fields are written unconditionally", func(t *testing.T) {
		repo, mock := newMockPositionRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "positions" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "position_logs"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))
		mock.ExpectCommit()

		update := dto.PositionClose{Reason: dto.CloseReasonStopLoss, ClosedAt: time.Now().UTC(), FinalPnL: -20}.Update()
		require.NoError(t, repo.UpdatePosition(context.Background(), 1, update))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPositionRepository_DeleteLogsOlderThan(t *testing.T) {
	repo, mock := newMockPositionRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "position_logs" WHERE created_at < $1 AND position_id NOT IN (SELECT id FROM positions WHERE is_active = $2)`)).
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectCommit()

	deleted, err := repo.DeleteLogsOlderThan(context.Background(), 90)
	require.NoError(t, err)
	assert.Equal(t, int64(12), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
