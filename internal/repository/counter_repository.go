package repository

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CounterModel はcountersテーブルのモデル。
type CounterModel struct {
	ScopeKey     string    `gorm:"column:scope_key;type:varchar(128);primaryKey"`
	LastSequence int64     `gorm:"column:last_sequence;not null"`
	CreatedAt    time.Time `gorm:"type:datetime(6);not null"`
	UpdatedAt    time.Time `gorm:"type:datetime(6);not null"`
}

// TableName はテーブル名を返す。
func (CounterModel) TableName() string {
	return "counters"
}

// CounterRepository はRDBに永続化される採番カウンタ。
type CounterRepository struct {
	db *gorm.DB
}

// NewCounterRepository は新しいCounterRepositoryを生成する。
func NewCounterRepository(db *gorm.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

// Allocate はスコープのカウンタを原子的に1進め、進めた後の値を返す。
// 初回は1を返す。
func (r *CounterRepository) Allocate(ctx context.Context, scopeKey string) (int64, error) {
	var seq int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		model := &CounterModel{
			ScopeKey:     scopeKey,
			LastSequence: 1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "scope_key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"last_sequence": gorm.Expr("last_sequence + 1"),
				"updated_at":    now,
			}),
		}).Create(model).Error
		if err != nil {
			return err
		}

		return tx.Model(&CounterModel{}).
			Select("last_sequence").
			Where("scope_key = ?", scopeKey).
			Scan(&seq).Error
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to allocate sequence",
			"operation", "allocate",
			"scope_key", scopeKey,
			"error", err,
		)
		return 0, storageError(err)
	}
	return seq, nil
}

// Peek は最後に払い出された番号を返す。未採番のスコープは0。カウンタは変更しない。
func (r *CounterRepository) Peek(ctx context.Context, scopeKey string) (int64, error) {
	var last *int64
	err := r.db.WithContext(ctx).
		Model(&CounterModel{}).
		Select("last_sequence").
		Where("scope_key = ?", scopeKey).
		Scan(&last).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to peek sequence",
			"operation", "peek",
			"scope_key", scopeKey,
			"error", err,
		)
		return 0, storageError(err)
	}
	if last == nil {
		return 0, nil
	}
	return *last, nil
}
