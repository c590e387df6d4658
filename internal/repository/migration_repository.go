package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
)

// SchemaMigrationModel はschema_migrationsテーブルのモデル。
type SchemaMigrationModel struct {
	Version   string    `gorm:"column:version;primaryKey;type:varchar(14)"`
	Checksum  string    `gorm:"column:checksum;type:char(64)"`
	AppliedAt time.Time `gorm:"column:applied_at;not null;autoCreateTime"`
}

// TableName はテーブル名を指定。
func (SchemaMigrationModel) TableName() string {
	return "schema_migrations"
}

const createSchemaMigrationsSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    VARCHAR(14) NOT NULL PRIMARY KEY,
    checksum   CHAR(64)    NULL,
    applied_at %s NOT NULL
)`

// MigrationRepository はマイグレーション履歴を管理するリポジトリ。
type MigrationRepository struct {
	db *gorm.DB
}

// NewMigrationRepository は新しいMigrationRepositoryを生成する。
func NewMigrationRepository(db *gorm.DB) *MigrationRepository {
	return &MigrationRepository{db: db}
}

// EnsureTable はschema_migrationsテーブルがなければ作成する。
func (r *MigrationRepository) EnsureTable(ctx context.Context) error {
	// SQLiteドライバは型名がDATETIMEと完全一致する列のみ時刻として読み出す
	datetime := "DATETIME(6)"
	if r.db.Dialector.Name() == "sqlite" {
		datetime = "DATETIME"
	}
	if err := r.db.WithContext(ctx).Exec(fmt.Sprintf(createSchemaMigrationsSQL, datetime)).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create schema_migrations",
			"operation", "ensure_table",
			"error", err,
		)
		return err
	}
	return nil
}

// FindAllApplied は適用済みマイグレーション一覧を取得する。
func (r *MigrationRepository) FindAllApplied(ctx context.Context) ([]*domain.Migration, error) {
	var models []SchemaMigrationModel
	if err := r.db.WithContext(ctx).Order("version ASC").Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to find all applied migrations",
			"operation", "find_all_applied",
			"error", err,
		)
		return nil, err
	}

	migrations := make([]*domain.Migration, len(models))
	for i := range models {
		appliedAt := models[i].AppliedAt
		migrations[i] = &domain.Migration{
			Version:   models[i].Version,
			Checksum:  models[i].Checksum,
			AppliedAt: &appliedAt,
			Status:    domain.MigrationStatusApplied,
		}
	}

	return migrations, nil
}

// RecordMigration はマイグレーション適用履歴を記録する。
// tx が指定されればそのトランザクション内で記録する。
func (r *MigrationRepository) RecordMigration(ctx context.Context, tx *gorm.DB, version, checksum string) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	model := &SchemaMigrationModel{
		Version:  version,
		Checksum: checksum,
	}
	if err := db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to record migration",
			"operation", "record_migration",
			"version", version,
			"error", err,
		)
		return err
	}
	return nil
}
