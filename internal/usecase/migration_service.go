package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
)

// MigrationRepository はマイグレーション履歴を管理するリポジトリのインターフェース。
type MigrationRepository interface {
	EnsureTable(ctx context.Context) error
	FindAllApplied(ctx context.Context) ([]*domain.Migration, error)
	RecordMigration(ctx context.Context, tx *gorm.DB, version, checksum string) error
}

// MigrationService はマイグレーション実行のビジネスロジックを提供する。
type MigrationService struct {
	repo          MigrationRepository
	db            *gorm.DB
	migrationsDir string
}

// NewMigrationService は新しいMigrationServiceを生成する。
func NewMigrationService(repo MigrationRepository, db *gorm.DB, migrationsDir string) *MigrationService {
	return &MigrationService{
		repo:          repo,
		db:            db,
		migrationsDir: migrationsDir,
	}
}

// scanMigrationFiles はmigrationsディレクトリから.sqlファイルをスキャンする。
func (s *MigrationService) scanMigrationFiles() ([]*domain.Migration, error) {
	entries, err := os.ReadDir(s.migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMigrationFileNotFound, err)
	}

	var migrations []*domain.Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, name, err := parseMigrationFileName(entry.Name())
		if err != nil {
			return nil, err
		}

		filePath := filepath.Join(s.migrationsDir, entry.Name())
		content, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file: %w", err)
		}
		sum := sha256.Sum256(content)

		migrations = append(migrations, &domain.Migration{
			Version:  version,
			Name:     name,
			FilePath: filePath,
			Checksum: hex.EncodeToString(sum[:]),
			Status:   domain.MigrationStatusPending,
		})
	}

	// バージョン順にソート
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// parseMigrationFileName はファイル名からバージョンと名前を抽出する。
// ファイル名のフォーマット: {version}_{name}.sql (例: 001_create_catalog.sql)
func parseMigrationFileName(filename string) (version, name string, err error) {
	nameWithoutExt := strings.TrimSuffix(filename, ".sql")

	parts := strings.SplitN(nameWithoutExt, "_", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %s (expected format: {version}_{name}.sql)", domain.ErrInvalidMigrationFile, filename)
	}

	return parts[0], parts[1], nil
}

// loadStatus はファイルと適用履歴を突き合わせてステータスを設定する。
func (s *MigrationService) loadStatus(ctx context.Context) ([]*domain.Migration, error) {
	if err := s.repo.EnsureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare schema_migrations: %w", err)
	}

	allMigrations, err := s.scanMigrationFiles()
	if err != nil {
		return nil, err
	}

	appliedMigrations, err := s.repo.FindAllApplied(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch applied migrations: %w", err)
	}

	appliedMap := make(map[string]*domain.Migration, len(appliedMigrations))
	for _, m := range appliedMigrations {
		appliedMap[m.Version] = m
	}

	for _, m := range allMigrations {
		applied, ok := appliedMap[m.Version]
		if !ok {
			continue
		}
		m.AppliedAt = applied.AppliedAt
		if applied.Checksum != "" && applied.Checksum != m.Checksum {
			m.Status = domain.MigrationStatusModified
		} else {
			m.Status = domain.MigrationStatusApplied
		}
	}

	return allMigrations, nil
}

// ApplyMigrations は未適用マイグレーションを番号順に実行する。
// 適用済みファイルが変更されていれば何も実行せずにエラーを返す。
func (s *MigrationService) ApplyMigrations(ctx context.Context) (int, error) {
	allMigrations, err := s.loadStatus(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load migration status",
			"operation", "apply_migrations",
			"error", err,
		)
		return 0, err
	}

	var pendingMigrations []*domain.Migration
	for _, m := range allMigrations {
		switch m.Status {
		case domain.MigrationStatusModified:
			return 0, fmt.Errorf("%w: version %s", domain.ErrMigrationChecksumMismatch, m.Version)
		case domain.MigrationStatusPending:
			pendingMigrations = append(pendingMigrations, m)
		}
	}

	appliedCount := 0
	for _, m := range pendingMigrations {
		if err := s.applyMigration(ctx, m); err != nil {
			slog.ErrorContext(ctx, "failed to apply migration",
				"operation", "apply_migrations",
				"version", m.Version,
				"error", err,
			)
			return appliedCount, fmt.Errorf("%w: version %s: %v", domain.ErrMigrationFailed, m.Version, err)
		}
		slog.InfoContext(ctx, "migration applied",
			"operation", "apply_migrations",
			"version", m.Version,
			"name", m.Name,
		)
		appliedCount++
	}

	return appliedCount, nil
}

// applyMigration は単一のマイグレーションを実行する。
func (s *MigrationService) applyMigration(ctx context.Context, migration *domain.Migration) error {
	sqlBytes, err := os.ReadFile(migration.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	// MySQLではDDLが暗黙コミットされるため、履歴の記録のみがロールバック対象になる
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(string(sqlBytes)).Error; err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
		if err := s.repo.RecordMigration(ctx, tx, migration.Version, migration.Checksum); err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
}

// GetMigrationStatus は現在のマイグレーション状況を取得する。
func (s *MigrationService) GetMigrationStatus(ctx context.Context) ([]*domain.Migration, error) {
	migrations, err := s.loadStatus(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load migration status",
			"operation", "get_migration_status",
			"error", err,
		)
		return nil, err
	}
	return migrations, nil
}
