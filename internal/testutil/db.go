// Package testutil はテスト用の共通ヘルパーを提供する。
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MigrationsDir はSQLite用マイグレーションディレクトリの絶対パスを返す。
func MigrationsDir(t *testing.T) string {
	t.Helper()

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("failed to resolve caller path")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations", "sqlite")
}

// NewTestDB はマイグレーションを適用済みのSQLiteデータベースを作成する。
// 並行テストでも書き込みが直列化されるよう接続は1本に制限する。
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db := NewEmptyTestDB(t)

	dir := MigrationsDir(t)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read migrations dir: %v", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("failed to read %s: %v", f, err)
		}
		if err := db.Exec(string(content)).Error; err != nil {
			t.Fatalf("failed to apply %s: %v", filepath.Base(f), err)
		}
	}

	return db
}

// NewEmptyTestDB はテーブルを持たないSQLiteデータベースを作成する。
func NewEmptyTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}
