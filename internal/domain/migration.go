package domain

import "time"

// MigrationStatus はマイグレーションの適用状態を表す
type MigrationStatus string

const (
	MigrationStatusPending  MigrationStatus = "pending"
	MigrationStatusApplied  MigrationStatus = "applied"
	MigrationStatusModified MigrationStatus = "modified"
)

// Migration はスキーママイグレーション1件を表す。
// Checksum はSQLファイル内容のSHA-256で、適用後の書き換え検出に使う。
type Migration struct {
	Version   string
	Name      string
	FilePath  string
	Checksum  string
	AppliedAt *time.Time
	Status    MigrationStatus
}
