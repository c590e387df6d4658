package domain

import "time"

// KeyStatus はトークン鍵のステータスを表す。
type KeyStatus string

const (
	// KeyStatusActive は有効な鍵を表す。
	KeyStatusActive KeyStatus = "active"
	// KeyStatusDisabled は無効化された鍵を表す。無効化された世代で発行したトークンは検証できない。
	KeyStatusDisabled KeyStatus = "disabled"
)

// TokenKey は検証トークン暗号化用の世代付き対称鍵（KMSで暗号化済み）を表す。
type TokenKey struct {
	ID           string
	Generation   uint
	EncryptedKey []byte
	Status       KeyStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenKeyMetadata はトークン鍵のメタデータを表す（鍵素材を含まない）。
type TokenKeyMetadata struct {
	Generation uint
	Status     KeyStatus
	CreatedAt  time.Time
}

// Key は復号済みのトークン鍵を表す。
type Key struct {
	Generation uint
	Key        []byte
}
