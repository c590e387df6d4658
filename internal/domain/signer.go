package domain

import "time"

// SignerKey は署名者ロールの鍵ペアを表す。秘密鍵はKMSで暗号化された状態でのみ保持する。
type SignerKey struct {
	ID                  string
	Role                string
	Algorithm           string
	PublicKey           []byte
	EncryptedPrivateKey []byte
	CreatedAt           time.Time
}

// DocumentType は文書種別と既定の署名要件を表す。
type DocumentType struct {
	Code          string
	Name          string
	RequiredRoles []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrgUnit は組織単位を表す。
type OrgUnit struct {
	Code      string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
