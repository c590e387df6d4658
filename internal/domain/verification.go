package domain

import (
	"fmt"
	"time"
)

// Verdict は公開検証の結果を表す。
type Verdict string

const (
	VerdictValid    Verdict = "valid"
	VerdictInvalid  Verdict = "invalid"
	VerdictTampered Verdict = "tampered"
	VerdictNotFound Verdict = "not-found"
)

// VerificationPayload は検証トークンに暗号化して埋め込む最小限の内容。
// QRコードに収まるようにJSONキーは1文字にしている。
type VerificationPayload struct {
	DocumentID      string   `json:"d"`
	ReferenceNumber string   `json:"r"`
	ContentDigest   string   `json:"h"`
	Signers         []string `json:"s"`
	CompletedAt     int64    `json:"t"`
}

// NewVerificationPayload は完了済み文書のスナップショットからペイロードを作る。
func NewVerificationPayload(d *DocumentRecord) (*VerificationPayload, error) {
	if d.Session.State != SessionStateCompleted || d.CompletedAt == nil {
		return nil, fmt.Errorf("%w: document %s is %s", ErrInvalidTransition, d.ID, d.Session.State)
	}
	return &VerificationPayload{
		DocumentID:      d.ID,
		ReferenceNumber: d.ReferenceNumber,
		ContentDigest:   d.ContentDigest,
		Signers:         d.SignerIdentities(),
		CompletedAt:     d.CompletedAt.UTC().Unix(),
	}, nil
}

// DisclosedSignature は検証結果で開示する署名情報。
type DisclosedSignature struct {
	Role     string
	Signer   string
	SignedAt time.Time
}

// DisclosedDocument は検証が valid の場合にのみ開示する文書情報。
type DisclosedDocument struct {
	DocumentID        string
	ReferenceNumber   string
	DocumentType      string
	OrgUnit           string
	ContentDigest     string
	Signatures        []DisclosedSignature
	CompletedAt       time.Time
	VerificationCount int64
}

// VerificationResult は検証結果を表す。Reason は内部ログ用で公開しない。
type VerificationResult struct {
	Verdict  Verdict
	Document *DisclosedDocument
	Reason   string
}
