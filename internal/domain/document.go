package domain

import (
	"encoding/hex"
	"fmt"
	"slices"
	"time"
)

// SessionState は署名セッションの状態を表す。
type SessionState string

const (
	// SessionStateGenerating は文書作成直後で参照番号が未付与の状態。
	SessionStateGenerating SessionState = "generating"
	// SessionStateAwaitingSignature は NextIndex のロールの署名待ち状態。
	SessionStateAwaitingSignature SessionState = "awaiting_signature"
	// SessionStateCompleted は全ロールが署名済みの状態（終端）。
	SessionStateCompleted SessionState = "completed"
	// SessionStateFailed は署名に失敗した状態（終端）。再開はできない。
	SessionStateFailed SessionState = "failed"
)

// SignatureAlgorithmEd25519 は署名アルゴリズム識別子。
const SignatureAlgorithmEd25519 = "Ed25519"

// SigningSession は文書ごとの署名状態機械を表す。
// 署名順は Roles の順で、NextIndex が次に署名すべきロールを指す。
type SigningSession struct {
	State         SessionState
	Roles         []string
	NextIndex     int
	FailureReason string
}

// NextRole は次に署名すべきロールを返す。署名待ちでなければ false。
func (s SigningSession) NextRole() (string, bool) {
	if s.State != SessionStateAwaitingSignature || s.NextIndex >= len(s.Roles) {
		return "", false
	}
	return s.Roles[s.NextIndex], true
}

// Pending は完了も失敗もしていないセッションかどうかを返す。
// 放棄されたセッションも pending として報告される。
func (s SigningSession) Pending() bool {
	return s.State == SessionStateGenerating || s.State == SessionStateAwaitingSignature
}

// SignatureRecord は1ロール分の署名を表す。追記のみで更新されない。
type SignatureRecord struct {
	DocumentID string
	Role       string
	Signer     string
	KeyID      string
	Algorithm  string
	Signature  []byte
	Digest     string
	SignedAt   time.Time
}

// DocumentRecord は署名対象の文書を表す。
type DocumentRecord struct {
	ID                string
	DocumentType      string
	OrgUnit           string
	ReferenceNumber   string
	ContentDigest     string
	Content           []byte // 正規化済みJSON（任意）
	Session           SigningSession
	Signatures        []SignatureRecord
	VerificationCount int64
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
}

// ValidateDigest はSHA-256の16進ダイジェストかどうかを検証する。
func ValidateDigest(digest string) error {
	b, err := hex.DecodeString(digest)
	if err != nil || len(b) != 32 {
		return fmt.Errorf("%w: %q", ErrInvalidDigest, digest)
	}
	return nil
}

// ValidateRoles は署名要件のロール列を検証する。1つ以上で重複不可。
func ValidateRoles(roles []string) error {
	if len(roles) == 0 {
		return fmt.Errorf("%w: no signer roles", ErrInvalidSigningRequirement)
	}
	seen := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		if err := ValidateCode(r); err != nil {
			return fmt.Errorf("%w: role %q", ErrInvalidSigningRequirement, r)
		}
		if _, dup := seen[r]; dup {
			return fmt.Errorf("%w: duplicate role %q", ErrInvalidSigningRequirement, r)
		}
		seen[r] = struct{}{}
	}
	return nil
}

// NewDocumentRecord は generating 状態の文書レコードを生成する。
func NewDocumentRecord(id, documentType, orgUnit, digest string, content []byte, roles []string) (*DocumentRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("document id is required")
	}
	if err := ValidateDigest(digest); err != nil {
		return nil, err
	}
	if err := ValidateRoles(roles); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &DocumentRecord{
		ID:            id,
		DocumentType:  documentType,
		OrgUnit:       orgUnit,
		ContentDigest: digest,
		Content:       content,
		Session: SigningSession{
			State: SessionStateGenerating,
			Roles: slices.Clone(roles),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// AttachReferenceNumber は参照番号を付与し、最初のロールの署名待ちに遷移する。
func (d *DocumentRecord) AttachReferenceNumber(ref string) error {
	if d.Session.State != SessionStateGenerating {
		return fmt.Errorf("%w: attach reference number in %s", ErrInvalidTransition, d.Session.State)
	}
	if ref == "" {
		return ErrInvalidReferenceNumber
	}
	d.ReferenceNumber = ref
	d.Session.State = SessionStateAwaitingSignature
	d.Session.NextIndex = 0
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// CheckSigner はロールが今署名できるかを検証する。状態は変更しない。
func (d *DocumentRecord) CheckSigner(role string) error {
	idx := slices.Index(d.Session.Roles, role)

	switch d.Session.State {
	case SessionStateFailed:
		return fmt.Errorf("%w: %s", ErrSigningFailed, d.Session.FailureReason)
	case SessionStateGenerating:
		if idx < 0 {
			return ErrRoleNotRequired
		}
		return fmt.Errorf("%w: reference number not attached yet", ErrOutOfOrderSignature)
	case SessionStateCompleted:
		if idx < 0 {
			return ErrRoleNotRequired
		}
		return ErrAlreadySigned
	}

	switch {
	case idx < 0:
		return ErrRoleNotRequired
	case idx < d.Session.NextIndex:
		return ErrAlreadySigned
	case idx > d.Session.NextIndex:
		return fmt.Errorf("%w: %q must sign before %q", ErrOutOfOrderSignature, d.Session.Roles[d.Session.NextIndex], role)
	}
	return nil
}

// AppendSignature は署名を追記して次のロールへ進める。最後のロールなら completed になる。
func (d *DocumentRecord) AppendSignature(rec SignatureRecord) (completed bool, err error) {
	if err := d.CheckSigner(rec.Role); err != nil {
		return false, err
	}
	if rec.Digest != d.ContentDigest {
		return false, ErrDigestMismatch
	}

	d.Signatures = append(d.Signatures, rec)
	d.Session.NextIndex++
	d.UpdatedAt = time.Now().UTC()

	if d.Session.NextIndex == len(d.Session.Roles) {
		d.Session.State = SessionStateCompleted
		at := rec.SignedAt
		d.CompletedAt = &at
		return true, nil
	}
	return false, nil
}

// Fail はセッションを失敗状態にする。
func (d *DocumentRecord) Fail(reason string) error {
	if d.Session.State == SessionStateCompleted || d.Session.State == SessionStateFailed {
		return fmt.Errorf("%w: fail in %s", ErrInvalidTransition, d.Session.State)
	}
	d.Session.State = SessionStateFailed
	d.Session.FailureReason = reason
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// SignerIdentities は署名順の署名者一覧を返す。
func (d *DocumentRecord) SignerIdentities() []string {
	signers := make([]string, len(d.Signatures))
	for i, s := range d.Signatures {
		signers[i] = s.Signer
	}
	return signers
}
