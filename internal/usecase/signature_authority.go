package usecase

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
)

// SignerRepository は署名鍵のデータアクセスのインターフェース。
type SignerRepository interface {
	Create(ctx context.Context, key *domain.SignerKey) error
	FindByRole(ctx context.Context, role string) (*domain.SignerKey, error)
	FindByID(ctx context.Context, id string) (*domain.SignerKey, error)
	FindAll(ctx context.Context) ([]*domain.SignerKey, error)
}

// SignInput は署名の入力。
type SignInput struct {
	DocumentID string
	Role       string
	Signer     string
	Digest     string
}

// signingPayload は署名対象。JCSで正規化してから署名する。
type signingPayload struct {
	Algorithm  string `json:"alg"`
	Digest     string `json:"digest"`
	DocumentID string `json:"document_id"`
	KeyID      string `json:"key_id"`
	Role       string `json:"role"`
	SignedAt   int64  `json:"signed_at"`
	Signer     string `json:"signer"`
}

func signingMessage(rec *domain.SignatureRecord) ([]byte, error) {
	raw, err := json.Marshal(signingPayload{
		Algorithm:  rec.Algorithm,
		Digest:     rec.Digest,
		DocumentID: rec.DocumentID,
		KeyID:      rec.KeyID,
		Role:       rec.Role,
		SignedAt:   rec.SignedAt.UnixMicro(),
		Signer:     rec.Signer,
	})
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}

// signerKeyAAD はロールをKMS暗号文に結び付ける追加認証データ。
func signerKeyAAD(role string) []byte {
	return []byte("signer-key:" + role)
}

// SignatureAuthority はロールごとのEd25519鍵で署名と検証を行う。
// 秘密鍵はKMSで暗号化して保存し、署名のたびに復号する。
type SignatureAuthority struct {
	repo      SignerRepository
	kmsClient KMSClient
	now       func() time.Time
}

// NewSignatureAuthority は新しいSignatureAuthorityを生成する。
func NewSignatureAuthority(repo SignerRepository, kmsClient KMSClient) *SignatureAuthority {
	return &SignatureAuthority{
		repo:      repo,
		kmsClient: kmsClient,
		now:       time.Now,
	}
}

// RegisterSigner はロールの鍵ペアを生成して登録する。秘密鍵は返さない。
func (a *SignatureAuthority) RegisterSigner(ctx context.Context, role string) (*domain.SignerKey, error) {
	if err := domain.ValidateCode(role); err != nil {
		return nil, err
	}

	existing, err := a.repo.FindByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("finding signer: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrSignerAlreadyExists
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating key pair: %w", err)
	}

	encrypted, err := a.kmsClient.Encrypt(ctx, priv.Seed(), signerKeyAAD(role))
	if err != nil {
		return nil, fmt.Errorf("encrypting private key: %w", err)
	}

	key := &domain.SignerKey{
		Role:                role,
		Algorithm:           domain.SignatureAlgorithmEd25519,
		PublicKey:           pub,
		EncryptedPrivateKey: encrypted,
	}
	if err := a.repo.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("creating signer: %w", err)
	}

	key.EncryptedPrivateKey = nil
	return key, nil
}

// PublicKey はロールの公開鍵情報を返す。未登録なら ErrUnknownSigner。
func (a *SignatureAuthority) PublicKey(ctx context.Context, role string) (*domain.SignerKey, error) {
	key, err := a.repo.FindByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("finding signer: %w", err)
	}
	if key == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSigner, role)
	}
	key.EncryptedPrivateKey = nil
	return key, nil
}

// ListSigners は登録済みの全ロールの公開鍵情報を返す。
func (a *SignatureAuthority) ListSigners(ctx context.Context) ([]*domain.SignerKey, error) {
	keys, err := a.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing signers: %w", err)
	}
	for _, k := range keys {
		k.EncryptedPrivateKey = nil
	}
	return keys, nil
}

// Sign はロールの鍵でダイジェストに署名する。
func (a *SignatureAuthority) Sign(ctx context.Context, in SignInput) (*domain.SignatureRecord, error) {
	key, err := a.repo.FindByRole(ctx, in.Role)
	if err != nil {
		return nil, fmt.Errorf("finding signer: %w", err)
	}
	if key == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSigner, in.Role)
	}

	seed, err := a.kmsClient.Decrypt(ctx, key.EncryptedPrivateKey, signerKeyAAD(key.Role))
	if err != nil {
		return nil, fmt.Errorf("decrypting private key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("decrypting private key: unexpected seed length %d", len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)

	rec := &domain.SignatureRecord{
		DocumentID: in.DocumentID,
		Role:       in.Role,
		Signer:     in.Signer,
		KeyID:      key.ID,
		Algorithm:  domain.SignatureAlgorithmEd25519,
		Digest:     in.Digest,
		SignedAt:   a.now().UTC().Truncate(time.Microsecond),
	}
	msg, err := signingMessage(rec)
	if err != nil {
		return nil, fmt.Errorf("building signing payload: %w", err)
	}
	rec.Signature = ed25519.Sign(priv, msg)
	return rec, nil
}

// Verify は署名レコードが digest に対する正当な署名かを返す。
// 鍵が見つからない場合や読み出しに失敗した場合も false を返す。
func (a *SignatureAuthority) Verify(ctx context.Context, rec *domain.SignatureRecord, digest string) bool {
	ok, err := a.CheckSignature(ctx, rec, digest)
	if err != nil {
		slog.WarnContext(ctx, "signature check failed",
			"operation", "verify",
			"document_id", rec.DocumentID,
			"role", rec.Role,
			"error", err,
		)
		return false
	}
	return ok
}

// CheckSignature は Verify と同じ判定を行い、鍵の読み出し失敗のみをエラーとして返す。
func (a *SignatureAuthority) CheckSignature(ctx context.Context, rec *domain.SignatureRecord, digest string) (bool, error) {
	if rec.Algorithm != domain.SignatureAlgorithmEd25519 {
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(rec.Digest), []byte(digest)) != 1 {
		return false, nil
	}

	key, err := a.repo.FindByID(ctx, rec.KeyID)
	if err != nil {
		return false, fmt.Errorf("finding signer key: %w", err)
	}
	if key == nil || key.Role != rec.Role || len(key.PublicKey) != ed25519.PublicKeySize {
		return false, nil
	}

	msg, err := signingMessage(rec)
	if err != nil {
		return false, nil
	}
	return ed25519.Verify(ed25519.PublicKey(key.PublicKey), msg, rec.Signature), nil
}

// isRetryableSignerError は署名機関の呼び出し失敗が再試行可能かを判定する。
func isRetryableSignerError(ctx context.Context, err error) bool {
	return errors.Is(err, domain.ErrStorageUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		ctx.Err() != nil
}
