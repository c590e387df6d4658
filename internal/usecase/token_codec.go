package usecase

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
)

// TokenKeyProvider は世代付きトークン鍵の取得インターフェース。
type TokenKeyProvider interface {
	GetCurrentKey(ctx context.Context) (*domain.Key, error)
	GetKeyByGeneration(ctx context.Context, generation uint) (*domain.Key, error)
}

// TokenCodec は検証トークンの発行と解読を行う。
// トークンは v{世代}.{base64url(nonce || AES-256-GCM(payload))} の形式で、
// 世代タグはGCMの追加認証データとして暗号文に結び付ける。
type TokenCodec struct {
	keys TokenKeyProvider
}

// NewTokenCodec は新しいTokenCodecを生成する。
func NewTokenCodec(keys TokenKeyProvider) *TokenCodec {
	return &TokenCodec{keys: keys}
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encode は現在の世代の鍵でペイロードを暗号化してトークンを返す。
func (c *TokenCodec) Encode(ctx context.Context, payload *domain.VerificationPayload) (string, error) {
	key, err := c.keys.GetCurrentKey(ctx)
	if err != nil {
		return "", fmt.Errorf("getting current token key: %w", err)
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling payload: %w", err)
	}

	gcm, err := newGCM(key.Key)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	tag := "v" + strconv.FormatUint(uint64(key.Generation), 10)
	sealed := gcm.Seal(nonce, nonce, plaintext, []byte(tag))
	return tag + "." + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode はトークンを解読する。書式不正・未知または無効化された世代・認証失敗はすべて ErrTokenInvalid。
// 鍵の読み出しに失敗した場合はErrStorageUnavailableを含むエラーを返す。
func (c *TokenCodec) Decode(ctx context.Context, token string) (*domain.VerificationPayload, error) {
	tag, body, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || len(tag) < 2 || tag[0] != 'v' {
		return nil, fmt.Errorf("%w: malformed token", domain.ErrTokenInvalid)
	}
	generation, err := strconv.ParseUint(tag[1:], 10, 32)
	if err != nil || generation == 0 {
		return nil, fmt.Errorf("%w: malformed key tag", domain.ErrTokenInvalid)
	}
	sealed, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed body", domain.ErrTokenInvalid)
	}

	key, err := c.keys.GetKeyByGeneration(ctx, uint(generation))
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) || errors.Is(err, domain.ErrKeyDisabled) {
			return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
		}
		return nil, fmt.Errorf("getting token key: %w", err)
	}

	gcm, err := newGCM(key.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	if len(sealed) < gcm.NonceSize()+gcm.Overhead() {
		return nil, fmt.Errorf("%w: truncated body", domain.ErrTokenInvalid)
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(tag))
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", domain.ErrTokenInvalid)
	}

	var payload domain.VerificationPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil || payload.DocumentID == "" {
		return nil, fmt.Errorf("%w: malformed payload", domain.ErrTokenInvalid)
	}
	return &payload, nil
}
