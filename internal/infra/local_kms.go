package infra

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// LocalKMS はマスター鍵によるAES-256-GCMでCloud KMSを代替する（開発・テスト用）。
type LocalKMS struct {
	aead cipher.AEAD
}

// NewLocalKMS はbase64エンコードされた32バイトのマスター鍵からLocalKMSを生成する。
func NewLocalKMS(masterKeyB64 string) (*LocalKMS, error) {
	key, err := base64.StdEncoding.DecodeString(masterKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decoding LOCAL_MASTER_KEY: %w", err)
	}
	return NewLocalKMSFromKey(key)
}

// NewLocalKMSFromKey は生のマスター鍵からLocalKMSを生成する。
func NewLocalKMSFromKey(key []byte) (*LocalKMS, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes (got %d)", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &LocalKMS{aead: aead}, nil
}

// Encrypt は nonce を先頭に付けた暗号文を返す。
func (k *LocalKMS) Encrypt(_ context.Context, plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, k.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return k.aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Decrypt は Encrypt の出力を復号する。
func (k *LocalKMS) Decrypt(_ context.Context, ciphertext, aad []byte) ([]byte, error) {
	ns := k.aead.NonceSize()
	if len(ciphertext) < ns {
		return nil, fmt.Errorf("decrypting: ciphertext too short")
	}
	plaintext, err := k.aead.Open(nil, ciphertext[:ns], ciphertext[ns:], aad)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return plaintext, nil
}
