// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
)

const keySize = 32 // AES-256 = 256 bits = 32 bytes

// KeyRepository はトークン鍵のデータアクセスのインターフェース。
type KeyRepository interface {
	Exists(ctx context.Context) (bool, error)
	Create(ctx context.Context, key *domain.TokenKey) error
	FindByGeneration(ctx context.Context, generation uint) (*domain.TokenKey, error)
	FindLatestActive(ctx context.Context) (*domain.TokenKey, error)
	FindAll(ctx context.Context) ([]*domain.TokenKey, error)
	GetMaxGeneration(ctx context.Context) (uint, error)
	UpdateStatus(ctx context.Context, id string, status domain.KeyStatus) error
}

// KMSClient は暗号化/復号のインターフェース。aad は暗号文に結び付ける追加認証データ。
type KMSClient interface {
	Encrypt(ctx context.Context, plaintext, aad []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext, aad []byte) ([]byte, error)
}

// KeyService はトークン鍵の世代管理を提供する。
// 復号済みの鍵素材は世代ごとにメモリへキャッシュし、KMSの呼び出しを初回のみに抑える。
type KeyService struct {
	repo      KeyRepository
	kmsClient KMSClient

	mu    sync.RWMutex
	cache map[uint][]byte
}

// NewKeyService は新しいKeyServiceを生成する。
func NewKeyService(repo KeyRepository, kmsClient KMSClient) *KeyService {
	return &KeyService{
		repo:      repo,
		kmsClient: kmsClient,
		cache:     make(map[uint][]byte),
	}
}

// tokenKeyAAD は世代をKMS暗号文に結び付ける追加認証データ。
func tokenKeyAAD(generation uint) []byte {
	return []byte(fmt.Sprintf("token-key:v%d", generation))
}

// generateAESKey はAES-256鍵を生成する。
func generateAESKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating random key: %w", err)
	}
	return key, nil
}

func toMetadata(k *domain.TokenKey) *domain.TokenKeyMetadata {
	return &domain.TokenKeyMetadata{
		Generation: k.Generation,
		Status:     k.Status,
		CreatedAt:  k.CreatedAt,
	}
}

// CreateKey は最初の世代のトークン鍵を生成する。
func (s *KeyService) CreateKey(ctx context.Context) (*domain.TokenKeyMetadata, error) {
	exists, err := s.repo.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking existing key: %w", err)
	}
	if exists {
		return nil, domain.ErrKeyAlreadyExists
	}
	return s.createGeneration(ctx, 1)
}

// RotateKey は新しい世代の鍵を生成する。旧世代は無効化されるまで復号に使える。
func (s *KeyService) RotateKey(ctx context.Context) (*domain.TokenKeyMetadata, error) {
	maxGen, err := s.repo.GetMaxGeneration(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting max generation: %w", err)
	}
	if maxGen == 0 {
		return nil, domain.ErrKeyNotFound
	}
	return s.createGeneration(ctx, maxGen+1)
}

func (s *KeyService) createGeneration(ctx context.Context, generation uint) (*domain.TokenKeyMetadata, error) {
	plainKey, err := generateAESKey()
	if err != nil {
		return nil, err
	}

	// KMSで暗号化
	encryptedKey, err := s.kmsClient.Encrypt(ctx, plainKey, tokenKeyAAD(generation))
	if err != nil {
		return nil, fmt.Errorf("encrypting key: %w", err)
	}

	key := &domain.TokenKey{
		Generation:   generation,
		EncryptedKey: encryptedKey,
		Status:       domain.KeyStatusActive,
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("creating key: %w", err)
	}

	s.remember(generation, plainKey)
	return toMetadata(key), nil
}

// GetCurrentKey は最新の有効な鍵を取得する。
func (s *KeyService) GetCurrentKey(ctx context.Context) (*domain.Key, error) {
	key, err := s.repo.FindLatestActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding current key: %w", err)
	}
	if key == nil {
		return nil, domain.ErrKeyNotFound
	}
	return s.decrypt(ctx, key)
}

// GetKeyByGeneration は指定世代の鍵を取得する。無効化された世代は ErrKeyDisabled。
func (s *KeyService) GetKeyByGeneration(ctx context.Context, generation uint) (*domain.Key, error) {
	key, err := s.repo.FindByGeneration(ctx, generation)
	if err != nil {
		return nil, fmt.Errorf("finding key: %w", err)
	}
	if key == nil {
		return nil, domain.ErrKeyNotFound
	}
	if key.Status == domain.KeyStatusDisabled {
		s.forget(generation)
		return nil, domain.ErrKeyDisabled
	}
	return s.decrypt(ctx, key)
}

func (s *KeyService) decrypt(ctx context.Context, key *domain.TokenKey) (*domain.Key, error) {
	if plain, ok := s.cached(key.Generation); ok {
		return &domain.Key{Generation: key.Generation, Key: plain}, nil
	}

	// KMSで復号
	plainKey, err := s.kmsClient.Decrypt(ctx, key.EncryptedKey, tokenKeyAAD(key.Generation))
	if err != nil {
		return nil, fmt.Errorf("decrypting key: %w", err)
	}
	if len(plainKey) != keySize {
		return nil, fmt.Errorf("decrypting key: unexpected key length %d", len(plainKey))
	}

	s.remember(key.Generation, plainKey)
	return &domain.Key{Generation: key.Generation, Key: plainKey}, nil
}

// ListKeys は全世代の鍵メタデータを取得する。
func (s *KeyService) ListKeys(ctx context.Context) ([]*domain.TokenKeyMetadata, error) {
	keys, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding keys: %w", err)
	}

	metadata := make([]*domain.TokenKeyMetadata, len(keys))
	for i, k := range keys {
		metadata[i] = toMetadata(k)
	}
	return metadata, nil
}

// DisableKey は指定世代の鍵を無効化する。
func (s *KeyService) DisableKey(ctx context.Context, generation uint) error {
	key, err := s.repo.FindByGeneration(ctx, generation)
	if err != nil {
		return fmt.Errorf("finding key: %w", err)
	}
	if key == nil {
		return domain.ErrKeyNotFound
	}
	if key.Status == domain.KeyStatusDisabled {
		return domain.ErrKeyAlreadyDisabled
	}

	if err := s.repo.UpdateStatus(ctx, key.ID, domain.KeyStatusDisabled); err != nil {
		return fmt.Errorf("updating status: %w", err)
	}

	s.forget(generation)
	return nil
}

func (s *KeyService) cached(generation uint) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.cache[generation]
	return k, ok
}

func (s *KeyService) remember(generation uint, key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[generation] = key
}

func (s *KeyService) forget(generation uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, generation)
}
