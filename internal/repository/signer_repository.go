package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
)

// SignerKeyModel はsigner_keysテーブルのモデル。
type SignerKeyModel struct {
	ID                  string    `gorm:"type:char(36);primaryKey"`
	Role                string    `gorm:"type:varchar(32);not null;uniqueIndex:uk_signer_keys_role"`
	Algorithm           string    `gorm:"type:varchar(16);not null"`
	PublicKey           []byte    `gorm:"type:blob;not null"`
	EncryptedPrivateKey []byte    `gorm:"type:blob;not null"`
	CreatedAt           time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (SignerKeyModel) TableName() string {
	return "signer_keys"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (s *SignerKeyModel) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

func (s *SignerKeyModel) toDomain() *domain.SignerKey {
	return &domain.SignerKey{
		ID:                  s.ID,
		Role:                s.Role,
		Algorithm:           s.Algorithm,
		PublicKey:           s.PublicKey,
		EncryptedPrivateKey: s.EncryptedPrivateKey,
		CreatedAt:           s.CreatedAt.UTC(),
	}
}

// SignerRepository は署名鍵のデータアクセスを提供する。
type SignerRepository struct {
	db *gorm.DB
}

// NewSignerRepository は新しいSignerRepositoryを生成する。
func NewSignerRepository(db *gorm.DB) *SignerRepository {
	return &SignerRepository{db: db}
}

// Create は署名鍵を保存する。同じロールの鍵が既にあればErrSignerAlreadyExists。
func (r *SignerRepository) Create(ctx context.Context, key *domain.SignerKey) error {
	model := &SignerKeyModel{
		ID:                  key.ID,
		Role:                key.Role,
		Algorithm:           key.Algorithm,
		PublicKey:           key.PublicKey,
		EncryptedPrivateKey: key.EncryptedPrivateKey,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrSignerAlreadyExists
		}
		slog.ErrorContext(ctx, "failed to create signer key",
			"operation", "create",
			"role", key.Role,
			"error", err,
		)
		return storageError(err)
	}
	key.ID = model.ID
	key.CreatedAt = model.CreatedAt.UTC()
	return nil
}

// FindByRole はロールの署名鍵を取得する。存在しなければ nil, nil を返す。
func (r *SignerRepository) FindByRole(ctx context.Context, role string) (*domain.SignerKey, error) {
	return r.findOne(ctx, "find_by_role", "role = ?", role)
}

// FindByID は鍵IDの署名鍵を取得する。存在しなければ nil, nil を返す。
func (r *SignerRepository) FindByID(ctx context.Context, id string) (*domain.SignerKey, error) {
	return r.findOne(ctx, "find_by_id", "id = ?", id)
}

func (r *SignerRepository) findOne(ctx context.Context, operation, cond, arg string) (*domain.SignerKey, error) {
	var model SignerKeyModel
	err := r.db.WithContext(ctx).Where(cond, arg).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find signer key",
			"operation", operation,
			"key", arg,
			"error", err,
		)
		return nil, storageError(err)
	}
	return model.toDomain(), nil
}

// FindAll は全署名鍵をロール順に取得する。
func (r *SignerRepository) FindAll(ctx context.Context) ([]*domain.SignerKey, error) {
	var models []SignerKeyModel
	if err := r.db.WithContext(ctx).Order("role ASC").Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to find all signer keys",
			"operation", "find_all",
			"error", err,
		)
		return nil, storageError(err)
	}

	keys := make([]*domain.SignerKey, len(models))
	for i := range models {
		keys[i] = models[i].toDomain()
	}
	return keys, nil
}
