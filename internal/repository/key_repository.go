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

// TokenKeyModel はtoken_keysテーブルのモデル。
type TokenKeyModel struct {
	ID           string    `gorm:"type:char(36);primaryKey"`
	Generation   uint      `gorm:"not null;uniqueIndex:uk_token_keys_generation"`
	EncryptedKey []byte    `gorm:"type:blob;not null"`
	Status       string    `gorm:"type:varchar(16);not null;default:'active';index:idx_token_keys_status"`
	CreatedAt    time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"type:datetime(6);not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (TokenKeyModel) TableName() string {
	return "token_keys"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (k *TokenKeyModel) BeforeCreate(tx *gorm.DB) error {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	return nil
}

// toDomain はモデルをドメインエンティティに変換する。
func (k *TokenKeyModel) toDomain() *domain.TokenKey {
	return &domain.TokenKey{
		ID:           k.ID,
		Generation:   k.Generation,
		EncryptedKey: k.EncryptedKey,
		Status:       domain.KeyStatus(k.Status),
		CreatedAt:    k.CreatedAt.UTC(),
		UpdatedAt:    k.UpdatedAt.UTC(),
	}
}

// KeyRepository はトークン鍵のデータアクセスを提供する。
type KeyRepository struct {
	db *gorm.DB
}

// NewKeyRepository は新しいKeyRepositoryを生成する。
func NewKeyRepository(db *gorm.DB) *KeyRepository {
	return &KeyRepository{db: db}
}

// Exists はトークン鍵が1件以上存在するか確認する。
func (r *KeyRepository) Exists(ctx context.Context) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&TokenKeyModel{}).
		Count(&count).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to count token keys",
			"operation", "exists",
			"error", err,
		)
		return false, storageError(err)
	}
	return count > 0, nil
}

// Create は新しいトークン鍵を保存する。同じ世代が既にあればErrKeyAlreadyExists。
func (r *KeyRepository) Create(ctx context.Context, key *domain.TokenKey) error {
	model := &TokenKeyModel{
		ID:           key.ID,
		Generation:   key.Generation,
		EncryptedKey: key.EncryptedKey,
		Status:       string(key.Status),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrKeyAlreadyExists
		}
		slog.ErrorContext(ctx, "failed to create token key",
			"operation", "create",
			"generation", key.Generation,
			"error", err,
		)
		return storageError(err)
	}
	// gormで設定された値をドメインエンティティに反映
	key.ID = model.ID
	key.CreatedAt = model.CreatedAt.UTC()
	key.UpdatedAt = model.UpdatedAt.UTC()
	return nil
}

// FindByGeneration は指定世代の鍵を取得する。存在しなければ nil, nil を返す。
func (r *KeyRepository) FindByGeneration(ctx context.Context, generation uint) (*domain.TokenKey, error) {
	var model TokenKeyModel
	err := r.db.WithContext(ctx).
		Where("generation = ?", generation).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find token key",
			"operation", "find_by_generation",
			"generation", generation,
			"error", err,
		)
		return nil, storageError(err)
	}
	return model.toDomain(), nil
}

// FindLatestActive は最新の有効鍵を取得する。
func (r *KeyRepository) FindLatestActive(ctx context.Context) (*domain.TokenKey, error) {
	var model TokenKeyModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.KeyStatusActive)).
		Order("generation DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find latest active token key",
			"operation", "find_latest_active",
			"error", err,
		)
		return nil, storageError(err)
	}
	return model.toDomain(), nil
}

// FindAll は全トークン鍵を世代順に取得する。
func (r *KeyRepository) FindAll(ctx context.Context) ([]*domain.TokenKey, error) {
	var models []TokenKeyModel
	err := r.db.WithContext(ctx).
		Order("generation ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find all token keys",
			"operation", "find_all",
			"error", err,
		)
		return nil, storageError(err)
	}

	keys := make([]*domain.TokenKey, len(models))
	for i := range models {
		keys[i] = models[i].toDomain()
	}
	return keys, nil
}

// GetMaxGeneration は最大世代番号を取得する。鍵がなければ0。
func (r *KeyRepository) GetMaxGeneration(ctx context.Context) (uint, error) {
	var maxGen *uint
	err := r.db.WithContext(ctx).
		Model(&TokenKeyModel{}).
		Select("MAX(generation)").
		Scan(&maxGen).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to get max generation",
			"operation", "get_max_generation",
			"error", err,
		)
		return 0, storageError(err)
	}
	if maxGen == nil {
		return 0, nil
	}
	return *maxGen, nil
}

// UpdateStatus は指定されたIDの鍵のステータスを更新する。
func (r *KeyRepository) UpdateStatus(ctx context.Context, id string, status domain.KeyStatus) error {
	err := r.db.WithContext(ctx).
		Model(&TokenKeyModel{}).
		Where("id = ?", id).
		Update("status", string(status)).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to update status",
			"operation", "update_status",
			"id", id,
			"status", status,
			"error", err,
		)
		return storageError(err)
	}
	return nil
}
