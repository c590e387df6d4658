package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
)

// DocumentTypeModel はdocument_typesテーブルのモデル。
type DocumentTypeModel struct {
	Code          string    `gorm:"type:varchar(32);primaryKey"`
	Name          string    `gorm:"type:varchar(255);not null"`
	RequiredRoles []string  `gorm:"type:varchar(1024);not null;serializer:json"`
	CreatedAt     time.Time `gorm:"type:datetime(6);not null"`
	UpdatedAt     time.Time `gorm:"type:datetime(6);not null"`
}

// TableName はテーブル名を返す。
func (DocumentTypeModel) TableName() string {
	return "document_types"
}

func (m *DocumentTypeModel) toDomain() *domain.DocumentType {
	return &domain.DocumentType{
		Code:          m.Code,
		Name:          m.Name,
		RequiredRoles: m.RequiredRoles,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

// OrgUnitModel はorg_unitsテーブルのモデル。
type OrgUnitModel struct {
	Code      string    `gorm:"type:varchar(32);primaryKey"`
	Name      string    `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `gorm:"type:datetime(6);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(6);not null"`
}

// TableName はテーブル名を返す。
func (OrgUnitModel) TableName() string {
	return "org_units"
}

func (m *OrgUnitModel) toDomain() *domain.OrgUnit {
	return &domain.OrgUnit{
		Code:      m.Code,
		Name:      m.Name,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

// CatalogRepository は文書種別と組織単位のデータアクセスを提供する。
type CatalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository は新しいCatalogRepositoryを生成する。
func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// UpsertDocumentType は文書種別を登録または更新する。
func (r *CatalogRepository) UpsertDocumentType(ctx context.Context, dt *domain.DocumentType) error {
	now := time.Now().UTC()
	model := &DocumentTypeModel{
		Code:          dt.Code,
		Name:          dt.Name,
		RequiredRoles: dt.RequiredRoles,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "required_roles", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to upsert document type",
			"operation", "upsert_document_type",
			"code", dt.Code,
			"error", err,
		)
		return storageError(err)
	}
	dt.UpdatedAt = now
	return nil
}

// FindDocumentType は文書種別を取得する。存在しなければ nil, nil を返す。
func (r *CatalogRepository) FindDocumentType(ctx context.Context, code string) (*domain.DocumentType, error) {
	var model DocumentTypeModel
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find document type",
			"operation", "find_document_type",
			"code", code,
			"error", err,
		)
		return nil, storageError(err)
	}
	return model.toDomain(), nil
}

// ListDocumentTypes は全文書種別をコード順に取得する。
func (r *CatalogRepository) ListDocumentTypes(ctx context.Context) ([]*domain.DocumentType, error) {
	var models []DocumentTypeModel
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to list document types",
			"operation", "list_document_types",
			"error", err,
		)
		return nil, storageError(err)
	}
	types := make([]*domain.DocumentType, len(models))
	for i := range models {
		types[i] = models[i].toDomain()
	}
	return types, nil
}

// UpsertOrgUnit は組織単位を登録または更新する。
func (r *CatalogRepository) UpsertOrgUnit(ctx context.Context, ou *domain.OrgUnit) error {
	now := time.Now().UTC()
	model := &OrgUnitModel{
		Code:      ou.Code,
		Name:      ou.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to upsert org unit",
			"operation", "upsert_org_unit",
			"code", ou.Code,
			"error", err,
		)
		return storageError(err)
	}
	ou.UpdatedAt = now
	return nil
}

// FindOrgUnit は組織単位を取得する。存在しなければ nil, nil を返す。
func (r *CatalogRepository) FindOrgUnit(ctx context.Context, code string) (*domain.OrgUnit, error) {
	var model OrgUnitModel
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find org unit",
			"operation", "find_org_unit",
			"code", code,
			"error", err,
		)
		return nil, storageError(err)
	}
	return model.toDomain(), nil
}

// ListOrgUnits は全組織単位をコード順に取得する。
func (r *CatalogRepository) ListOrgUnits(ctx context.Context) ([]*domain.OrgUnit, error) {
	var models []OrgUnitModel
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to list org units",
			"operation", "list_org_units",
			"error", err,
		)
		return nil, storageError(err)
	}
	units := make([]*domain.OrgUnit, len(models))
	for i := range models {
		units[i] = models[i].toDomain()
	}
	return units, nil
}
