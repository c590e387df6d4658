package usecase

import (
	"context"
	"fmt"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
)

// CatalogRepository は文書種別と組織単位のデータアクセスのインターフェース。
type CatalogRepository interface {
	ScopeCatalog
	UpsertDocumentType(ctx context.Context, dt *domain.DocumentType) error
	ListDocumentTypes(ctx context.Context) ([]*domain.DocumentType, error)
	UpsertOrgUnit(ctx context.Context, ou *domain.OrgUnit) error
	ListOrgUnits(ctx context.Context) ([]*domain.OrgUnit, error)
}

// CatalogService は採番スコープと既定の署名要件の管理を提供する。
type CatalogService struct {
	repo CatalogRepository
}

// NewCatalogService は新しいCatalogServiceを生成する。
func NewCatalogService(repo CatalogRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

// PutDocumentType は文書種別を登録または更新する。署名ロールは1つ以上で重複不可。
func (s *CatalogService) PutDocumentType(ctx context.Context, dt *domain.DocumentType) error {
	if err := domain.ValidateCode(dt.Code); err != nil {
		return err
	}
	if err := domain.ValidateRoles(dt.RequiredRoles); err != nil {
		return err
	}

	if err := s.repo.UpsertDocumentType(ctx, dt); err != nil {
		return fmt.Errorf("saving document type: %w", err)
	}
	return nil
}

// GetDocumentType は文書種別を取得する。未登録なら ErrUnknownScope。
func (s *CatalogService) GetDocumentType(ctx context.Context, code string) (*domain.DocumentType, error) {
	dt, err := s.repo.FindDocumentType(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("finding document type: %w", err)
	}
	if dt == nil {
		return nil, fmt.Errorf("%w: document type %q", domain.ErrUnknownScope, code)
	}
	return dt, nil
}

// ListDocumentTypes は全文書種別を取得する。
func (s *CatalogService) ListDocumentTypes(ctx context.Context) ([]*domain.DocumentType, error) {
	types, err := s.repo.ListDocumentTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing document types: %w", err)
	}
	return types, nil
}

// PutOrgUnit は組織単位を登録または更新する。
func (s *CatalogService) PutOrgUnit(ctx context.Context, ou *domain.OrgUnit) error {
	if err := domain.ValidateCode(ou.Code); err != nil {
		return err
	}
	if err := s.repo.UpsertOrgUnit(ctx, ou); err != nil {
		return fmt.Errorf("saving org unit: %w", err)
	}
	return nil
}

// GetOrgUnit は組織単位を取得する。未登録なら ErrUnknownScope。
func (s *CatalogService) GetOrgUnit(ctx context.Context, code string) (*domain.OrgUnit, error) {
	ou, err := s.repo.FindOrgUnit(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("finding org unit: %w", err)
	}
	if ou == nil {
		return nil, fmt.Errorf("%w: org unit %q", domain.ErrUnknownScope, code)
	}
	return ou, nil
}

// ListOrgUnits は全組織単位を取得する。
func (s *CatalogService) ListOrgUnits(ctx context.Context) ([]*domain.OrgUnit, error) {
	units, err := s.repo.ListOrgUnits(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing org units: %w", err)
	}
	return units, nil
}
