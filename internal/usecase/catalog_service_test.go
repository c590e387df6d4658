package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
	"github.com/devnolife/sakti-dashboard-sub012/internal/repository"
	"github.com/devnolife/sakti-dashboard-sub012/internal/testutil"
)

func TestCatalogService_DocumentTypes(t *testing.T) {
	ctx := context.Background()
	svc := NewCatalogService(repository.NewCatalogRepository(testutil.NewTestDB(t)))

	if err := svc.PutDocumentType(ctx, &domain.DocumentType{Code: "SK", Name: "Surat Keputusan", RequiredRoles: []string{"DEKAN"}}); err != nil {
		t.Fatalf("PutDocumentType failed: %v", err)
	}
	// 再登録は上書き
	if err := svc.PutDocumentType(ctx, &domain.DocumentType{Code: "SK", Name: "Surat Keputusan Dekan", RequiredRoles: []string{"KAPRODI", "DEKAN"}}); err != nil {
		t.Fatalf("PutDocumentType failed: %v", err)
	}

	dt, err := svc.GetDocumentType(ctx, "SK")
	if err != nil {
		t.Fatalf("GetDocumentType failed: %v", err)
	}
	if dt.Name != "Surat Keputusan Dekan" || len(dt.RequiredRoles) != 2 {
		t.Errorf("unexpected document type %+v", dt)
	}

	types, err := svc.ListDocumentTypes(ctx)
	if err != nil {
		t.Fatalf("ListDocumentTypes failed: %v", err)
	}
	if len(types) != 1 {
		t.Errorf("want 1 document type, got %d", len(types))
	}

	if _, err := svc.GetDocumentType(ctx, "SPT"); !errors.Is(err, domain.ErrUnknownScope) {
		t.Errorf("want ErrUnknownScope, got %v", err)
	}
}

func TestCatalogService_PutDocumentType_Invalid(t *testing.T) {
	ctx := context.Background()
	svc := NewCatalogService(repository.NewCatalogRepository(testutil.NewTestDB(t)))

	tests := []struct {
		name    string
		dt      *domain.DocumentType
		wantErr error
	}{
		{name: "bad code", dt: &domain.DocumentType{Code: "S K", RequiredRoles: []string{"DEKAN"}}, wantErr: domain.ErrInvalidCode},
		{name: "no roles", dt: &domain.DocumentType{Code: "SK"}, wantErr: domain.ErrInvalidSigningRequirement},
		{name: "duplicate roles", dt: &domain.DocumentType{Code: "SK", RequiredRoles: []string{"DEKAN", "DEKAN"}}, wantErr: domain.ErrInvalidSigningRequirement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.PutDocumentType(ctx, tt.dt); !errors.Is(err, tt.wantErr) {
				t.Errorf("want %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCatalogService_OrgUnits(t *testing.T) {
	ctx := context.Background()
	svc := NewCatalogService(repository.NewCatalogRepository(testutil.NewTestDB(t)))

	for _, ou := range []*domain.OrgUnit{{Code: "55202", Name: "Informatika"}, {Code: "20201", Name: "Teknik Elektro"}} {
		if err := svc.PutOrgUnit(ctx, ou); err != nil {
			t.Fatalf("PutOrgUnit failed: %v", err)
		}
	}

	units, err := svc.ListOrgUnits(ctx)
	if err != nil {
		t.Fatalf("ListOrgUnits failed: %v", err)
	}
	if len(units) != 2 {
		t.Errorf("want 2 org units, got %d", len(units))
	}

	ou, err := svc.GetOrgUnit(ctx, "55202")
	if err != nil {
		t.Fatalf("GetOrgUnit failed: %v", err)
	}
	if ou.Name != "Informatika" {
		t.Errorf("unexpected org unit %+v", ou)
	}

	if _, err := svc.GetOrgUnit(ctx, "99999"); !errors.Is(err, domain.ErrUnknownScope) {
		t.Errorf("want ErrUnknownScope, got %v", err)
	}
	if err := svc.PutOrgUnit(ctx, &domain.OrgUnit{Code: "55/202"}); !errors.Is(err, domain.ErrInvalidCode) {
		t.Errorf("want ErrInvalidCode, got %v", err)
	}
}
