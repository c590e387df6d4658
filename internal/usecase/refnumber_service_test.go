package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
)

type stubCounter struct {
	allocateErr error
	peekErr     error
}

func (s *stubCounter) Allocate(ctx context.Context, scopeKey string) (int64, error) {
	return 0, s.allocateErr
}

func (s *stubCounter) Peek(ctx context.Context, scopeKey string) (int64, error) {
	return 0, s.peekErr
}

func TestRefNumberService_Generate_Sequence(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	march := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		date time.Time
		want string
	}{
		{date: march, want: "1/SK/55202/III/1445/2024"},
		{date: march, want: "2/SK/55202/III/1445/2024"},
		{date: time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC), want: "1/SK/55202/I/1446/2025"},
	}

	for _, tt := range tests {
		ref, err := env.numbers.Generate(ctx, GenerateRequest{DocumentType: "SK", OrgUnit: "55202", Date: tt.date})
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if got := ref.String(); got != tt.want {
			t.Errorf("want %s, got %s", tt.want, got)
		}
	}
}

func TestRefNumberService_PreviewDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	req := GenerateRequest{DocumentType: "SK", OrgUnit: "55202", Date: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)}

	for i := 0; i < 5; i++ {
		ref, err := env.numbers.Preview(ctx, req)
		if err != nil {
			t.Fatalf("Preview failed: %v", err)
		}
		if ref.Sequence != 1 {
			t.Errorf("preview %d: want sequence 1, got %d", i, ref.Sequence)
		}
	}

	ref, err := env.numbers.Generate(ctx, req)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if ref.Sequence != 1 {
		t.Errorf("want sequence 1 after previews, got %d", ref.Sequence)
	}

	ref, err = env.numbers.Preview(ctx, req)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if ref.Sequence != 2 {
		t.Errorf("want preview sequence 2, got %d", ref.Sequence)
	}
}

func TestRefNumberService_DefaultsToNow(t *testing.T) {
	env := newTestEnv(t)
	env.numbers.now = func() time.Time { return time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC) }

	ref, err := env.numbers.Generate(context.Background(), GenerateRequest{DocumentType: "SK", OrgUnit: "55202"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got, want := ref.String(), "1/SK/55202/III/1445/2024"; got != want {
		t.Errorf("want %s, got %s", want, got)
	}
}

func TestRefNumberService_UnknownScope(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  GenerateRequest
	}{
		{name: "unknown document type", req: GenerateRequest{DocumentType: "SPT", OrgUnit: "55202"}},
		{name: "unknown org unit", req: GenerateRequest{DocumentType: "SK", OrgUnit: "99999"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.numbers.Generate(ctx, tt.req); !errors.Is(err, domain.ErrUnknownScope) {
				t.Errorf("Generate: want ErrUnknownScope, got %v", err)
			}
			if _, err := env.numbers.Preview(ctx, tt.req); !errors.Is(err, domain.ErrUnknownScope) {
				t.Errorf("Preview: want ErrUnknownScope, got %v", err)
			}
		})
	}
}

func TestRefNumberService_InvalidCode(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.numbers.Generate(context.Background(), GenerateRequest{DocumentType: "S/K", OrgUnit: "55202"})
	if !errors.Is(err, domain.ErrInvalidCode) {
		t.Errorf("want ErrInvalidCode, got %v", err)
	}
}

func TestRefNumberService_StorageUnavailable(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRefNumberService(&stubCounter{
		allocateErr: context.DeadlineExceeded,
		peekErr:     context.DeadlineExceeded,
	}, env.catalog, time.Second)
	req := GenerateRequest{DocumentType: "SK", OrgUnit: "55202"}

	if _, err := svc.Generate(context.Background(), req); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("Generate: want ErrStorageUnavailable, got %v", err)
	}
	if _, err := svc.Preview(context.Background(), req); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("Preview: want ErrStorageUnavailable, got %v", err)
	}
}

func TestRefNumberService_CheckIssued(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	parse := func(s string) *domain.ReferenceNumber {
		t.Helper()
		ref, err := domain.ParseReferenceNumber(s)
		if err != nil {
			t.Fatalf("ParseReferenceNumber(%s) failed: %v", s, err)
		}
		return ref
	}

	// 未採番のスコープではどの番号も払い出されていない
	if err := env.numbers.CheckIssued(ctx, parse("1/SK/55202/III/1445/2024")); !errors.Is(err, domain.ErrInvalidReferenceNumber) {
		t.Errorf("want ErrInvalidReferenceNumber before allocation, got %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := env.numbers.Generate(ctx, GenerateRequest{DocumentType: "SK", OrgUnit: "55202", Date: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)}); err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
	}

	tests := []struct {
		name    string
		ref     string
		wantErr error
	}{
		{name: "最初の番号", ref: "1/SK/55202/III/1445/2024"},
		{name: "最後に払い出した番号", ref: "2/SK/55202/III/1445/2024"},
		{name: "カウンタより先", ref: "3/SK/55202/III/1445/2024", wantErr: domain.ErrInvalidReferenceNumber},
		{name: "別の年のスコープ", ref: "1/SK/55202/I/1446/2025", wantErr: domain.ErrInvalidReferenceNumber},
		{name: "未登録の組織単位", ref: "1/SK/99999/III/1445/2024", wantErr: domain.ErrUnknownScope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.numbers.CheckIssued(ctx, parse(tt.ref))
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("want %v, got %v", tt.wantErr, err)
			}
		})
	}

	svc := NewRefNumberService(&stubCounter{peekErr: context.DeadlineExceeded}, env.catalog, time.Second)
	if err := svc.CheckIssued(ctx, parse("1/SK/55202/III/1445/2024")); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("want ErrStorageUnavailable, got %v", err)
	}
}
