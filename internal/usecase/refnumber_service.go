package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
	"github.com/devnolife/sakti-dashboard-sub012/internal/metrics"
)

// CounterStore は採番カウンタのインターフェース。
type CounterStore interface {
	// Allocate はカウンタを原子的に1進め、進めた後の値を返す。
	Allocate(ctx context.Context, scopeKey string) (int64, error)
	// Peek は最後に払い出された値を返す。未採番なら0。
	Peek(ctx context.Context, scopeKey string) (int64, error)
}

// ScopeCatalog は採番スコープの妥当性確認に使うカタログの参照系インターフェース。
type ScopeCatalog interface {
	FindDocumentType(ctx context.Context, code string) (*domain.DocumentType, error)
	FindOrgUnit(ctx context.Context, code string) (*domain.OrgUnit, error)
}

// GenerateRequest は参照番号の採番リクエスト。Date が zero なら現在日時を使う。
type GenerateRequest struct {
	DocumentType string
	OrgUnit      string
	Date         time.Time
}

// RefNumberService は参照番号の採番を提供する。
type RefNumberService struct {
	counter CounterStore
	catalog ScopeCatalog
	timeout time.Duration
	now     func() time.Time
}

// NewRefNumberService は新しいRefNumberServiceを生成する。
func NewRefNumberService(counter CounterStore, catalog ScopeCatalog, timeout time.Duration) *RefNumberService {
	return &RefNumberService{
		counter: counter,
		catalog: catalog,
		timeout: timeout,
		now:     time.Now,
	}
}

// Generate はスコープのカウンタを進めて参照番号を払い出す。
// 払い出した番号は呼び出し側が使わなくても再利用されない。
func (s *RefNumberService) Generate(ctx context.Context, req GenerateRequest) (*domain.ReferenceNumber, error) {
	scope, err := s.resolveScope(ctx, req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	seq, err := s.counter.Allocate(ctx, scope.CounterKey())
	if err != nil {
		return nil, fmt.Errorf("allocating sequence: %w", asStorageError(err))
	}

	metrics.RecordReferenceNumberAllocated(scope.DocumentType)
	return &domain.ReferenceNumber{Sequence: seq, Scope: scope}, nil
}

// Preview は次に払い出される参照番号を返す。カウンタは変更しない。
// 並行する採番があれば実際の番号とは異なりうる。
func (s *RefNumberService) Preview(ctx context.Context, req GenerateRequest) (*domain.ReferenceNumber, error) {
	scope, err := s.resolveScope(ctx, req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	last, err := s.counter.Peek(ctx, scope.CounterKey())
	if err != nil {
		return nil, fmt.Errorf("peeking sequence: %w", asStorageError(err))
	}

	return &domain.ReferenceNumber{Sequence: last + 1, Scope: scope}, nil
}

// CheckIssued は外部から持ち込まれた参照番号が払い出し済みの範囲にあるか確認する。
// カウンタより先の番号は受け付けない。
func (s *RefNumberService) CheckIssued(ctx context.Context, ref *domain.ReferenceNumber) error {
	if err := s.checkCatalog(ctx, ref.Scope.DocumentType, ref.Scope.OrgUnit); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	last, err := s.counter.Peek(ctx, ref.Scope.CounterKey())
	if err != nil {
		return fmt.Errorf("peeking sequence: %w", asStorageError(err))
	}
	if ref.Sequence > last {
		return fmt.Errorf("%w: %s has not been issued", domain.ErrInvalidReferenceNumber, ref)
	}
	return nil
}

// resolveScope はコードの書式とカタログ登録を確認し、ScopeKeyを組み立てる。
func (s *RefNumberService) resolveScope(ctx context.Context, req GenerateRequest) (domain.ScopeKey, error) {
	when := req.Date
	if when.IsZero() {
		when = s.now()
	}
	scope, err := domain.NewScopeKey(req.DocumentType, req.OrgUnit, when)
	if err != nil {
		return domain.ScopeKey{}, err
	}
	if err := s.checkCatalog(ctx, scope.DocumentType, scope.OrgUnit); err != nil {
		return domain.ScopeKey{}, err
	}
	return scope, nil
}

func (s *RefNumberService) checkCatalog(ctx context.Context, documentType, orgUnit string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	dt, err := s.catalog.FindDocumentType(ctx, documentType)
	if err != nil {
		return fmt.Errorf("finding document type: %w", asStorageError(err))
	}
	if dt == nil {
		return fmt.Errorf("%w: document type %q", domain.ErrUnknownScope, documentType)
	}

	ou, err := s.catalog.FindOrgUnit(ctx, orgUnit)
	if err != nil {
		return fmt.Errorf("finding org unit: %w", asStorageError(err))
	}
	if ou == nil {
		return fmt.Errorf("%w: org unit %q", domain.ErrUnknownScope, orgUnit)
	}
	return nil
}

// withTimeout は timeout が正の場合のみ期限付きコンテキストを返す。
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// asStorageError は期限切れやキャンセルをErrStorageUnavailableとして扱う。
func asStorageError(err error) error {
	if errors.Is(err, domain.ErrStorageUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	return err
}
