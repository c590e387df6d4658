package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
	"github.com/devnolife/sakti-dashboard-sub012/internal/metrics"
)

var tracer = otel.Tracer("github.com/devnolife/sakti-dashboard-sub012/internal/usecase")

// maxTransitionAttempts は楽観ロック競合時の再読み込み回数の上限。
const maxTransitionAttempts = 3

// DocumentRepository は文書のデータアクセスのインターフェース。
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.DocumentRecord) error
	FindByID(ctx context.Context, id string) (*domain.DocumentRecord, error)
	SaveTransition(ctx context.Context, doc *domain.DocumentRecord, expectedVersion int64, appended *domain.SignatureRecord) error
	IncrementVerificationCount(ctx context.Context, id string) (int64, error)
}

// SigningAuthority は署名機関のインターフェース。
type SigningAuthority interface {
	Sign(ctx context.Context, in SignInput) (*domain.SignatureRecord, error)
	PublicKey(ctx context.Context, role string) (*domain.SignerKey, error)
}

// ReferenceAllocator は参照番号の採番インターフェース。
type ReferenceAllocator interface {
	Generate(ctx context.Context, req GenerateRequest) (*domain.ReferenceNumber, error)
	CheckIssued(ctx context.Context, ref *domain.ReferenceNumber) error
}

// TokenEncoder は検証トークンの発行インターフェース。
type TokenEncoder interface {
	Encode(ctx context.Context, payload *domain.VerificationPayload) (string, error)
}

// InitiateRequest は署名セッションの開始リクエスト。
// Content と ContentDigest のどちらか一方は必須。両方あれば一致しなければならない。
type InitiateRequest struct {
	DocumentID      string
	DocumentType    string
	OrgUnit         string
	Date            time.Time
	ReferenceNumber string
	ContentDigest   string
	Content         []byte
	Roles           []string
}

// SignRequest はロールによる署名のリクエスト。
type SignRequest struct {
	DocumentID string
	Role       string
	Signer     string
}

// SignResult は署名の結果。署名で完了した場合のみ Token が設定される。
type SignResult struct {
	Document *domain.DocumentRecord
	Token    string
}

// SessionStatus は署名セッションの状態。放棄されたセッションも Pending として報告する。
type SessionStatus struct {
	DocumentID      string
	ReferenceNumber string
	State           domain.SessionState
	Roles           []string
	NextRole        string
	SignedRoles     []string
	Pending         bool
	FailureReason   string
	CompletedAt     *time.Time
}

// SigningService は複数署名者による順次署名を管理する。
type SigningService struct {
	docs      DocumentRepository
	catalog   ScopeCatalog
	numbers   ReferenceAllocator
	authority SigningAuthority
	tokens    TokenEncoder

	storageTimeout time.Duration
	signerTimeout  time.Duration
}

// NewSigningService は新しいSigningServiceを生成する。
func NewSigningService(
	docs DocumentRepository,
	catalog ScopeCatalog,
	numbers ReferenceAllocator,
	authority SigningAuthority,
	tokens TokenEncoder,
	storageTimeout, signerTimeout time.Duration,
) *SigningService {
	return &SigningService{
		docs:           docs,
		catalog:        catalog,
		numbers:        numbers,
		authority:      authority,
		tokens:         tokens,
		storageTimeout: storageTimeout,
		signerTimeout:  signerTimeout,
	}
}

// Initiate は文書を登録し、参照番号を付与して最初のロールの署名待ちにする。
// 同じIDで generating のまま残った同一内容の文書は再開する。
func (s *SigningService) Initiate(ctx context.Context, req InitiateRequest) (*domain.DocumentRecord, error) {
	ctx, span := tracer.Start(ctx, "SigningService.Initiate")
	defer span.End()

	doc, err := s.initiate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("document.id", doc.ID),
		attribute.String("document.reference_number", doc.ReferenceNumber),
	)
	return doc, nil
}

func (s *SigningService) initiate(ctx context.Context, req InitiateRequest) (*domain.DocumentRecord, error) {
	digest, content, err := resolveDigest(req)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateCode(req.DocumentType); err != nil {
		return nil, err
	}
	if err := domain.ValidateCode(req.OrgUnit); err != nil {
		return nil, err
	}

	roles, err := s.resolveRoles(ctx, req)
	if err != nil {
		return nil, err
	}

	var supplied *domain.ReferenceNumber
	if req.ReferenceNumber != "" {
		supplied, err = domain.ParseReferenceNumber(req.ReferenceNumber)
		if err != nil {
			return nil, err
		}
		if supplied.Scope.DocumentType != req.DocumentType || supplied.Scope.OrgUnit != req.OrgUnit {
			return nil, fmt.Errorf("%w: %q does not belong to %s/%s", domain.ErrInvalidReferenceNumber, req.ReferenceNumber, req.DocumentType, req.OrgUnit)
		}
		if err := s.numbers.CheckIssued(ctx, supplied); err != nil {
			return nil, err
		}
	}

	id := req.DocumentID
	if id == "" {
		id = uuid.NewString()
	}
	doc, err := domain.NewDocumentRecord(id, req.DocumentType, req.OrgUnit, digest, content, roles)
	if err != nil {
		return nil, err
	}

	doc, err = s.createOrResume(ctx, doc)
	if err != nil {
		return nil, err
	}

	ref := req.ReferenceNumber
	if supplied == nil {
		allocated, err := s.numbers.Generate(ctx, GenerateRequest{
			DocumentType: req.DocumentType,
			OrgUnit:      req.OrgUnit,
			Date:         req.Date,
		})
		if err != nil {
			return nil, fmt.Errorf("allocating reference number: %w", err)
		}
		ref = allocated.String()
	}

	expected := doc.Version
	if err := doc.AttachReferenceNumber(ref); err != nil {
		return nil, err
	}
	if err := s.save(ctx, doc, expected, nil); err != nil {
		if errors.Is(err, domain.ErrSessionConflict) {
			// 並行した再開要求が先に参照番号を付与した
			return s.reload(ctx, doc.ID)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "signing session initiated",
		"document_id", doc.ID,
		"reference_number", doc.ReferenceNumber,
		"roles", doc.Session.Roles,
	)
	return doc, nil
}

// resolveDigest はリクエストから内容ダイジェストと保存用の正規化済み内容を決める。
func resolveDigest(req InitiateRequest) (string, []byte, error) {
	if len(req.Content) == 0 {
		if req.ContentDigest == "" {
			return "", nil, fmt.Errorf("%w: content or content digest is required", domain.ErrInvalidDigest)
		}
		if err := domain.ValidateDigest(req.ContentDigest); err != nil {
			return "", nil, err
		}
		return req.ContentDigest, nil, nil
	}

	canonical, digest, err := CanonicalizeContent(req.Content)
	if err != nil {
		return "", nil, err
	}
	if req.ContentDigest != "" && req.ContentDigest != digest {
		return "", nil, domain.ErrDigestMismatch
	}
	return digest, canonical, nil
}

// resolveRoles は署名要件を決め、全ロールが登録済みの署名者であることを確認する。
func (s *SigningService) resolveRoles(ctx context.Context, req InitiateRequest) ([]string, error) {
	sctx, cancel := withTimeout(ctx, s.storageTimeout)
	defer cancel()

	dt, err := s.catalog.FindDocumentType(sctx, req.DocumentType)
	if err != nil {
		return nil, fmt.Errorf("finding document type: %w", asStorageError(err))
	}
	if dt == nil {
		return nil, fmt.Errorf("%w: document type %q", domain.ErrUnknownScope, req.DocumentType)
	}
	ou, err := s.catalog.FindOrgUnit(sctx, req.OrgUnit)
	if err != nil {
		return nil, fmt.Errorf("finding org unit: %w", asStorageError(err))
	}
	if ou == nil {
		return nil, fmt.Errorf("%w: org unit %q", domain.ErrUnknownScope, req.OrgUnit)
	}

	roles := req.Roles
	if len(roles) == 0 {
		roles = dt.RequiredRoles
	}
	if err := domain.ValidateRoles(roles); err != nil {
		return nil, err
	}
	for _, role := range roles {
		if _, err := s.authority.PublicKey(sctx, role); err != nil {
			return nil, asStorageError(err)
		}
	}
	return roles, nil
}

func (s *SigningService) createOrResume(ctx context.Context, doc *domain.DocumentRecord) (*domain.DocumentRecord, error) {
	sctx, cancel := withTimeout(ctx, s.storageTimeout)
	defer cancel()

	err := s.docs.Create(sctx, doc)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, domain.ErrDocumentAlreadyExists) {
		return nil, fmt.Errorf("creating document: %w", asStorageError(err))
	}

	existing, err := s.docs.FindByID(sctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("finding document: %w", asStorageError(err))
	}
	if existing == nil ||
		existing.Session.State != domain.SessionStateGenerating ||
		existing.ContentDigest != doc.ContentDigest ||
		existing.DocumentType != doc.DocumentType ||
		existing.OrgUnit != doc.OrgUnit ||
		!slices.Equal(existing.Session.Roles, doc.Session.Roles) {
		return nil, fmt.Errorf("%w: %s", domain.ErrDocumentAlreadyExists, doc.ID)
	}
	return existing, nil
}

// Sign は次に署名すべきロールとして署名する。最後のロールの署名で完了し、検証トークンを発行する。
func (s *SigningService) Sign(ctx context.Context, req SignRequest) (*SignResult, error) {
	ctx, span := tracer.Start(ctx, "SigningService.Sign")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.id", req.DocumentID),
		attribute.String("signer.role", req.Role),
	)

	res, err := s.sign(ctx, req)
	if err != nil {
		metrics.RecordSignature(req.Role, signResultLabel(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	metrics.RecordSignature(req.Role, "signed")
	return res, nil
}

func (s *SigningService) sign(ctx context.Context, req SignRequest) (*SignResult, error) {
	if req.Signer == "" {
		return nil, fmt.Errorf("%w: signer identity is required", domain.ErrInvalidSigningRequirement)
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		doc, err := s.reload(ctx, req.DocumentID)
		if err != nil {
			return nil, err
		}
		if err := doc.CheckSigner(req.Role); err != nil {
			return nil, err
		}

		rec, err := s.callAuthority(ctx, doc, req)
		if err != nil {
			return nil, err
		}

		expected := doc.Version
		completed, err := doc.AppendSignature(*rec)
		if err != nil {
			return nil, err
		}
		err = s.save(ctx, doc, expected, rec)
		if errors.Is(err, domain.ErrSessionConflict) || errors.Is(err, domain.ErrAlreadySigned) {
			// 並行した署名に先を越された。再読み込みして判定し直す
			continue
		}
		if err != nil {
			return nil, err
		}

		slog.InfoContext(ctx, "document signed",
			"document_id", doc.ID,
			"role", req.Role,
			"completed", completed,
		)

		result := &SignResult{Document: doc}
		if completed {
			metrics.RecordDocumentCompleted(doc.DocumentType)
			result.Token, err = s.mint(ctx, doc)
			if err != nil {
				// 署名は確定済み。トークンは後から再発行できる
				slog.ErrorContext(ctx, "failed to mint verification token",
					"document_id", doc.ID,
					"error", err,
				)
			}
		}
		return result, nil
	}
	return nil, fmt.Errorf("%w: document %s", domain.ErrSessionConflict, req.DocumentID)
}

// callAuthority は署名機関を呼び出す。期限切れは状態を変えずに再試行可能なエラーとし、
// それ以外の失敗はセッションを failed にする。
func (s *SigningService) callAuthority(ctx context.Context, doc *domain.DocumentRecord, req SignRequest) (*domain.SignatureRecord, error) {
	sctx, cancel := withTimeout(ctx, s.signerTimeout)
	defer cancel()

	start := time.Now()
	rec, err := s.authority.Sign(sctx, SignInput{
		DocumentID: doc.ID,
		Role:       req.Role,
		Signer:     req.Signer,
		Digest:     doc.ContentDigest,
	})
	metrics.ObserveSignerDuration(time.Since(start))
	if err == nil {
		return rec, nil
	}

	if isRetryableSignerError(sctx, err) {
		return nil, fmt.Errorf("%w: signature authority: %v", domain.ErrStorageUnavailable, err)
	}

	reason := fmt.Sprintf("signature authority failed for role %s: %v", req.Role, err)
	expected := doc.Version
	if ferr := doc.Fail(reason); ferr == nil {
		if serr := s.save(ctx, doc, expected, nil); serr != nil {
			// 記録できなかった場合、文書は署名待ちのまま残る
			slog.ErrorContext(ctx, "failed to record signing failure",
				"document_id", doc.ID,
				"error", serr,
			)
			return nil, fmt.Errorf("recording signing failure: %w", serr)
		}
	}
	slog.WarnContext(ctx, "signing session failed",
		"document_id", doc.ID,
		"role", req.Role,
		"error", err,
	)
	return nil, fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
}

// Status は署名セッションの状態を返す。
func (s *SigningService) Status(ctx context.Context, documentID string) (*SessionStatus, error) {
	doc, err := s.reload(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return NewSessionStatus(doc), nil
}

// NewSessionStatus は文書レコードからセッション状態を組み立てる。
func NewSessionStatus(doc *domain.DocumentRecord) *SessionStatus {
	st := &SessionStatus{
		DocumentID:      doc.ID,
		ReferenceNumber: doc.ReferenceNumber,
		State:           doc.Session.State,
		Roles:           doc.Session.Roles,
		SignedRoles:     make([]string, 0, len(doc.Signatures)),
		Pending:         doc.Session.Pending(),
		FailureReason:   doc.Session.FailureReason,
		CompletedAt:     doc.CompletedAt,
	}
	if next, ok := doc.Session.NextRole(); ok {
		st.NextRole = next
	}
	for _, sig := range doc.Signatures {
		st.SignedRoles = append(st.SignedRoles, sig.Role)
	}
	return st
}

// Token は完了済み文書の検証トークンを現在の鍵世代で再発行する。
func (s *SigningService) Token(ctx context.Context, documentID string) (string, error) {
	doc, err := s.reload(ctx, documentID)
	if err != nil {
		return "", err
	}
	if doc.Session.State != domain.SessionStateCompleted {
		return "", fmt.Errorf("%w: document %s is %s", domain.ErrInvalidTransition, doc.ID, doc.Session.State)
	}
	return s.mint(ctx, doc)
}

func (s *SigningService) mint(ctx context.Context, doc *domain.DocumentRecord) (string, error) {
	payload, err := domain.NewVerificationPayload(doc)
	if err != nil {
		return "", err
	}
	token, err := s.tokens.Encode(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("encoding token: %w", err)
	}
	return token, nil
}

func (s *SigningService) reload(ctx context.Context, documentID string) (*domain.DocumentRecord, error) {
	sctx, cancel := withTimeout(ctx, s.storageTimeout)
	defer cancel()

	doc, err := s.docs.FindByID(sctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("finding document: %w", asStorageError(err))
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, documentID)
	}
	return doc, nil
}

func (s *SigningService) save(ctx context.Context, doc *domain.DocumentRecord, expected int64, appended *domain.SignatureRecord) error {
	sctx, cancel := withTimeout(ctx, s.storageTimeout)
	defer cancel()

	if err := s.docs.SaveTransition(sctx, doc, expected, appended); err != nil {
		return asStorageError(err)
	}
	return nil
}

func signResultLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrOutOfOrderSignature):
		return "out_of_order"
	case errors.Is(err, domain.ErrAlreadySigned):
		return "already_signed"
	case errors.Is(err, domain.ErrSigningFailed):
		return "failed"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "unavailable"
	default:
		return "rejected"
	}
}
