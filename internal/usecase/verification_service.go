package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
	"github.com/devnolife/sakti-dashboard-sub012/internal/metrics"
)

// TokenDecoder は検証トークンの解読インターフェース。
type TokenDecoder interface {
	Decode(ctx context.Context, token string) (*domain.VerificationPayload, error)
}

// SignatureChecker は署名レコードの検証インターフェース。
type SignatureChecker interface {
	CheckSignature(ctx context.Context, rec *domain.SignatureRecord, digest string) (bool, error)
}

// VerificationService は公開検証を提供する。
// 呼び出し側にはエラーを返さず、判定結果のみを返す。
type VerificationService struct {
	docs           DocumentRepository
	tokens         TokenDecoder
	signatures     SignatureChecker
	storageTimeout time.Duration
}

// NewVerificationService は新しいVerificationServiceを生成する。
func NewVerificationService(docs DocumentRepository, tokens TokenDecoder, signatures SignatureChecker, storageTimeout time.Duration) *VerificationService {
	return &VerificationService{
		docs:           docs,
		tokens:         tokens,
		signatures:     signatures,
		storageTimeout: storageTimeout,
	}
}

// Verify はトークンを解読し、文書レコードと署名を照合する。
// valid の場合のみ検証回数を1増やし、文書情報を開示する。
func (s *VerificationService) Verify(ctx context.Context, token string) *domain.VerificationResult {
	ctx, span := tracer.Start(ctx, "VerificationService.Verify")
	defer span.End()

	res := s.verify(ctx, token)
	span.SetAttributes(attribute.String("verification.verdict", string(res.Verdict)))
	metrics.RecordVerification(string(res.Verdict))

	attrs := []any{"verdict", res.Verdict}
	if res.Document != nil {
		attrs = append(attrs, "document_id", res.Document.DocumentID)
	}
	if res.Reason != "" {
		attrs = append(attrs, "reason", res.Reason)
	}
	slog.InfoContext(ctx, "verification", attrs...)
	return res
}

func (s *VerificationService) verify(ctx context.Context, token string) *domain.VerificationResult {
	payload, err := s.tokens.Decode(ctx, token)
	if err != nil {
		return rejected(domain.VerdictInvalid, err.Error())
	}

	doc, err := s.find(ctx, payload.DocumentID)
	if err != nil {
		return rejected(domain.VerdictInvalid, err.Error())
	}
	if doc == nil {
		return rejected(domain.VerdictNotFound, "document "+payload.DocumentID+" not found")
	}

	if reason := compareRecord(payload, doc); reason != "" {
		return rejected(domain.VerdictTampered, reason)
	}
	if doc.Content != nil && DigestOf(doc.Content) != doc.ContentDigest {
		return rejected(domain.VerdictTampered, "stored content does not match digest")
	}

	for i := range doc.Signatures {
		sig := &doc.Signatures[i]
		if sig.Role != doc.Session.Roles[i] {
			return rejected(domain.VerdictTampered, fmt.Sprintf("signature %d is for role %s", i, sig.Role))
		}
		ok, err := s.checkSignature(ctx, sig, doc.ContentDigest)
		if err != nil {
			return rejected(domain.VerdictInvalid, err.Error())
		}
		if !ok {
			return rejected(domain.VerdictTampered, "signature check failed for role "+sig.Role)
		}
	}

	count, err := s.increment(ctx, doc.ID)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return rejected(domain.VerdictNotFound, err.Error())
		}
		return rejected(domain.VerdictInvalid, err.Error())
	}

	return &domain.VerificationResult{
		Verdict:  domain.VerdictValid,
		Document: disclose(doc, count),
	}
}

// compareRecord はトークンの内容と保存済みレコードの不一致理由を返す。一致すれば空文字。
func compareRecord(payload *domain.VerificationPayload, doc *domain.DocumentRecord) string {
	switch {
	case doc.Session.State != domain.SessionStateCompleted || doc.CompletedAt == nil:
		return "document is " + string(doc.Session.State)
	case len(doc.Signatures) != len(doc.Session.Roles):
		return "signature count does not match signing requirement"
	case payload.ReferenceNumber != doc.ReferenceNumber:
		return "reference number mismatch"
	case payload.ContentDigest != doc.ContentDigest:
		return "content digest mismatch"
	case !slices.Equal(payload.Signers, doc.SignerIdentities()):
		return "signer mismatch"
	case payload.CompletedAt != doc.CompletedAt.UTC().Unix():
		return "completion time mismatch"
	}
	return ""
}

func disclose(doc *domain.DocumentRecord, count int64) *domain.DisclosedDocument {
	sigs := make([]domain.DisclosedSignature, len(doc.Signatures))
	for i, s := range doc.Signatures {
		sigs[i] = domain.DisclosedSignature{
			Role:     s.Role,
			Signer:   s.Signer,
			SignedAt: s.SignedAt,
		}
	}
	return &domain.DisclosedDocument{
		DocumentID:        doc.ID,
		ReferenceNumber:   doc.ReferenceNumber,
		DocumentType:      doc.DocumentType,
		OrgUnit:           doc.OrgUnit,
		ContentDigest:     doc.ContentDigest,
		Signatures:        sigs,
		CompletedAt:       *doc.CompletedAt,
		VerificationCount: count,
	}
}

func rejected(verdict domain.Verdict, reason string) *domain.VerificationResult {
	return &domain.VerificationResult{Verdict: verdict, Reason: reason}
}

func (s *VerificationService) find(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	ctx, cancel := withTimeout(ctx, s.storageTimeout)
	defer cancel()
	return s.docs.FindByID(ctx, id)
}

func (s *VerificationService) checkSignature(ctx context.Context, sig *domain.SignatureRecord, digest string) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.storageTimeout)
	defer cancel()
	return s.signatures.CheckSignature(ctx, sig, digest)
}

func (s *VerificationService) increment(ctx context.Context, id string) (int64, error) {
	ctx, cancel := withTimeout(ctx, s.storageTimeout)
	defer cancel()
	return s.docs.IncrementVerificationCount(ctx, id)
}
