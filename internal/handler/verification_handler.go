package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
	"github.com/devnolife/sakti-dashboard-sub012/internal/usecase"
	"github.com/devnolife/sakti-dashboard-sub012/pkg/httputil"
)

// VerificationHandler は公開検証のHTTPハンドラを提供する。
// 判定結果は常に200で返し、エラー詳細は公開しない。
type VerificationHandler struct {
	service *usecase.VerificationService
}

// NewVerificationHandler は新しいVerificationHandlerを生成する。
func NewVerificationHandler(service *usecase.VerificationService) *VerificationHandler {
	return &VerificationHandler{service: service}
}

// VerifyRequest は検証リクエストの形式。
type VerifyRequest struct {
	Token string `json:"token"`
}

// DisclosedSignatureResponse は開示する署名情報。
type DisclosedSignatureResponse struct {
	Role     string `json:"role"`
	Signer   string `json:"signer"`
	SignedAt string `json:"signed_at"`
}

// DisclosedDocumentResponse は valid の場合に開示する文書情報。
type DisclosedDocumentResponse struct {
	DocumentID        string                       `json:"document_id"`
	ReferenceNumber   string                       `json:"reference_number"`
	DocumentType      string                       `json:"document_type"`
	OrgUnit           string                       `json:"org_unit"`
	ContentDigest     string                       `json:"content_digest"`
	Signatures        []DisclosedSignatureResponse `json:"signatures"`
	CompletedAt       string                       `json:"completed_at"`
	VerificationCount int64                        `json:"verification_count"`
}

// VerifyResponse は検証結果のレスポンス形式。
type VerifyResponse struct {
	Status   string                     `json:"status"`
	Document *DisclosedDocumentResponse `json:"document,omitempty"`
}

func toVerifyResponse(res *domain.VerificationResult) VerifyResponse {
	resp := VerifyResponse{Status: string(res.Verdict)}
	if res.Verdict != domain.VerdictValid || res.Document == nil {
		return resp
	}

	d := res.Document
	doc := &DisclosedDocumentResponse{
		DocumentID:        d.DocumentID,
		ReferenceNumber:   d.ReferenceNumber,
		DocumentType:      d.DocumentType,
		OrgUnit:           d.OrgUnit,
		ContentDigest:     d.ContentDigest,
		Signatures:        make([]DisclosedSignatureResponse, len(d.Signatures)),
		CompletedAt:       d.CompletedAt.Format(time.RFC3339),
		VerificationCount: d.VerificationCount,
	}
	for i, s := range d.Signatures {
		doc.Signatures[i] = DisclosedSignatureResponse{
			Role:     s.Role,
			Signer:   s.Signer,
			SignedAt: s.SignedAt.Format(time.RFC3339),
		}
	}
	resp.Document = doc
	return resp
}

// VerifyPost はボディで渡されたトークンを検証する。
func (h *VerificationHandler) VerifyPost(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.JSON(w, http.StatusOK, VerifyResponse{Status: string(domain.VerdictInvalid)})
		return
	}
	httputil.JSON(w, http.StatusOK, toVerifyResponse(h.service.Verify(r.Context(), req.Token)))
}

// VerifyGet はパスで渡されたトークンを検証する。QRコードのURLから使う。
func (h *VerificationHandler) VerifyGet(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	httputil.JSON(w, http.StatusOK, toVerifyResponse(h.service.Verify(r.Context(), token)))
}
