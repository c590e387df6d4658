package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
	"github.com/devnolife/sakti-dashboard-sub012/internal/middleware"
	"github.com/devnolife/sakti-dashboard-sub012/internal/usecase"
	"github.com/devnolife/sakti-dashboard-sub012/pkg/httputil"
)

// DocumentHandler は署名セッションのHTTPハンドラを提供する。
type DocumentHandler struct {
	service *usecase.SigningService
}

// NewDocumentHandler は新しいDocumentHandlerを生成する。
func NewDocumentHandler(service *usecase.SigningService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// InitiateRequest は署名開始リクエストの形式。content は任意のJSON値。
type InitiateRequest struct {
	DocumentID      string          `json:"document_id,omitempty"`
	DocumentType    string          `json:"document_type"`
	OrgUnit         string          `json:"org_unit"`
	Date            string          `json:"date,omitempty"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	ContentDigest   string          `json:"content_digest,omitempty"`
	Content         json.RawMessage `json:"content,omitempty"`
	Roles           []string        `json:"roles,omitempty"`
}

// SignRequest は署名リクエストの形式。
type SignRequest struct {
	Role   string `json:"role"`
	Signer string `json:"signer"`
}

// SignatureResponse は署名のレスポンス形式。
type SignatureResponse struct {
	Role      string `json:"role"`
	Signer    string `json:"signer"`
	KeyID     string `json:"key_id"`
	Algorithm string `json:"algorithm"`
	SignedAt  string `json:"signed_at"`
}

// SessionResponse は署名セッションのレスポンス形式。
type SessionResponse struct {
	DocumentID        string              `json:"document_id"`
	DocumentType      string              `json:"document_type"`
	OrgUnit           string              `json:"org_unit"`
	ReferenceNumber   string              `json:"reference_number,omitempty"`
	ContentDigest     string              `json:"content_digest"`
	State             string              `json:"state"`
	Roles             []string            `json:"roles"`
	NextRole          string              `json:"next_role,omitempty"`
	Pending           bool                `json:"pending"`
	FailureReason     string              `json:"failure_reason,omitempty"`
	Signatures        []SignatureResponse `json:"signatures"`
	CompletedAt       string              `json:"completed_at,omitempty"`
	VerificationToken string              `json:"verification_token,omitempty"`
}

// StatusResponse は署名セッション状態のレスポンス形式。
type StatusResponse struct {
	DocumentID      string   `json:"document_id"`
	ReferenceNumber string   `json:"reference_number,omitempty"`
	State           string   `json:"state"`
	Roles           []string `json:"roles"`
	NextRole        string   `json:"next_role,omitempty"`
	SignedRoles     []string `json:"signed_roles"`
	Pending         bool     `json:"pending"`
	FailureReason   string   `json:"failure_reason,omitempty"`
	CompletedAt     string   `json:"completed_at,omitempty"`
}

// TokenResponse は検証トークンのレスポンス形式。
type TokenResponse struct {
	DocumentID        string `json:"document_id"`
	VerificationToken string `json:"verification_token"`
}

func toSessionResponse(doc *domain.DocumentRecord) SessionResponse {
	status := usecase.NewSessionStatus(doc)
	resp := SessionResponse{
		DocumentID:      doc.ID,
		DocumentType:    doc.DocumentType,
		OrgUnit:         doc.OrgUnit,
		ReferenceNumber: doc.ReferenceNumber,
		ContentDigest:   doc.ContentDigest,
		State:           string(status.State),
		Roles:           status.Roles,
		NextRole:        status.NextRole,
		Pending:         status.Pending,
		FailureReason:   status.FailureReason,
		Signatures:      make([]SignatureResponse, len(doc.Signatures)),
	}
	for i, s := range doc.Signatures {
		resp.Signatures[i] = SignatureResponse{
			Role:      s.Role,
			Signer:    s.Signer,
			KeyID:     s.KeyID,
			Algorithm: s.Algorithm,
			SignedAt:  s.SignedAt.Format(time.RFC3339Nano),
		}
	}
	if doc.CompletedAt != nil {
		resp.CompletedAt = doc.CompletedAt.Format(time.RFC3339Nano)
	}
	return resp
}

// Initiate は文書を登録して署名セッションを開始する。
func (h *DocumentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req InitiateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeBadRequest(r.Context(), w, "INITIATE_SIGNING", "", "INVALID_REQUEST", "invalid request body")
		return
	}
	date, ok := parseDate(req.Date)
	if !ok {
		writeBadRequest(r.Context(), w, "INITIATE_SIGNING", req.DocumentID, "INVALID_DATE", "date must be YYYY-MM-DD")
		return
	}

	doc, err := h.service.Initiate(r.Context(), usecase.InitiateRequest{
		DocumentID:      req.DocumentID,
		DocumentType:    req.DocumentType,
		OrgUnit:         req.OrgUnit,
		Date:            date,
		ReferenceNumber: req.ReferenceNumber,
		ContentDigest:   strings.ToLower(req.ContentDigest),
		Content:         req.Content,
		Roles:           req.Roles,
	})
	if err != nil {
		writeError(r.Context(), w, "INITIATE_SIGNING", req.DocumentID, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "INITIATE_SIGNING", doc.ID, doc.ReferenceNumber, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusCreated, toSessionResponse(doc))
}

// Sign は指定ロールとして文書に署名する。
func (h *DocumentHandler) Sign(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "document_id")

	var req SignRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeBadRequest(r.Context(), w, "SIGN_DOCUMENT", documentID, "INVALID_REQUEST", "invalid request body")
		return
	}

	res, err := h.service.Sign(r.Context(), usecase.SignRequest{
		DocumentID: documentID,
		Role:       req.Role,
		Signer:     req.Signer,
	})
	if err != nil {
		writeError(r.Context(), w, "SIGN_DOCUMENT", documentID, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "SIGN_DOCUMENT", documentID, req.Role, middleware.ResultSuccess)
	resp := toSessionResponse(res.Document)
	resp.VerificationToken = res.Token
	httputil.JSON(w, http.StatusOK, resp)
}

// Status は署名セッションの状態を返す。
func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "document_id")

	status, err := h.service.Status(r.Context(), documentID)
	if err != nil {
		writeError(r.Context(), w, "GET_SESSION_STATUS", documentID, err)
		return
	}
	resp := StatusResponse{
		DocumentID:      status.DocumentID,
		ReferenceNumber: status.ReferenceNumber,
		State:           string(status.State),
		Roles:           status.Roles,
		NextRole:        status.NextRole,
		SignedRoles:     status.SignedRoles,
		Pending:         status.Pending,
		FailureReason:   status.FailureReason,
	}
	if status.CompletedAt != nil {
		resp.CompletedAt = status.CompletedAt.Format(time.RFC3339Nano)
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// Token は完了済み文書の検証トークンを再発行する。
func (h *DocumentHandler) Token(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "document_id")

	token, err := h.service.Token(r.Context(), documentID)
	if err != nil {
		writeError(r.Context(), w, "MINT_TOKEN", documentID, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "MINT_TOKEN", documentID, "", middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, TokenResponse{
		DocumentID:        documentID,
		VerificationToken: token,
	})
}
