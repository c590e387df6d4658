package handler

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
	"github.com/devnolife/sakti-dashboard-sub012/internal/middleware"
	"github.com/devnolife/sakti-dashboard-sub012/internal/usecase"
	"github.com/devnolife/sakti-dashboard-sub012/pkg/httputil"
)

// SignerHandler は署名者ロールの鍵のHTTPハンドラを提供する。
type SignerHandler struct {
	authority *usecase.SignatureAuthority
}

// NewSignerHandler は新しいSignerHandlerを生成する。
func NewSignerHandler(authority *usecase.SignatureAuthority) *SignerHandler {
	return &SignerHandler{authority: authority}
}

// RegisterSignerRequest は署名者登録リクエストの形式。
type RegisterSignerRequest struct {
	Role string `json:"role"`
}

// SignerResponse は署名者の公開鍵情報のレスポンス形式。
type SignerResponse struct {
	KeyID     string `json:"key_id"`
	Role      string `json:"role"`
	Algorithm string `json:"algorithm"`
	PublicKey string `json:"public_key"`
	CreatedAt string `json:"created_at"`
}

// SignerListResponse は署名者一覧のレスポンス形式。
type SignerListResponse struct {
	Signers []SignerResponse `json:"signers"`
}

func toSignerResponse(k *domain.SignerKey) SignerResponse {
	return SignerResponse{
		KeyID:     k.ID,
		Role:      k.Role,
		Algorithm: k.Algorithm,
		PublicKey: base64.StdEncoding.EncodeToString(k.PublicKey),
		CreatedAt: k.CreatedAt.Format(time.RFC3339),
	}
}

// Register はロールの鍵ペアを生成して登録する。
func (h *SignerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterSignerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeBadRequest(r.Context(), w, "REGISTER_SIGNER", "", "INVALID_REQUEST", "invalid request body")
		return
	}

	key, err := h.authority.RegisterSigner(r.Context(), req.Role)
	if err != nil {
		writeError(r.Context(), w, "REGISTER_SIGNER", req.Role, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "REGISTER_SIGNER", key.Role, key.ID, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusCreated, toSignerResponse(key))
}

// Get はロールの公開鍵を返す。
func (h *SignerHandler) Get(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")

	key, err := h.authority.PublicKey(r.Context(), role)
	if err != nil {
		writeError(r.Context(), w, "GET_SIGNER", role, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toSignerResponse(key))
}

// List は登録済みの署名者一覧を返す。
func (h *SignerHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.authority.ListSigners(r.Context())
	if err != nil {
		writeError(r.Context(), w, "LIST_SIGNERS", "", err)
		return
	}

	resp := SignerListResponse{Signers: make([]SignerResponse, len(keys))}
	for i, k := range keys {
		resp.Signers[i] = toSignerResponse(k)
	}
	httputil.JSON(w, http.StatusOK, resp)
}
