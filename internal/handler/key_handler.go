package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
	"github.com/devnolife/sakti-dashboard-sub012/internal/middleware"
	"github.com/devnolife/sakti-dashboard-sub012/internal/usecase"
	"github.com/devnolife/sakti-dashboard-sub012/pkg/httputil"
)

// KeyHandler は検証トークン鍵のHTTPハンドラを提供する。鍵素材は返さない。
type KeyHandler struct {
	service *usecase.KeyService
}

// NewKeyHandler は新しいKeyHandlerを生成する。
func NewKeyHandler(service *usecase.KeyService) *KeyHandler {
	return &KeyHandler{service: service}
}

func validateGeneration(genStr string) (uint, error) {
	gen, err := strconv.ParseUint(genStr, 10, 32)
	if err != nil || gen < 1 {
		return 0, domain.ErrInvalidGeneration
	}
	return uint(gen), nil
}

// KeyMetadataResponse は鍵メタデータのレスポンス形式。
type KeyMetadataResponse struct {
	Generation uint   `json:"generation"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}

// KeyListResponse は鍵一覧のレスポンス形式。
type KeyListResponse struct {
	Keys []KeyMetadataResponse `json:"keys"`
}

func toKeyMetadataResponse(m *domain.TokenKeyMetadata) KeyMetadataResponse {
	return KeyMetadataResponse{
		Generation: m.Generation,
		Status:     string(m.Status),
		CreatedAt:  m.CreatedAt.Format(time.RFC3339),
	}
}

func generationString(g uint) string {
	return strconv.FormatUint(uint64(g), 10)
}

// CreateKey は最初のトークン鍵を生成する。
func (h *KeyHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	metadata, err := h.service.CreateKey(r.Context())
	if err != nil {
		writeError(r.Context(), w, "CREATE_TOKEN_KEY", "", err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "CREATE_TOKEN_KEY", generationString(metadata.Generation), "", middleware.ResultSuccess)
	httputil.JSON(w, http.StatusCreated, toKeyMetadataResponse(metadata))
}

// RotateKey は新しい世代の鍵を生成する。以前の世代は無効化するまで検証に使える。
func (h *KeyHandler) RotateKey(w http.ResponseWriter, r *http.Request) {
	metadata, err := h.service.RotateKey(r.Context())
	if err != nil {
		writeError(r.Context(), w, "ROTATE_TOKEN_KEY", "", err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "ROTATE_TOKEN_KEY", generationString(metadata.Generation), "", middleware.ResultSuccess)
	httputil.JSON(w, http.StatusCreated, toKeyMetadataResponse(metadata))
}

// ListKeys は鍵一覧を取得する。
func (h *KeyHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.service.ListKeys(r.Context())
	if err != nil {
		writeError(r.Context(), w, "LIST_TOKEN_KEYS", "", err)
		return
	}

	response := KeyListResponse{
		Keys: make([]KeyMetadataResponse, len(keys)),
	}
	for i, k := range keys {
		response.Keys[i] = toKeyMetadataResponse(k)
	}
	httputil.JSON(w, http.StatusOK, response)
}

// DisableKey は鍵を無効化する。その世代で発行したトークンは invalid になる。
func (h *KeyHandler) DisableKey(w http.ResponseWriter, r *http.Request) {
	genStr := chi.URLParam(r, "generation")
	generation, err := validateGeneration(genStr)
	if err != nil {
		writeError(r.Context(), w, "DISABLE_TOKEN_KEY", genStr, err)
		return
	}

	if err := h.service.DisableKey(r.Context(), generation); err != nil {
		writeError(r.Context(), w, "DISABLE_TOKEN_KEY", genStr, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "DISABLE_TOKEN_KEY", genStr, "", middleware.ResultSuccess)
	w.WriteHeader(http.StatusAccepted)
}
