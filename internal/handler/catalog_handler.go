package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
	"github.com/devnolife/sakti-dashboard-sub012/internal/middleware"
	"github.com/devnolife/sakti-dashboard-sub012/internal/usecase"
	"github.com/devnolife/sakti-dashboard-sub012/pkg/httputil"
)

// CatalogHandler は文書種別と組織単位のHTTPハンドラを提供する。
type CatalogHandler struct {
	service *usecase.CatalogService
}

// NewCatalogHandler は新しいCatalogHandlerを生成する。
func NewCatalogHandler(service *usecase.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// DocumentTypeRequest は文書種別登録リクエストの形式。
type DocumentTypeRequest struct {
	Name          string   `json:"name"`
	RequiredRoles []string `json:"required_roles"`
}

// DocumentTypeResponse は文書種別のレスポンス形式。
type DocumentTypeResponse struct {
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	RequiredRoles []string `json:"required_roles"`
	UpdatedAt     string   `json:"updated_at"`
}

// OrgUnitRequest は組織単位登録リクエストの形式。
type OrgUnitRequest struct {
	Name string `json:"name"`
}

// OrgUnitResponse は組織単位のレスポンス形式。
type OrgUnitResponse struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	UpdatedAt string `json:"updated_at"`
}

func toDocumentTypeResponse(dt *domain.DocumentType) DocumentTypeResponse {
	return DocumentTypeResponse{
		Code:          dt.Code,
		Name:          dt.Name,
		RequiredRoles: dt.RequiredRoles,
		UpdatedAt:     dt.UpdatedAt.Format(time.RFC3339),
	}
}

func toOrgUnitResponse(ou *domain.OrgUnit) OrgUnitResponse {
	return OrgUnitResponse{
		Code:      ou.Code,
		Name:      ou.Name,
		UpdatedAt: ou.UpdatedAt.Format(time.RFC3339),
	}
}

// PutDocumentType は文書種別を登録または更新する。
func (h *CatalogHandler) PutDocumentType(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req DocumentTypeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeBadRequest(r.Context(), w, "PUT_DOCUMENT_TYPE", code, "INVALID_REQUEST", "invalid request body")
		return
	}

	dt := &domain.DocumentType{Code: code, Name: req.Name, RequiredRoles: req.RequiredRoles}
	if err := h.service.PutDocumentType(r.Context(), dt); err != nil {
		writeError(r.Context(), w, "PUT_DOCUMENT_TYPE", code, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "PUT_DOCUMENT_TYPE", code, "", middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, toDocumentTypeResponse(dt))
}

// GetDocumentType は文書種別を返す。
func (h *CatalogHandler) GetDocumentType(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	dt, err := h.service.GetDocumentType(r.Context(), code)
	if err != nil {
		writeError(r.Context(), w, "GET_DOCUMENT_TYPE", code, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toDocumentTypeResponse(dt))
}

// ListDocumentTypes は文書種別の一覧を返す。
func (h *CatalogHandler) ListDocumentTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.ListDocumentTypes(r.Context())
	if err != nil {
		writeError(r.Context(), w, "LIST_DOCUMENT_TYPES", "", err)
		return
	}

	resp := make([]DocumentTypeResponse, len(types))
	for i, dt := range types {
		resp[i] = toDocumentTypeResponse(dt)
	}
	httputil.JSON(w, http.StatusOK, map[string]interface{}{"document_types": resp})
}

// PutOrgUnit は組織単位を登録または更新する。
func (h *CatalogHandler) PutOrgUnit(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req OrgUnitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeBadRequest(r.Context(), w, "PUT_ORG_UNIT", code, "INVALID_REQUEST", "invalid request body")
		return
	}

	ou := &domain.OrgUnit{Code: code, Name: req.Name}
	if err := h.service.PutOrgUnit(r.Context(), ou); err != nil {
		writeError(r.Context(), w, "PUT_ORG_UNIT", code, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "PUT_ORG_UNIT", code, "", middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, toOrgUnitResponse(ou))
}

// GetOrgUnit は組織単位を返す。
func (h *CatalogHandler) GetOrgUnit(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	ou, err := h.service.GetOrgUnit(r.Context(), code)
	if err != nil {
		writeError(r.Context(), w, "GET_ORG_UNIT", code, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toOrgUnitResponse(ou))
}

// ListOrgUnits は組織単位の一覧を返す。
func (h *CatalogHandler) ListOrgUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.service.ListOrgUnits(r.Context())
	if err != nil {
		writeError(r.Context(), w, "LIST_ORG_UNITS", "", err)
		return
	}

	resp := make([]OrgUnitResponse, len(units))
	for i, ou := range units {
		resp[i] = toOrgUnitResponse(ou)
	}
	httputil.JSON(w, http.StatusOK, map[string]interface{}{"org_units": resp})
}
