// Package handler はHTTPハンドラを提供する。
package handler

import (
	"net/http"
	"time"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
	"github.com/devnolife/sakti-dashboard-sub012/internal/middleware"
	"github.com/devnolife/sakti-dashboard-sub012/internal/usecase"
	"github.com/devnolife/sakti-dashboard-sub012/pkg/httputil"
)

// RefNumberHandler は参照番号のHTTPハンドラを提供する。
type RefNumberHandler struct {
	service *usecase.RefNumberService
}

// NewRefNumberHandler は新しいRefNumberHandlerを生成する。
func NewRefNumberHandler(service *usecase.RefNumberService) *RefNumberHandler {
	return &RefNumberHandler{service: service}
}

// RefNumberRequest は採番リクエストの形式。Date は YYYY-MM-DD で、省略時は当日。
type RefNumberRequest struct {
	DocumentType string `json:"document_type"`
	OrgUnit      string `json:"org_unit"`
	Date         string `json:"date,omitempty"`
}

// RefNumberResponse は参照番号のレスポンス形式。
type RefNumberResponse struct {
	ReferenceNumber string `json:"reference_number"`
	Sequence        int64  `json:"sequence"`
	DocumentType    string `json:"document_type"`
	OrgUnit         string `json:"org_unit"`
	Month           string `json:"month"`
	HijriYear       int    `json:"hijri_year"`
	Year            int    `json:"year"`
}

func toRefNumberResponse(ref *domain.ReferenceNumber) RefNumberResponse {
	return RefNumberResponse{
		ReferenceNumber: ref.String(),
		Sequence:        ref.Sequence,
		DocumentType:    ref.Scope.DocumentType,
		OrgUnit:         ref.Scope.OrgUnit,
		Month:           domain.RomanMonth(ref.Scope.Month),
		HijriYear:       ref.Scope.HijriYear,
		Year:            ref.Scope.Year,
	}
}

// parseDate は YYYY-MM-DD を解析する。空文字は zero 値。
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (h *RefNumberHandler) decode(w http.ResponseWriter, r *http.Request, operation string) (usecase.GenerateRequest, bool) {
	var req RefNumberRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeBadRequest(r.Context(), w, operation, "", "INVALID_REQUEST", "invalid request body")
		return usecase.GenerateRequest{}, false
	}
	date, ok := parseDate(req.Date)
	if !ok {
		writeBadRequest(r.Context(), w, operation, req.DocumentType+"/"+req.OrgUnit, "INVALID_DATE", "date must be YYYY-MM-DD")
		return usecase.GenerateRequest{}, false
	}
	return usecase.GenerateRequest{
		DocumentType: req.DocumentType,
		OrgUnit:      req.OrgUnit,
		Date:         date,
	}, true
}

// Allocate は参照番号を払い出す。
func (h *RefNumberHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r, "ALLOCATE_REFERENCE_NUMBER")
	if !ok {
		return
	}
	subject := req.DocumentType + "/" + req.OrgUnit

	ref, err := h.service.Generate(r.Context(), req)
	if err != nil {
		writeError(r.Context(), w, "ALLOCATE_REFERENCE_NUMBER", subject, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "ALLOCATE_REFERENCE_NUMBER", subject, ref.String(), middleware.ResultSuccess)
	httputil.JSON(w, http.StatusCreated, toRefNumberResponse(ref))
}

// Preview は次に払い出される参照番号を返す。カウンタは進めない。
func (h *RefNumberHandler) Preview(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r, "PREVIEW_REFERENCE_NUMBER")
	if !ok {
		return
	}

	ref, err := h.service.Preview(r.Context(), req)
	if err != nil {
		writeError(r.Context(), w, "PREVIEW_REFERENCE_NUMBER", req.DocumentType+"/"+req.OrgUnit, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toRefNumberResponse(ref))
}
