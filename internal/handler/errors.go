package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
	"github.com/devnolife/sakti-dashboard-sub012/internal/middleware"
	"github.com/devnolife/sakti-dashboard-sub012/pkg/httputil"
)

// apiError はドメインエラーに対応するHTTPレスポンス。
type apiError struct {
	target  error
	status  int
	code    string
	message string
}

// apiErrors は errors.Is で先頭から照合する。
var apiErrors = []apiError{
	{domain.ErrStorageUnavailable, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "storage is temporarily unavailable, retry later"},
	{domain.ErrInvalidCode, http.StatusBadRequest, "INVALID_CODE", "invalid document type, org unit or role code"},
	{domain.ErrInvalidReferenceNumber, http.StatusBadRequest, "INVALID_REFERENCE_NUMBER", "invalid reference number"},
	{domain.ErrInvalidDigest, http.StatusBadRequest, "INVALID_DIGEST", "content or a sha-256 content digest is required"},
	{domain.ErrInvalidContent, http.StatusBadRequest, "INVALID_CONTENT", "content must be valid JSON"},
	{domain.ErrDigestMismatch, http.StatusBadRequest, "DIGEST_MISMATCH", "content digest does not match content"},
	{domain.ErrInvalidSigningRequirement, http.StatusBadRequest, "INVALID_SIGNING_REQUIREMENT", "invalid signing requirement"},
	{domain.ErrInvalidGeneration, http.StatusBadRequest, "INVALID_GENERATION", "invalid generation number"},
	{domain.ErrUnknownScope, http.StatusUnprocessableEntity, "UNKNOWN_SCOPE", "unknown document type or org unit"},
	{domain.ErrUnknownSigner, http.StatusUnprocessableEntity, "UNKNOWN_SIGNER", "no signer is registered for the role"},
	{domain.ErrRoleNotRequired, http.StatusUnprocessableEntity, "ROLE_NOT_REQUIRED", "role is not part of the signing requirement"},
	{domain.ErrDocumentNotFound, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "document not found"},
	{domain.ErrKeyNotFound, http.StatusNotFound, "KEY_NOT_FOUND", "token key not found"},
	{domain.ErrOutOfOrderSignature, http.StatusConflict, "OUT_OF_ORDER_SIGNATURE", "another role must sign first"},
	{domain.ErrAlreadySigned, http.StatusConflict, "ALREADY_SIGNED", "role has already signed"},
	{domain.ErrSessionConflict, http.StatusConflict, "SESSION_CONFLICT", "signing session was modified concurrently, retry"},
	{domain.ErrDocumentAlreadyExists, http.StatusConflict, "DOCUMENT_ALREADY_EXISTS", "document already exists"},
	{domain.ErrReferenceNumberInUse, http.StatusConflict, "REFERENCE_NUMBER_IN_USE", "reference number is already in use"},
	{domain.ErrInvalidTransition, http.StatusConflict, "INVALID_STATE", "operation is not allowed in the current state"},
	{domain.ErrSignerAlreadyExists, http.StatusConflict, "SIGNER_ALREADY_EXISTS", "signer already exists for the role"},
	{domain.ErrKeyAlreadyExists, http.StatusConflict, "KEY_ALREADY_EXISTS", "token key already exists"},
	{domain.ErrKeyAlreadyDisabled, http.StatusConflict, "KEY_ALREADY_DISABLED", "key is already disabled"},
	{domain.ErrSigningFailed, http.StatusGone, "SIGNING_FAILED", "signing session has failed"},
	{domain.ErrKeyDisabled, http.StatusGone, "KEY_DISABLED", "key has been disabled"},
}

// writeError は監査ログを出力し、エラーに対応するレスポンスを返す。
func writeError(ctx context.Context, w http.ResponseWriter, operation, subject string, err error) {
	middleware.WriteAuditLog(ctx, operation, subject, err.Error(), middleware.ResultFailed)

	for _, e := range apiErrors {
		if errors.Is(err, e.target) {
			httputil.Error(w, e.status, e.code, e.message)
			return
		}
	}

	slog.ErrorContext(ctx, "unhandled error",
		"operation", operation,
		"subject", subject,
		"error", err,
	)
	httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

func writeBadRequest(ctx context.Context, w http.ResponseWriter, operation, subject, code, message string) {
	middleware.WriteAuditLog(ctx, operation, subject, message, middleware.ResultFailed)
	httputil.Error(w, http.StatusBadRequest, code, message)
}
