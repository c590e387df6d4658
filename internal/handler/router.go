package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/devnolife/sakti-dashboard-sub012/internal/metrics"
	"github.com/devnolife/sakti-dashboard-sub012/internal/middleware"
)

// Handlers はルーターに登録するハンドラ一式。
type Handlers struct {
	RefNumber    *RefNumberHandler
	Document     *DocumentHandler
	Verification *VerificationHandler
	Signer       *SignerHandler
	Key          *KeyHandler
	Catalog      *CatalogHandler
}

// NewRouter はルーターを生成する。verifyLimiter が nil の場合、検証APIは制限しない。
func NewRouter(h Handlers, verifyLimiter *middleware.IPRateLimiter) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(metrics.Middleware)

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// ルート定義
	r.Route("/v1/reference-numbers", func(r chi.Router) {
		r.Post("/", h.RefNumber.Allocate)
		r.Post("/preview", h.RefNumber.Preview)
	})

	r.Route("/v1/documents", func(r chi.Router) {
		r.Post("/", h.Document.Initiate)
		r.Get("/{document_id}", h.Document.Status)
		r.Post("/{document_id}/signatures", h.Document.Sign)
		r.Get("/{document_id}/token", h.Document.Token)
	})

	r.Route("/v1/verify", func(r chi.Router) {
		if verifyLimiter != nil {
			r.Use(verifyLimiter.Middleware)
		}
		r.Post("/", h.Verification.VerifyPost)
		r.Get("/{token}", h.Verification.VerifyGet)
	})

	r.Route("/v1/signers", func(r chi.Router) {
		r.Post("/", h.Signer.Register)
		r.Get("/", h.Signer.List)
		r.Get("/{role}", h.Signer.Get)
	})

	r.Route("/v1/token-keys", func(r chi.Router) {
		r.Post("/", h.Key.CreateKey)
		r.Get("/", h.Key.ListKeys)
		r.Post("/rotate", h.Key.RotateKey)
		r.Delete("/{generation}", h.Key.DisableKey)
	})

	r.Route("/v1/document-types", func(r chi.Router) {
		r.Get("/", h.Catalog.ListDocumentTypes)
		r.Put("/{code}", h.Catalog.PutDocumentType)
		r.Get("/{code}", h.Catalog.GetDocumentType)
	})

	r.Route("/v1/org-units", func(r chi.Router) {
		r.Get("/", h.Catalog.ListOrgUnits)
		r.Put("/{code}", h.Catalog.PutOrgUnit)
		r.Get("/{code}", h.Catalog.GetOrgUnit)
	})

	return r
}
