// Package main はAPIサーバーのエントリポイント。
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/devnolife/sakti-dashboard-sub012/config"
	"github.com/devnolife/sakti-dashboard-sub012/internal/handler"
	"github.com/devnolife/sakti-dashboard-sub012/internal/infra"
	"github.com/devnolife/sakti-dashboard-sub012/internal/middleware"
	"github.com/devnolife/sakti-dashboard-sub012/internal/repository"
	"github.com/devnolife/sakti-dashboard-sub012/internal/usecase"
)

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	cfg := config.Load()

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// トレース情報付きロガーを設定
	infra.SetupLogger(cfg)

	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is not set")
		os.Exit(1)
	}
	db, err := infra.NewDB(cfg)
	if err != nil {
		slog.Error("failed to init database", "error", err)
		os.Exit(1)
	}

	kmsClient, closeKMS, err := newKMSClient(ctx, cfg)
	if err != nil {
		slog.Error("failed to init KMS client", "error", err)
		os.Exit(1)
	}
	defer closeKMS()

	counter, closeCounter, err := newCounterStore(ctx, cfg, repository.NewCounterRepository(db))
	if err != nil {
		slog.Error("failed to init counter store", "error", err)
		os.Exit(1)
	}
	defer closeCounter()

	// DI
	catalogRepo := repository.NewCatalogRepository(db)
	docs := repository.NewDocumentRepository(db)
	authority := usecase.NewSignatureAuthority(repository.NewSignerRepository(db), kmsClient)
	keys := usecase.NewKeyService(repository.NewKeyRepository(db), kmsClient)
	codec := usecase.NewTokenCodec(keys)
	numbers := usecase.NewRefNumberService(counter, catalogRepo, cfg.StorageTimeout)
	signing := usecase.NewSigningService(docs, catalogRepo, numbers, authority, codec, cfg.StorageTimeout, cfg.SignerTimeout)
	verification := usecase.NewVerificationService(docs, codec, authority, cfg.StorageTimeout)

	var router http.Handler = handler.NewRouter(handler.Handlers{
		RefNumber:    handler.NewRefNumberHandler(numbers),
		Document:     handler.NewDocumentHandler(signing),
		Verification: handler.NewVerificationHandler(verification),
		Signer:       handler.NewSignerHandler(authority),
		Key:          handler.NewKeyHandler(keys),
		Catalog:      handler.NewCatalogHandler(usecase.NewCatalogService(catalogRepo)),
	}, middleware.NewIPRateLimiter(cfg.VerifyRateLimit, cfg.VerifyRateBurst))
	if cfg.OtelEnabled {
		router = otelhttp.NewHandler(router, cfg.OtelServiceName)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server",
		"port", cfg.Port,
		"database_driver", cfg.DatabaseDriver,
		"kms_provider", cfg.KMSProvider,
		"counter_backend", cfg.CounterBackend,
	)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// newKMSClient は KMS_PROVIDER に応じたKMSクライアントを返す。
func newKMSClient(ctx context.Context, cfg *config.Config) (usecase.KMSClient, func(), error) {
	switch cfg.KMSProvider {
	case "gcp":
		if cfg.KMSKeyName == "" {
			return nil, nil, errors.New("KMS_KEY_NAME is not set")
		}
		client, err := infra.NewKMSClient(ctx, cfg.KMSKeyName)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {
			if err := client.Close(); err != nil {
				slog.Error("failed to close KMS client", "error", err)
			}
		}, nil
	case "local":
		slog.Warn("using local KMS, not for production use")
		client, err := infra.NewLocalKMS(cfg.LocalMasterKey)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported KMS provider %q", cfg.KMSProvider)
	}
}

// newCounterStore は COUNTER_BACKEND に応じた採番カウンタを返す。
func newCounterStore(ctx context.Context, cfg *config.Config, dbCounter *repository.CounterRepository) (usecase.CounterStore, func(), error) {
	switch cfg.CounterBackend {
	case "database":
		return dbCounter, func() {}, nil
	case "redis":
		client, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewRedisCounterRepository(client), func() {
			if err := client.Close(); err != nil {
				slog.Error("failed to close redis client", "error", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported counter backend %q", cfg.CounterBackend)
	}
}
