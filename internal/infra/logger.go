package infra

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/devnolife/sakti-dashboard-sub012/config"
)

// TraceHandler はトレース情報をログに付与するslogハンドラ。
type TraceHandler struct {
	handler     slog.Handler
	projectID   string
	otelEnabled bool
}

// NewTraceHandler はトレース情報付きのslogハンドラを生成する。
func NewTraceHandler(handler slog.Handler, cfg *config.Config) *TraceHandler {
	return &TraceHandler{
		handler:     handler,
		projectID:   cfg.GoogleCloudProject,
		otelEnabled: cfg.OtelEnabled,
	}
}

// Enabled はハンドラがログを処理するかどうかを返す。
func (h *TraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle はログレコードにトレースIDとスパンIDを付与する。
func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.otelEnabled {
		return h.handler.Handle(ctx, r)
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		traceID := spanCtx.TraceID().String()
		spanID := spanCtx.SpanID().String()
		r.AddAttrs(
			slog.String("trace", traceID),
			slog.String("spanId", spanID),
			slog.Bool("traceSampled", spanCtx.IsSampled()),
		)

		// Cloud Logging のトレース連携
		if h.projectID != "" {
			r.AddAttrs(
				slog.String("logging.googleapis.com/trace", "projects/"+h.projectID+"/traces/"+traceID),
				slog.String("logging.googleapis.com/spanId", spanID),
			)
		}
	}
	return h.handler.Handle(ctx, r)
}

// WithAttrs は属性を追加した新しいハンドラを返す。
func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{handler: h.handler.WithAttrs(attrs), projectID: h.projectID, otelEnabled: h.otelEnabled}
}

// WithGroup はグループを追加した新しいハンドラを返す。
func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{handler: h.handler.WithGroup(name), projectID: h.projectID, otelEnabled: h.otelEnabled}
}

// ParseLogLevel は LOG_LEVEL の値をslogのレベルに変換する。未知の値は INFO。
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger はトレース情報付きのグローバルロガーを設定する。
func SetupLogger(cfg *config.Config) {
	slog.SetDefault(NewLogger(os.Stdout, cfg))
}

// NewLogger はJSON出力のロガーを生成する。
func NewLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLogLevel(cfg.LogLevel)})
	return slog.New(NewTraceHandler(jsonHandler, cfg)).With("service", cfg.OtelServiceName)
}
