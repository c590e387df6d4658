// Package middleware はHTTPミドルウェアと監査ログを提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"
)

const (
	// ResultSuccess は操作が成功したことを表す。
	ResultSuccess = "SUCCESS"
	// ResultFailed は操作が失敗したことを表す。
	ResultFailed = "FAILED"
)

// WriteAuditLog は監査ログを出力する。
// subject は操作対象（文書ID・ロール・鍵世代など）、detail は補足情報。
func WriteAuditLog(ctx context.Context, operation, subject, detail, result string) {
	slog.InfoContext(ctx, "audit",
		"operation", operation,
		"subject", subject,
		"detail", detail,
		"result", result,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	)
}
