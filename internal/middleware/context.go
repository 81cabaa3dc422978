// Package middleware 提供 HTTP 中间件：请求 ID、恢复、超时、CORS、访问日志等。
package middleware

import (
	"context"
)

// contextKey 用于在上下文中存取特定键，避免与外部键冲突。
type contextKey string

// 约定的上下文键集合。
const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyTraceID   contextKey = "trace_id"
)

// withRequestID 将请求 ID 写入上下文。
func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}

// RequestIDFromContext 从上下文中读取请求 ID（可能为空）。
func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, contextKeyRequestID)
}

// withTraceID 将追踪 ID 写入上下文。
func withTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyTraceID, id)
}

// TraceIDFromContext 从上下文中读取追踪 ID（可能为空）。
// 追踪 ID 由上游注入，本服务只透传，不自行生成。
func TraceIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, contextKeyTraceID)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
