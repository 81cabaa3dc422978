package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// 请求链路相关的约定请求头。
const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

// RequestID 为每个请求补齐链路标识：
// 1) 优先读取请求头 X-Request-ID，为空则生成 UUID；
// 2) 将请求 ID 写回响应头并注入请求上下文；
// 3) 透传 X-Trace-ID（若存在）到上下文与响应头。
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if rid == "" {
			rid = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, rid)

		ctx := withRequestID(r.Context(), rid)
		if tid := strings.TrimSpace(r.Header.Get(HeaderTraceID)); tid != "" {
			w.Header().Set(HeaderTraceID, tid)
			ctx = withTraceID(ctx, tid)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
