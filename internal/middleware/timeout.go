package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Lucassml-boop/commerce-e/internal/resp"
)

// Timeout 在给定时长后取消请求上下文，并写出统一信封格式的超时响应。
// 基于 http.TimeoutHandler，超时响应的状态码固定为 503。
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	body := timeoutBody()
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, body)
	}
}

// timeoutBody 预先编码超时信封，避免在超时路径上重复序列化。
func timeoutBody() string {
	b, err := json.Marshal(resp.Response[any]{
		Code:    resp.CodeTimeout,
		Message: "request timeout",
	})
	if err != nil {
		return `{"code":2001,"message":"request timeout"}`
	}
	return string(b)
}
