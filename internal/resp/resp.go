// Package resp 提供统一的HTTP响应封装。
// 所有API响应均使用相同的信封结构，便于前端统一处理。
package resp

import (
	"encoding/json"
	"net/http"
)

// Code 业务响应码
type Code int

// 约定的业务响应码集合。
// 0 表示成功，非0表示各类失败。
const (
	CodeOK            Code = 0
	CodeInvalidParam  Code = 1001 // 请求参数错误
	CodeNotFound      Code = 1002 // 资源不存在
	CodeStockExceeded Code = 1003 // 超出库存上限
	CodeUnauthorized  Code = 1004 // 未认证或令牌无效
	CodeConflict      Code = 1005 // 资源冲突
	CodeTimeout       Code = 2001 // 请求超时
	CodeInternalError Code = 5000 // 服务内部错误
)

// Response 统一响应信封
type Response[T any] struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Data      T      `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// HTTPStatusFromCode 将业务码映射为HTTP状态码
func HTTPStatusFromCode(code Code) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeStockExceeded:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON 写入完整的响应信封
func WriteJSON[T any](w http.ResponseWriter, status int, code Code, message string, data T, requestID, traceID string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	body := Response[T]{
		Code:      code,
		Message:   message,
		Data:      data,
		RequestID: requestID,
		TraceID:   traceID,
	}

	// 编码失败时响应头已写出，只能记录到标准错误流之外忽略
	_ = json.NewEncoder(w).Encode(body)
}

// OK 写入成功响应
func OK[T any](w http.ResponseWriter, data T, requestID, traceID string) {
	WriteJSON(w, http.StatusOK, CodeOK, "success", data, requestID, traceID)
}

// Error 写入失败响应（data 为空）
func Error(w http.ResponseWriter, status int, code Code, message string, requestID, traceID string) {
	WriteJSON[any](w, status, code, message, nil, requestID, traceID)
}
