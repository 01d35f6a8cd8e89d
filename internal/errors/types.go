package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误
	ErrCodeInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"

	// 调用方错误
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeInvalidArgument  ErrorCode = "INVALID_ARGUMENT"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// 向量/集合错误
	ErrCodeDimensionConflict      ErrorCode = "DIMENSION_CONFLICT"
	ErrCodeVectorStoreUnavailable ErrorCode = "VECTOR_STORE_UNAVAILABLE"
	ErrCodeVectorStoreError       ErrorCode = "VECTOR_STORE_ERROR"

	// Embedding后端错误
	ErrCodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrCodeEmbeddingError      ErrorCode = "EMBEDDING_ERROR"

	// 查询超时
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// AppError 应用错误结构体
type AppError struct {
	Code     ErrorCode   `json:"code"`
	Message  string      `json:"message"`
	HTTPCode int         `json:"-"`
	Details  interface{} `json:"details,omitempty"`
	Cause    error       `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails 添加错误详情
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// New 按错误码创建AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		HTTPCode: getHTTPCodeForError(code),
	}
}

// Newf 按错误码创建带格式化消息的AppError
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// 错误构造函数

// NewInvalidConfig 创建配置错误
func NewInvalidConfig(message string) *AppError {
	return New(ErrCodeInvalidConfig, message)
}

// NewInvalidArgument 创建参数错误
func NewInvalidArgument(message string) *AppError {
	return New(ErrCodeInvalidArgument, message)
}

// NewDimensionConflict 创建维度冲突错误
func NewDimensionConflict(collection string, want, got int) *AppError {
	return Newf(ErrCodeDimensionConflict,
		"collection %s dimension mismatch: has %d, got %d", collection, want, got)
}

// NewProviderUnavailable 创建Embedding后端不可用错误
func NewProviderUnavailable(message string) *AppError {
	return New(ErrCodeProviderUnavailable, message)
}

// NewEmbeddingError 创建Embedding响应错误
func NewEmbeddingError(message string) *AppError {
	return New(ErrCodeEmbeddingError, message)
}

// NewVectorStoreUnavailable 创建向量存储连接错误
func NewVectorStoreUnavailable(message string) *AppError {
	return New(ErrCodeVectorStoreUnavailable, message)
}

// NewVectorStoreError 创建向量存储操作错误
func NewVectorStoreError(message string) *AppError {
	return New(ErrCodeVectorStoreError, message)
}

// NewTimeout 创建超时错误
func NewTimeout(message string) *AppError {
	return New(ErrCodeTimeout, message)
}

// NewNotFoundError 创建资源未找到错误
func NewNotFoundError(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

// NewValidationError 创建验证错误
func NewValidationError(message string) *AppError {
	return New(ErrCodeValidationFailed, message)
}

// getHTTPCodeForError 根据错误码获取HTTP状态码
func getHTTPCodeForError(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidConfig, ErrCodeInvalidArgument, ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeDimensionConflict:
		return http.StatusConflict
	case ErrCodeProviderUnavailable, ErrCodeVectorStoreUnavailable:
		return http.StatusBadGateway
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf 获取错误的错误码，非AppError返回内部错误码
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalServer
}

// Is 判断错误是否为指定错误码
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// GetAppError 获取AppError，如果不是则包装为内部错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrCodeInternalServer, "internal server error").WithCause(err)
}
