package airbnb

import (
	"errors"
	"fmt"
)

// ErrorKind 上游请求错误类别
type ErrorKind string

const (
	ErrorKindTransport   ErrorKind = "transport"
	ErrorKindAuth        ErrorKind = "auth"
	ErrorKindRateLimited ErrorKind = "rate_limited"
	ErrorKindUpstream    ErrorKind = "upstream"
	ErrorKindDecode      ErrorKind = "decode"
)

// RequestError 上游 API 调用错误
type RequestError struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("airbnb %s: %s (status %d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("airbnb %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// retryable 是否可重试 (传输错误/5xx/限流)
func (e *RequestError) retryable() bool {
	switch e.Kind {
	case ErrorKindTransport, ErrorKindUpstream, ErrorKindRateLimited:
		return true
	default:
		return false
	}
}

// IsAuthError 判断是否为凭证失效错误
func IsAuthError(err error) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind == ErrorKindAuth
	}
	return false
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.retryable()
	}
	return false
}
