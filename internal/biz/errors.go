package biz

import (
	"errors"
	"fmt"
	"time"

	entErrors "entitlement-service/internal/errors"
)

// ErrorKind 业务错误类型，调用方通过 switch 穷举处理
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindConflict
	KindInvalidReceipt
	KindVerificationFailed
	KindUnsupportedPlatform
	KindUnsupportedProduct
	KindNothingToGrant
	KindUsageLimitExceeded
	KindInvalidArgument
)

// String 返回错误类型名称（作为对外的 reason）
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindInvalidReceipt:
		return "INVALID_RECEIPT"
	case KindVerificationFailed:
		return "VERIFICATION_FAILED"
	case KindUnsupportedPlatform:
		return "UNSUPPORTED_PLATFORM"
	case KindUnsupportedProduct:
		return "UNSUPPORTED_PRODUCT"
	case KindNothingToGrant:
		return "NOTHING_TO_GRANT"
	case KindUsageLimitExceeded:
		return "USAGE_LIMIT_EXCEEDED"
	case KindInvalidArgument:
		return "INVALID_ARGUMENT"
	default:
		return "UNKNOWN"
	}
}

// Code 返回数字错误码
func (k ErrorKind) Code() int {
	switch k {
	case KindNotFound:
		return entErrors.ErrCodeUserNotFound
	case KindConflict:
		return entErrors.ErrCodeTransactionConflict
	case KindInvalidReceipt:
		return entErrors.ErrCodeInvalidReceipt
	case KindVerificationFailed:
		return entErrors.ErrCodeVerificationFailed
	case KindUnsupportedPlatform:
		return entErrors.ErrCodeUnsupportedPlatform
	case KindUnsupportedProduct:
		return entErrors.ErrCodeUnsupportedProduct
	case KindNothingToGrant:
		return entErrors.ErrCodeNothingToGrant
	case KindUsageLimitExceeded:
		return entErrors.ErrCodeUsageLimitExceeded
	case KindInvalidArgument:
		return entErrors.ErrCodeInvalidArgument
	default:
		return entErrors.ErrCodeInternal
	}
}

// UsageLimitDetail 额度用尽时返回给客户端展示的数据
type UsageLimitDetail struct {
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Credits   int       `json:"credits"`
	ResetsAt  time.Time `json:"resets_at"`
}

// Error 业务错误（面向客户端，消息可直接展示）
type Error struct {
	Kind    ErrorKind
	Message string
	Limit   *UsageLimitDetail
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按错误类型匹配，errors.Is(err, ErrConflict) 成立
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// 按类型匹配用的哨兵错误
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrInvalidReceipt      = &Error{Kind: KindInvalidReceipt}
	ErrVerificationFailed  = &Error{Kind: KindVerificationFailed}
	ErrUnsupportedPlatform = &Error{Kind: KindUnsupportedPlatform}
	ErrUnsupportedProduct  = &Error{Kind: KindUnsupportedProduct}
	ErrNothingToGrant      = &Error{Kind: KindNothingToGrant}
	ErrUsageLimitExceeded  = &Error{Kind: KindUsageLimitExceeded}
	ErrInvalidArgument     = &Error{Kind: KindInvalidArgument}
)

// ErrDuplicateTransaction 存储层唯一约束冲突（transaction_id 已存在）
// 仅在 biz 内部使用，不会透出给客户端
var ErrDuplicateTransaction = errors.New("duplicate transaction id")

// NewError 创建业务错误
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError 创建携带底层原因的业务错误
func WrapError(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// AsError 提取业务错误
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind 判断错误类型
func IsKind(err error, kind ErrorKind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}
