package xerror

import (
	"errors"
	"fmt"
)

// Kind 错误分类
type Kind int

const (
	Unknown Kind = iota
	NoLiquidity
	InsufficientBalance
	RpcUnavailable
	TransactionReverted
	ConfirmationTimeout
	InvalidRequest
	SubmissionRejected
)

var kindNames = map[Kind]string{
	Unknown:             "unknown",
	NoLiquidity:         "no liquidity",
	InsufficientBalance: "insufficient balance",
	RpcUnavailable:      "rpc unavailable",
	TransactionReverted: "transaction reverted",
	ConfirmationTimeout: "confirmation timeout",
	InvalidRequest:      "invalid request",
	SubmissionRejected:  "submission rejected",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[Unknown]
}

// Error 携带分类的错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按 Kind 匹配，errors.Is(err, xerror.New(xerror.NoLiquidity, "")) 即可判断分类
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf 返回错误链上第一个 *Error 的分类
func KindOf(err error) Kind {
	var xe *Error
	if errors.As(err, &xe) {
		return xe.Kind
	}
	return Unknown
}

// IsKind 判断错误链是否包含指定分类
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
