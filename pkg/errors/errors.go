package errors

import (
	"errors"
	"fmt"

	"backflow/pkg/errors/ecode"
)

// Error 带业务错误码的错误
type Error struct {
	Code    int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithCode 新建带错误码的错误
func WithCode(code int, message string) error {
	if message == "" {
		message = ecode.Text(code)
	}
	return &Error{Code: code, Message: message}
}

// Wrap 给底层错误附加错误码和提示
func Wrap(err error, code int, message string) error {
	if err == nil {
		return nil
	}
	if message == "" {
		message = ecode.Text(code)
	}
	return &Error{Code: code, Message: message, cause: err}
}

// DecodeErr 解析出错误码和返回给客户端的提示；nil 为成功
func DecodeErr(err error) (int, string) {
	if err == nil {
		return ecode.Success, ecode.Text(ecode.Success)
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code, e.Message
	}
	return ecode.Unknown, err.Error()
}
