package ecode

// 业务错误码，0 表示成功
const (
	Success        = 0
	Unknown        = 10000
	ValidateErr    = 10001
	NotFoundErr    = 10002
	RequireAuthErr = 10003
	DatabaseErr    = 10004
)

var messages = map[int]string{
	Success:        "success",
	Unknown:        "unknown error",
	ValidateErr:    "invalid parameters",
	NotFoundErr:    "not found",
	RequireAuthErr: "authorization required",
	DatabaseErr:    "database error",
}

// Text 错误码对应的默认提示
func Text(code int) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[Unknown]
}
