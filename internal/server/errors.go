package server

import "errors"

// 管理服务器相关错误定义
var (
	ErrServerAlreadyStarted = errors.New("server already started")
	ErrServerNotStarted     = errors.New("server not started")
)
