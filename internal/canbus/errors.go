package canbus

import (
	"errors"

	"github.com/shengyanli1982/canbridge-go/internal/constants"
)

// 总线端点相关错误定义
var (
	// ErrClosed 总线接口已消失，属于终止性错误，调用方应停止所在流水线
	ErrClosed = errors.New(constants.ErrMsgSourceClosed)

	// ErrTimeout 接收在超时时间内没有取到帧，属于正常的空轮询结果
	ErrTimeout = errors.New(constants.ErrMsgReceiveTimeout)

	// ErrBusy 发送缓冲已满，属于瞬时失败，调用方计数后继续
	ErrBusy = errors.New("send buffer full")

	// 帧校验错误
	ErrPayloadTooLong  = errors.New(constants.ErrMsgPayloadTooLong)
	ErrIdentifierRange = errors.New(constants.ErrMsgIdentifierRange)

	// ErrUnknownScheme 打开总线端点时遇到不认识的方案前缀
	ErrUnknownScheme = errors.New(constants.ErrMsgUnknownScheme)
)
