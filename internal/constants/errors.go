package constants

const (
	// Error messages - 错误消息

	// ErrMsgSourceClosed 帧源已关闭错误消息
	ErrMsgSourceClosed = "bus interface is closed"

	// ErrMsgReceiveTimeout 接收超时错误消息
	ErrMsgReceiveTimeout = "receive timed out"

	// ErrMsgPayloadTooLong 载荷过长错误消息
	ErrMsgPayloadTooLong = "payload exceeds 8 bytes"

	// ErrMsgIdentifierRange 标识符超界错误消息
	ErrMsgIdentifierRange = "identifier out of range for its frame format"

	// ErrMsgUnknownScheme 未知总线方案错误消息
	ErrMsgUnknownScheme = "unknown bus scheme"

	// ErrMsgNilRuleSet 空规则集错误消息
	ErrMsgNilRuleSet = "rule set cannot be nil"

	// ErrMsgNilSource 空帧源错误消息
	ErrMsgNilSource = "frame source cannot be nil"

	// ErrMsgNilSink 空帧汇错误消息
	ErrMsgNilSink = "frame sink cannot be nil"

	// ErrMsgBridgeAlreadyStarted 桥已启动错误消息
	ErrMsgBridgeAlreadyStarted = "bridge already started"

	// ErrMsgAnalyzerAlreadyStarted 分析器已启动错误消息
	ErrMsgAnalyzerAlreadyStarted = "analyzer already started"
)

const (
	// Error types for metrics - 指标错误类型

	// ErrorTypeReceive 接收错误类型
	ErrorTypeReceive = "receive_error"

	// ErrorTypeSend 发送错误类型
	ErrorTypeSend = "send_error"

	// ErrorTypeInvalidFrame 非法帧错误类型
	ErrorTypeInvalidFrame = "invalid_frame"
)
