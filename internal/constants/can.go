package constants

const (
	// CAN bus constants - CAN 总线常量

	// MaxStandardID 标准帧（11位）最大标识符
	MaxStandardID uint32 = 0x7FF

	// MaxExtendedID 扩展帧（29位）最大标识符
	MaxExtendedID uint32 = 0x1FFFFFFF

	// MaxPayloadLen 经典CAN帧最大载荷字节数
	MaxPayloadLen = 8

	// FrameOverheadBits 单帧固定开销位数的粗略估计
	// 包含SOF、仲裁、控制、CRC、ACK、EOF和帧间隔，忽略位填充
	FrameOverheadBits = 47

	// BitsPerByte 每字节位数
	BitsPerByte = 8
)

const (
	// Default runtime values - 运行时默认值

	// DefaultBitrate 默认总线比特率（bps）
	DefaultBitrate = 500000

	// DefaultRecvTimeout 默认接收超时（毫秒）
	DefaultRecvTimeout = 20

	// DefaultSendTimeout 默认发送超时（毫秒）
	DefaultSendTimeout = 100

	// DefaultStatsInterval 默认统计报告间隔（毫秒）
	DefaultStatsInterval = 1000

	// DefaultWindowInterval 默认分析窗口间隔（毫秒）
	DefaultWindowInterval = 1000

	// DefaultPipeDepth 内存管道默认缓冲深度
	DefaultPipeDepth = 1024
)
