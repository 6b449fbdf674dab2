// Package canbus 定义CAN帧值类型和总线端点抽象
package canbus

import (
	"fmt"
	"strings"
	"time"

	"github.com/shengyanli1982/canbridge-go/internal/constants"
)

// Frame 代表一个经典CAN帧：标识符、载荷和单调时间戳
// 通过NewFrame构造的帧保证载荷不超过8字节且标识符在其帧格式的范围内
type Frame struct {
	ID        uint32    // 仲裁标识符（11位标准或29位扩展）
	Extended  bool      // 是否为扩展帧格式
	Data      []byte    // 载荷（0-8字节）
	Timestamp time.Time // 接收时刻，携带单调时钟读数
}

// NewFrame 创建并校验新的CAN帧实例
// 载荷会被复制，调用方可以安全地复用传入的切片
func NewFrame(id uint32, data []byte, extended bool, ts time.Time) (Frame, error) {
	frame := Frame{
		ID:        id,
		Extended:  extended,
		Data:      append([]byte(nil), data...),
		Timestamp: ts,
	}
	if err := frame.Validate(); err != nil {
		return Frame{}, err
	}
	return frame, nil
}

// Validate 校验帧的载荷长度和标识符范围
func (f *Frame) Validate() error {
	if len(f.Data) > constants.MaxPayloadLen {
		return fmt.Errorf("%w: got %d bytes for id %s", ErrPayloadTooLong, len(f.Data), FormatID(f.ID))
	}
	limit := constants.MaxStandardID
	if f.Extended {
		limit = constants.MaxExtendedID
	}
	if f.ID > limit {
		return fmt.Errorf("%w: id %s exceeds 0x%X", ErrIdentifierRange, FormatID(f.ID), limit)
	}
	return nil
}

// WithID 返回替换了标识符的帧副本，载荷和时间戳保持不变
func (f Frame) WithID(id uint32) Frame {
	f.ID = id
	return f
}

// String 返回candump风格的帧描述
func (f Frame) String() string {
	var sb strings.Builder
	sb.WriteString(FormatID(f.ID))
	sb.WriteString(" [")
	fmt.Fprintf(&sb, "%d", len(f.Data))
	sb.WriteString("]")
	for _, b := range f.Data {
		fmt.Fprintf(&sb, " %02X", b)
	}
	return sb.String()
}

// FormatID 将标识符渲染为 0x 前缀的大写十六进制形式
func FormatID(id uint32) string {
	return fmt.Sprintf("0x%X", id)
}
