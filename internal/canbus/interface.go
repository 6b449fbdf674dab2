package canbus

import "time"

// Source 代表帧源接口，对应一个可读的总线端点
// 物理SocketCAN适配器在本仓库之外实现同一接口
type Source interface {
	// Receive 在timeout内拉取一帧
	// 无帧可取时返回ErrTimeout；接口消失时返回ErrClosed；
	// 其它错误视为单次瞬时失败
	Receive(timeout time.Duration) (Frame, error)

	// Close 释放端点资源，可重复调用
	Close() error
}

// Sink 代表帧汇接口，对应一个可写的总线端点
type Sink interface {
	// Send 发送一帧
	// 接口消失时返回ErrClosed；其它错误视为单次瞬时失败
	Send(frame Frame) error

	// Close 释放端点资源，可重复调用
	Close() error
}
