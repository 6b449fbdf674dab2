package canbus

import (
	"sync"
	"time"

	"github.com/shengyanli1982/canbridge-go/internal/constants"
)

// Pipe 代表进程内的虚拟总线端点，基于带缓冲的channel实现
// 同一个Pipe可同时作为Source和Sink使用，用于测试和回环运行
type Pipe struct {
	name      string
	frames    chan Frame
	done      chan struct{}
	closeOnce sync.Once
}

// NewPipe 创建新的虚拟总线端点实例
// depth: 缓冲深度，<=0时使用默认值
func NewPipe(name string, depth int) *Pipe {
	if depth <= 0 {
		depth = constants.DefaultPipeDepth
	}
	return &Pipe{
		name:   name,
		frames: make(chan Frame, depth),
		done:   make(chan struct{}),
	}
}

// Receive 实现Source接口
func (p *Pipe) Receive(timeout time.Duration) (Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame, ok := <-p.frames:
		if !ok {
			return Frame{}, ErrClosed
		}
		return frame, nil
	case <-p.done:
		// 关闭后先清空残留帧再报告关闭
		select {
		case frame := <-p.frames:
			return frame, nil
		default:
			return Frame{}, ErrClosed
		}
	case <-timer.C:
		return Frame{}, ErrTimeout
	}
}

// Send 实现Sink接口
// 缓冲满时返回ErrBusy，不阻塞调用方
func (p *Pipe) Send(frame Frame) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	select {
	case p.frames <- frame:
		return nil
	case <-p.done:
		return ErrClosed
	default:
		return ErrBusy
	}
}

// Close 关闭端点，可重复调用
func (p *Pipe) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	return nil
}

// Name 获取端点名称
func (p *Pipe) Name() string {
	return p.name
}

// Len 获取当前缓冲中的帧数量
func (p *Pipe) Len() int {
	return len(p.frames)
}

// 进程级命名管道注册表，让两个命令行端点按名字共享同一条虚拟总线
var (
	pipesMu sync.Mutex
	pipes   = make(map[string]*Pipe)
)

// OpenPipe 按名字获取或创建共享的虚拟总线端点
func OpenPipe(name string, depth int) *Pipe {
	pipesMu.Lock()
	defer pipesMu.Unlock()

	if pipe, exists := pipes[name]; exists {
		return pipe
	}

	pipe := NewPipe(name, depth)
	pipes[name] = pipe
	return pipe
}

// ReleasePipe 关闭并从注册表移除命名端点，主要供测试清理使用
func ReleasePipe(name string) {
	pipesMu.Lock()
	defer pipesMu.Unlock()

	if pipe, exists := pipes[name]; exists {
		_ = pipe.Close()
		delete(pipes, name)
	}
}
