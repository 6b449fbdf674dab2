package canbus

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shengyanli1982/canbridge-go/internal/constants"
)

// candump文本格式: (timestamp) iface ID#PAYLOAD
// 例如: (1638947543.123456) vcan0 123#DEADBEEF
// 标识符超过3个十六进制位（或带显式8位表示）的行按扩展帧处理

// LogSource 代表从candump格式文本文件回放帧的Source实现
// 文件读尽后返回ErrClosed，对应物理接口消失的终止语义
type LogSource struct {
	file      *os.File
	scanner   *bufio.Scanner
	closeOnce sync.Once
}

// OpenLogSource 打开candump格式的回放文件
func OpenLogSource(path string) (*LogSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log source: %w", err)
	}
	return &LogSource{
		file:    file,
		scanner: bufio.NewScanner(file),
	}, nil
}

// Receive 实现Source接口，逐行解析并返回下一帧
// 无法解析的行被跳过，不会中断回放
func (s *LogSource) Receive(timeout time.Duration) (Frame, error) {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		frame, err := ParseDumpLine(line)
		if err != nil {
			continue
		}
		return frame, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return Frame{}, ErrClosed
}

// Close 关闭回放文件，可重复调用
func (s *LogSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.file.Close()
	})
	return err
}

// ParseDumpLine 解析一行candump格式文本
func ParseDumpLine(line string) (Frame, error) {
	hashIdx := strings.Index(line, "#")
	if hashIdx < 0 {
		return Frame{}, fmt.Errorf("no # separator in %q", line)
	}

	head := strings.TrimSpace(line[:hashIdx])
	payloadHex := strings.TrimSpace(line[hashIdx+1:])

	// 提取可选的 (timestamp) 前缀
	ts := time.Now()
	if strings.HasPrefix(head, "(") {
		closeIdx := strings.Index(head, ")")
		if closeIdx < 0 {
			return Frame{}, fmt.Errorf("unterminated timestamp in %q", line)
		}
		seconds, err := strconv.ParseFloat(head[1:closeIdx], 64)
		if err != nil {
			return Frame{}, fmt.Errorf("invalid timestamp in %q: %w", line, err)
		}
		ts = time.Unix(0, int64(seconds*float64(time.Second)))
		head = strings.TrimSpace(head[closeIdx+1:])
	}

	// 去掉可选的接口名字段，保留最后一个token作为标识符
	fields := strings.Fields(head)
	if len(fields) == 0 {
		return Frame{}, fmt.Errorf("missing identifier in %q", line)
	}
	idToken := fields[len(fields)-1]

	id, err := strconv.ParseUint(idToken, 16, 32)
	if err != nil {
		return Frame{}, fmt.Errorf("invalid identifier %q: %w", idToken, err)
	}

	var data []byte
	if payloadHex != "" {
		data, err = hex.DecodeString(payloadHex)
		if err != nil {
			return Frame{}, fmt.Errorf("invalid payload %q: %w", payloadHex, err)
		}
	}

	// candump约定：超过3个hex位的标识符按扩展帧记录
	extended := len(idToken) > 3 || uint32(id) > constants.MaxStandardID
	return NewFrame(uint32(id), data, extended, ts)
}

// LogSink 代表以candump格式逐行落盘的Sink实现
type LogSink struct {
	mu        sync.Mutex
	file      *os.File
	writer    *bufio.Writer
	iface     string
	closeOnce sync.Once
}

// OpenLogSink 创建candump格式的输出文件
// iface: 写入每行的接口名标签
func OpenLogSink(path, iface string) (*LogSink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create log sink: %w", err)
	}
	return &LogSink{
		file:   file,
		writer: bufio.NewWriter(file),
		iface:  iface,
	}, nil
}

// Send 实现Sink接口
func (s *LogSink) Send(frame Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		return ErrClosed
	}

	ts := frame.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	idDigits := 3
	if frame.Extended {
		idDigits = 8
	}
	line := fmt.Sprintf("(%d.%06d) %s %0*X#%s\n",
		ts.Unix(), ts.Nanosecond()/int(time.Microsecond),
		s.iface, idDigits, frame.ID,
		strings.ToUpper(hex.EncodeToString(frame.Data)))

	if _, err := s.writer.WriteString(line); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Close 刷新并关闭输出文件，可重复调用
func (s *LogSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if flushErr := s.writer.Flush(); flushErr != nil {
			err = flushErr
		}
		if closeErr := s.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		s.writer = nil
	})
	return err
}

var _ io.Closer = (*LogSink)(nil)
