package canbus

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// 抓包文件是一串首尾相接的CBOR记录，每条记录对应一帧
// 紧凑的整数键让长时间抓包的体积保持可控

// captureRecord 代表抓包文件中的单帧记录
type captureRecord struct {
	ID       uint32 `cbor:"1,keyasint"`
	Extended bool   `cbor:"2,keyasint,omitempty"`
	Data     []byte `cbor:"3,keyasint"`
	UnixNano int64  `cbor:"4,keyasint"`
}

// CaptureSink 代表将帧写入CBOR抓包文件的Sink实现
type CaptureSink struct {
	mu        sync.Mutex
	file      *os.File
	encoder   *cbor.Encoder
	closeOnce sync.Once
}

// OpenCaptureSink 创建新的CBOR抓包文件
func OpenCaptureSink(path string) (*CaptureSink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file: %w", err)
	}
	return &CaptureSink{
		file:    file,
		encoder: cbor.NewEncoder(file),
	}, nil
}

// Send 实现Sink接口
func (s *CaptureSink) Send(frame Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encoder == nil {
		return ErrClosed
	}

	rec := captureRecord{
		ID:       frame.ID,
		Extended: frame.Extended,
		Data:     frame.Data,
		UnixNano: frame.Timestamp.UnixNano(),
	}
	if err := s.encoder.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return nil
}

// Close 关闭抓包文件，可重复调用
func (s *CaptureSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		err = s.file.Close()
		s.encoder = nil
	})
	return err
}

// CaptureSource 代表从CBOR抓包文件回放帧的Source实现
// 文件读尽后返回ErrClosed
type CaptureSource struct {
	file      *os.File
	decoder   *cbor.Decoder
	closeOnce sync.Once
}

// OpenCaptureSource 打开CBOR抓包文件用于回放
func OpenCaptureSource(path string) (*CaptureSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	return &CaptureSource{
		file:    file,
		decoder: cbor.NewDecoder(file),
	}, nil
}

// Receive 实现Source接口，解码并返回下一帧
func (s *CaptureSource) Receive(timeout time.Duration) (Frame, error) {
	var rec captureRecord
	if err := s.decoder.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, ErrClosed
		}
		return Frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	return NewFrame(rec.ID, rec.Data, rec.Extended, time.Unix(0, rec.UnixNano))
}

// Close 关闭抓包文件，可重复调用
func (s *CaptureSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.file.Close()
	})
	return err
}
