package canbus

import (
	"fmt"
	"strings"
)

// 端点描述符形如 scheme:rest
//   mem:vbus0          进程内虚拟总线（按名字共享）
//   file:frames.log    candump格式文本文件
//   capture:frames.cb  CBOR抓包文件
// 物理SocketCAN端点由外部适配器实现，不在本仓库范围内

const (
	schemeMem     = "mem"
	schemeFile    = "file"
	schemeCapture = "capture"
)

// defaultIface 描述符不携带总线名时candump行使用的接口标签
const defaultIface = "can0"

// splitSpec 拆分端点描述符为方案和剩余部分
func splitSpec(spec string) (scheme, rest string, err error) {
	idx := strings.Index(spec, ":")
	if idx <= 0 || idx == len(spec)-1 {
		return "", "", fmt.Errorf("%w: %q (want scheme:target)", ErrUnknownScheme, spec)
	}
	return spec[:idx], spec[idx+1:], nil
}

// Open 根据描述符打开帧源
func Open(spec string) (Source, error) {
	scheme, rest, err := splitSpec(spec)
	if err != nil {
		return nil, err
	}

	switch scheme {
	case schemeMem:
		return OpenPipe(rest, 0), nil
	case schemeFile:
		return OpenLogSource(rest)
	case schemeCapture:
		return OpenCaptureSource(rest)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
}

// OpenSink 根据描述符打开帧汇
func OpenSink(spec string) (Sink, error) {
	scheme, rest, err := splitSpec(spec)
	if err != nil {
		return nil, err
	}

	switch scheme {
	case schemeMem:
		return OpenPipe(rest, 0), nil
	case schemeFile:
		return OpenLogSink(rest, defaultIface)
	case schemeCapture:
		return OpenCaptureSink(rest)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
}
