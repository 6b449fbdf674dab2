// Package export 实现窗口快照的落盘导出
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/shengyanli1982/canbridge-go/internal/analyzer"
	"github.com/shengyanli1982/canbridge-go/internal/canbus"
)

// csvHeader CSV表头，一行对应一个标识符在一个窗口内的统计量
var csvHeader = []string{"ts", "iface", "load", "id", "fps", "jitter_ms", "avg_len", "count"}

// CSVExporter 代表CSV格式的窗口快照导出器
// ts为窗口终点的epoch秒，id渲染为0x前缀大写十六进制
type CSVExporter struct {
	mu        sync.Mutex
	file      *os.File
	writer    *csv.Writer
	closeOnce sync.Once
}

// NewCSVExporter 创建新的CSV导出器并写入表头
func NewCSVExporter(path string) (*CSVExporter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create csv file: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	return &CSVExporter{
		file:   file,
		writer: writer,
	}, nil
}

// Export 实现analyzer.Exporter接口，按标识符升序写出窗口内的所有行
func (e *CSVExporter) Export(bus string, snapshot *analyzer.WindowSnapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.writer == nil {
		return fmt.Errorf("csv exporter is closed")
	}

	ts := strconv.FormatInt(snapshot.End.Unix(), 10)
	load := fmt.Sprintf("%.2f", snapshot.BusLoadPct)

	for _, id := range snapshot.SortedIDs() {
		stats := snapshot.PerID[id]
		row := []string{
			ts,
			bus,
			load,
			canbus.FormatID(id),
			fmt.Sprintf("%.3f", stats.FPS),
			fmt.Sprintf("%.3f", stats.JitterMS),
			fmt.Sprintf("%.2f", stats.AvgLen),
			strconv.FormatUint(stats.Count, 10),
		}
		if err := e.writer.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	e.writer.Flush()
	return e.writer.Error()
}

// Close 刷新并关闭导出文件，可重复调用
func (e *CSVExporter) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		e.writer.Flush()
		if flushErr := e.writer.Error(); flushErr != nil {
			err = flushErr
		}
		if closeErr := e.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		e.writer = nil
	})
	return err
}
