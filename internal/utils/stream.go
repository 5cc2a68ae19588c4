package utils

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// StreamJSONLReader 流式 JSONL 读取器
type StreamJSONLReader struct {
	closer  io.Closer
	scanner *bufio.Scanner
	lineNum int
}

// NewStreamJSONLReader 打开 JSONL 文件
func NewStreamJSONLReader(filePath string) (*StreamJSONLReader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}

	r := NewJSONLReader(file)
	r.closer = file
	return r, nil
}

// NewJSONLReader 包装任意 io.Reader
func NewJSONLReader(src io.Reader) *StreamJSONLReader {
	scanner := bufio.NewScanner(src)
	// 单行最大 16MB，图标 base64 会让行变得很长
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	return &StreamJSONLReader{scanner: scanner}
}

// ReadNextTyped 读取下一条非空行并解析为指定类型，结束时返回 io.EOF
func (r *StreamJSONLReader) ReadNextTyped(v interface{}) error {
	for r.scanner.Scan() {
		r.lineNum++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := json.Unmarshal(line, v); err != nil {
			return fmt.Errorf("line %d: %w", r.lineNum, err)
		}
		return nil
	}

	if err := r.scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

// LineNumber 获取当前行号
func (r *StreamJSONLReader) LineNumber() int {
	return r.lineNum
}

// Close 关闭读取器
func (r *StreamJSONLReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// ReadJSONLFile 流式读取整个 JSONL 文件 (回调方式)
func ReadJSONLFile[T any](filePath string, callback func(record T) error) error {
	reader, err := NewStreamJSONLReader(filePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		var record T
		err := reader.ReadNextTyped(&record)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if err := callback(record); err != nil {
			return err
		}
	}
}

// StreamJSONLWriter 流式 JSONL 写入器，可并发调用 WriteLine
type StreamJSONLWriter struct {
	closer io.Closer
	writer *bufio.Writer
	mu     sync.Mutex
	count  int
}

// NewStreamJSONLWriter 创建 JSONL 文件，appendMode 为 false 时截断已有内容
func NewStreamJSONLWriter(filePath string, appendMode bool) (*StreamJSONLWriter, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(filePath, flags, 0644)
	if err != nil {
		return nil, err
	}

	w := NewJSONLWriter(file)
	w.closer = file
	return w, nil
}

// NewJSONLWriter 包装任意 io.Writer（例如 stdout）
func NewJSONLWriter(dst io.Writer) *StreamJSONLWriter {
	return &StreamJSONLWriter{
		writer: bufio.NewWriterSize(dst, 64*1024),
	}
}

// WriteLine 写入一行 JSON
func (w *StreamJSONLWriter) WriteLine(data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.writer.Write(jsonData); err != nil {
		return err
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return err
	}

	w.count++
	return nil
}

// Count 已写入行数
func (w *StreamJSONLWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Flush 刷新缓冲区
func (w *StreamJSONLWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writer.Flush()
}

// Close 刷新并关闭底层文件
func (w *StreamJSONLWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
