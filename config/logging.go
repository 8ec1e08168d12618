package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ParseLevel 支持 debug/info/warn/warning/error，空串为 info
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// RotatingFileWriter 按大小切分日志：file -> file.1 -> file.2 ...
// maxBytes <= 0 时不切分。
type RotatingFileWriter struct {
	mu       sync.Mutex
	path     string
	maxBytes int
	backups  int
	file     *os.File
	size     int64
}

func NewRotatingFileWriter(path string, maxBytes, backups int) (*RotatingFileWriter, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	rw := &RotatingFileWriter{path: path, maxBytes: maxBytes, backups: backups}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

func (rw *RotatingFileWriter) open() error {
	f, err := os.OpenFile(rw.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	rw.file = f
	rw.size = info.Size()
	return nil
}

func (rw *RotatingFileWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.maxBytes > 0 && rw.size > 0 && rw.size+int64(len(p)) > int64(rw.maxBytes) {
		if err := rw.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

func (rw *RotatingFileWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.file == nil {
		return nil
	}
	err := rw.file.Close()
	rw.file = nil
	return err
}

func (rw *RotatingFileWriter) rotate() error {
	_ = rw.file.Close()
	for i := rw.backups; i > 0; i-- {
		src := rw.path
		if i > 1 {
			src = fmt.Sprintf("%s.%d", rw.path, i-1)
		}
		dst := fmt.Sprintf("%s.%d", rw.path, i)
		_ = os.Remove(dst)
		_ = os.Rename(src, dst)
	}
	if rw.backups <= 0 {
		_ = os.Remove(rw.path)
	}
	return rw.open()
}

// ConfigureLogging 设置 slog 默认 logger：文本格式写 stderr，配置了文件时同时写文件。
// 返回的 cleanup 在退出前调用。
func ConfigureLogging(cfg LogConfig, stderr io.Writer) (*slog.Logger, func(), error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	w := stderr
	cleanup := func() {}
	if cfg.File != "" {
		rw, err := NewRotatingFileWriter(cfg.File, cfg.MaxBytes, cfg.Backups)
		if err != nil {
			return nil, nil, err
		}
		w = io.MultiWriter(stderr, rw)
		cleanup = func() {
			_ = rw.Close()
		}
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, cleanup, nil
}
