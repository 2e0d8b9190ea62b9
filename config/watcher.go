// 配置文件变更监听器实现。
//
// 基于修改时间轮询触发回调，用于在不重启的情况下重新加载管道参数。
package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// --- 文件监听器类型定义 ---

// FileWatcher polls a configuration file for changes
type FileWatcher struct {
	mu sync.Mutex

	path         string
	pollInterval time.Duration

	running  bool
	stopChan chan struct{}

	callbacks []func(event FileEvent)

	logger *zap.Logger

	lastMod time.Time
	exists  bool
}

// FileEvent represents a file change event
type FileEvent struct {
	Path      string    `json:"path"`
	Op        FileOp    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// FileOp represents file operation types
type FileOp int

const (
	// FileOpCreate 表示文件已创建
	FileOpCreate FileOp = iota
	// FileOpWrite 指示文件已被修改
	FileOpWrite
	// FileOpRemove 表示文件已被删除
	FileOpRemove
)

// String returns the string representation of FileOp
func (op FileOp) String() string {
	switch op {
	case FileOpCreate:
		return "CREATE"
	case FileOpWrite:
		return "WRITE"
	case FileOpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// --- 文件监听器选项 ---

// WatcherOption configures the FileWatcher
type WatcherOption func(*FileWatcher)

// WithPollInterval sets the polling interval
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *FileWatcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithWatcherLogger sets the logger for the watcher
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *FileWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// --- 文件监听器实现 ---

// NewFileWatcher creates a new file watcher
func NewFileWatcher(path string, opts ...WatcherOption) (*FileWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("watch path is empty")
	}
	w := &FileWatcher{
		path:         path,
		pollInterval: time.Second,
		stopChan:     make(chan struct{}),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	info, err := os.Stat(path)
	switch {
	case err == nil:
		w.lastMod = info.ModTime()
		w.exists = true
	case os.IsNotExist(err):
		w.logger.Warn("Config file does not exist, will watch for creation",
			zap.String("path", path))
	default:
		return nil, fmt.Errorf("failed to stat path %s: %w", path, err)
	}

	return w, nil
}

// OnChange registers a callback for file change events
func (w *FileWatcher) OnChange(callback func(FileEvent)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start begins polling until ctx is done or Stop is called
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	go w.pollLoop(ctx)

	w.logger.Info("File watcher started",
		zap.String("path", w.path),
		zap.Duration("poll_interval", w.pollInterval))
	return nil
}

// Stop stops the file watcher
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	close(w.stopChan)
	w.running = false

	w.logger.Info("File watcher stopped")
	return nil
}

// IsRunning reports whether the poll loop is active
func (w *FileWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *FileWatcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check stats the file once and dispatches an event if it changed.
func (w *FileWatcher) Check() (FileEvent, bool) {
	w.mu.Lock()
	event, changed := w.detectLocked()
	callbacks := append([]func(FileEvent){}, w.callbacks...)
	w.mu.Unlock()

	if !changed {
		return FileEvent{}, false
	}
	w.logger.Debug("Dispatching file event",
		zap.String("path", event.Path),
		zap.String("op", event.Op.String()))
	for _, cb := range callbacks {
		cb(event)
	}
	return event, true
}

func (w *FileWatcher) detectLocked() (FileEvent, bool) {
	info, err := os.Stat(w.path)
	if err != nil {
		if os.IsNotExist(err) && w.exists {
			w.exists = false
			w.lastMod = time.Time{}
			return FileEvent{Path: w.path, Op: FileOpRemove, Timestamp: time.Now()}, true
		}
		return FileEvent{}, false
	}

	if !w.exists {
		w.exists = true
		w.lastMod = info.ModTime()
		return FileEvent{Path: w.path, Op: FileOpCreate, Timestamp: time.Now()}, true
	}
	if !info.ModTime().Equal(w.lastMod) {
		w.lastMod = info.ModTime()
		return FileEvent{Path: w.path, Op: FileOpWrite, Timestamp: time.Now()}, true
	}
	return FileEvent{}, false
}

// ReloadPipelineOnChange re-reads the file on create/write and applies its
// pipeline section to holder. Invalid files are logged and ignored.
func ReloadPipelineOnChange(w *FileWatcher, loader *Loader, holder *PipelineHolder, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w.OnChange(func(event FileEvent) {
		if event.Op == FileOpRemove {
			return
		}
		cfg, err := loader.Load()
		if err != nil {
			logger.Warn("config reload failed", zap.String("path", event.Path), zap.Error(err))
			return
		}
		if err := holder.Apply(cfg.Pipeline, "file"); err != nil {
			logger.Warn("reloaded pipeline config rejected", zap.Error(err))
		}
	})
}
