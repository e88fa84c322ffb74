package watcher

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/convomemory/recall/internal/domain/events"
	"github.com/convomemory/recall/internal/domain/session"
	"github.com/convomemory/recall/internal/infrastructure/log"
	"github.com/fsnotify/fsnotify"
)

// WatchConfig FileWatcher 配置
type WatchConfig struct {
	// Roots 活跃会话根目录
	Roots []string
	// DebounceDelay 防抖延迟，仍在追加的文件只在安静下来后发出一次事件
	DebounceDelay time.Duration
}

// DefaultWatchConfig 返回默认配置
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		DebounceDelay: 2 * time.Second,
	}
}

// FileWatcher 活跃会话目录监听器
type FileWatcher struct {
	config   WatchConfig
	eventBus events.EventBus
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	// 防抖相关
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewFileWatcher 创建文件监听器
func NewFileWatcher(config WatchConfig, eventBus events.EventBus) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if config.DebounceDelay <= 0 {
		config.DebounceDelay = DefaultWatchConfig().DebounceDelay
	}
	// 事件的 Root 要和索引时 ingest.Files 使用的绝对路径一致
	roots := make([]string, 0, len(config.Roots))
	for _, root := range config.Roots {
		if root != "" {
			if abs, err := filepath.Abs(root); err == nil {
				root = abs
			}
		}
		roots = append(roots, root)
	}
	config.Roots = roots

	return &FileWatcher{
		config:         config,
		eventBus:       eventBus,
		watcher:        watcher,
		logger:         log.NewModuleLogger("watcher", "file_watcher"),
		debounceTimers: make(map[string]*time.Timer),
		stopCh:         make(chan struct{}),
	}, nil
}

// Start 启动文件监听，不存在的根目录会被跳过
func (fw *FileWatcher) Start() error {
	fw.logger.Info("Starting file watcher", "roots", fw.config.Roots)

	watched := 0
	for _, root := range fw.config.Roots {
		if root == "" {
			continue
		}
		if _, err := os.Stat(root); err != nil {
			fw.logger.Warn("Watch root not available", "root", root, "error", err)
			continue
		}
		fw.addDirRecursive(root)
		watched++
	}
	if watched == 0 && len(fw.config.Roots) > 0 {
		fw.logger.Warn("No watch roots available, watcher idle")
	}

	fw.wg.Add(1)
	go fw.watchLoop()
	return nil
}

// Stop 停止文件监听
func (fw *FileWatcher) Stop() {
	fw.stopOnce.Do(func() {
		fw.logger.Info("Stopping file watcher")

		close(fw.stopCh)
		_ = fw.watcher.Close()
		fw.wg.Wait()

		// 取消所有防抖定时器
		fw.debounceMu.Lock()
		for path, timer := range fw.debounceTimers {
			timer.Stop()
			delete(fw.debounceTimers, path)
		}
		fw.debounceMu.Unlock()

		fw.logger.Info("File watcher stopped")
	})
}

// addDirRecursive 递归添加目录监听
func (fw *FileWatcher) addDirRecursive(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // 忽略无法访问的目录
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != dir && (strings.HasPrefix(name, ".") || name == "node_modules") {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			fw.logger.Debug("Failed to add directory to watch", "path", path, "error", err)
		}
		return nil
	})
}

// watchLoop 事件监听循环
func (fw *FileWatcher) watchLoop() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.stopCh:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				fw.logger.Warn("Watcher event overflow, changes will be picked up by the next scheduled pass")
				continue
			}
			fw.logger.Error("Watcher error", "error", err)
		}
	}
}

// handleFsEvent 处理文件系统事件
func (fw *FileWatcher) handleFsEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// 新建的子目录（例如新 agent 的 sessions 目录）需要加入监听
			fw.addDirRecursive(event.Name)
			return
		}
	}
	if !session.IsSourceFile(event.Name) {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	fw.debounce(event)
}

// debounce 同一文件在延迟内的多次事件只保留最后一次
func (fw *FileWatcher) debounce(fsEvent fsnotify.Event) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	if timer, exists := fw.debounceTimers[fsEvent.Name]; exists {
		timer.Stop()
	}

	fw.debounceTimers[fsEvent.Name] = time.AfterFunc(fw.config.DebounceDelay, func() {
		fw.emitSessionFileEvent(fsEvent)

		fw.debounceMu.Lock()
		delete(fw.debounceTimers, fsEvent.Name)
		fw.debounceMu.Unlock()
	})
}

// emitSessionFileEvent 发送会话文件事件
func (fw *FileWatcher) emitSessionFileEvent(fsEvent fsnotify.Event) {
	evt := &events.SessionFileEvent{
		SessionID: session.IDFromPath(fsEvent.Name),
		Root:      fw.rootOf(fsEvent.Name),
		FilePath:  fsEvent.Name,
		EventTime: time.Now(),
	}

	// 以文件当前状态为准：防抖期间可能先创建后删除
	info, err := os.Stat(fsEvent.Name)
	switch {
	case err != nil:
		evt.EventType = events.SessionFileDeleted
	case fsEvent.Has(fsnotify.Create):
		evt.EventType = events.SessionFileCreated
	default:
		evt.EventType = events.SessionFileModified
	}
	if info != nil {
		evt.ModTime = info.ModTime()
		evt.FileSize = info.Size()
	}

	fw.eventBus.Publish(evt)

	fw.logger.Debug("Session file event emitted",
		"type", evt.EventType,
		"session_id", evt.SessionID,
		"root", evt.Root,
	)
}

// rootOf 返回包含该路径的监听根目录
func (fw *FileWatcher) rootOf(path string) string {
	best := ""
	for _, root := range fw.config.Roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if len(root) > len(best) {
			best = root
		}
	}
	return best
}
