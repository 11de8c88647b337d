package extraction

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/docuchat/backend/internal/infrastructure/config"
	"github.com/docuchat/backend/internal/infrastructure/log"
)

// reloadDebounce 目录事件的防抖延迟
const reloadDebounce = 500 * time.Millisecond

// SchemaWatcher 监听 schema 目录并热重载注册表
type SchemaWatcher struct {
	dir     string
	enabled bool
	loader  *Loader
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	// 防抖相关
	debounceTimer *time.Timer
	debounceMu    sync.Mutex

	// 控制
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSchemaWatcher 创建 schema 目录监听器
func NewSchemaWatcher(cfg *config.Config, loader *Loader) (*SchemaWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &SchemaWatcher{
		dir:     cfg.Schema.Dir,
		enabled: cfg.Schema.Watch,
		loader:  loader,
		watcher: watcher,
		logger:  log.NewModuleLogger("extraction", "watcher"),
		stopCh:  make(chan struct{}),
	}, nil
}

// Start 启动目录监听
func (w *SchemaWatcher) Start() error {
	if !w.enabled {
		w.logger.Info("Schema watching disabled")
		return nil
	}

	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	w.logger.Info("Watching schema directory", "dir", w.dir)

	w.wg.Add(1)
	go w.watchLoop()
	return nil
}

// Stop 停止目录监听
func (w *SchemaWatcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
	w.wg.Wait()

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceMu.Unlock()

	w.logger.Info("Schema watcher stopped")
}

// watchLoop 事件处理循环
func (w *SchemaWatcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isSchemaFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.logger.Debug("Schema file changed", "file", event.Name, "op", event.Op.String())
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Schema watcher error", "error", err)
		}
	}
}

// scheduleReload 防抖后触发重载
func (w *SchemaWatcher) scheduleReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(reloadDebounce, func() {
		if err := w.loader.Reload(); err != nil {
			w.logger.Error("Failed to reload schemas", "error", err)
			return
		}
		w.logger.Info("Schemas reloaded")
	})
}

// isSchemaFile 判断事件是否涉及 YAML schema 文件
func isSchemaFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
