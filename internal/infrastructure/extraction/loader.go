package extraction

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/docuchat/backend/internal/infrastructure/config"
	"github.com/docuchat/backend/internal/infrastructure/log"
)

// Loader 从 schema 目录加载注册表与 schema 定义
// Reload 全量替换内部表，加载失败的单个 schema 不影响其余
type Loader struct {
	dir    string
	logger *slog.Logger

	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewLoader 创建 schema 加载器并执行首次加载
func NewLoader(cfg *config.Config) (*Loader, error) {
	l := &Loader{
		dir:     cfg.Schema.Dir,
		logger:  log.NewModuleLogger("extraction", "loader"),
		schemas: make(map[string]*Schema),
	}

	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload 重新加载注册表与全部启用的 schema
func (l *Loader) Reload() error {
	registryPath := filepath.Join(l.dir, "registry.yaml")

	data, err := os.ReadFile(registryPath)
	if err != nil {
		return fmt.Errorf("failed to read schema registry: %w", err)
	}

	var registry Registry
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return fmt.Errorf("failed to parse schema registry: %w", err)
	}

	schemas := make(map[string]*Schema)
	for _, entry := range registry.Schemas {
		if !entry.Enabled {
			l.logger.Debug("Schema disabled, skipping", "schema", entry.Name)
			continue
		}

		schema, err := l.loadSchema(entry)
		if err != nil {
			l.logger.Error("Failed to load schema", "schema", entry.Name, "error", err)
			continue
		}
		schemas[schema.Name] = schema
		l.logger.Info("Schema loaded", "schema", schema.Name, "fields", len(schema.Fields))
	}

	l.mu.Lock()
	l.schemas = schemas
	l.mu.Unlock()

	l.logger.Info("Schema registry reloaded", "schemas", len(schemas))
	return nil
}

// loadSchema 加载并校验单个 schema 文件
func (l *Loader) loadSchema(entry RegistryEntry) (*Schema, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, entry.File))
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	var schema Schema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}

	if schema.Name == "" {
		schema.Name = entry.Name
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return &schema, nil
}

// Get 按名称获取 schema
func (l *Loader) Get(name string) (*Schema, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	schema, ok := l.schemas[name]
	return schema, ok
}

// Names 返回当前全部启用的 schema 名称（字典序）
func (l *Loader) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.schemas))
	for name := range l.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
