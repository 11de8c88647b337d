package extraction

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/backend/internal/infrastructure/config"
)

const testRegistryYAML = `schemas:
  - name: invoice
    file: invoice.yaml
    enabled: true
  - name: contract
    file: contract.yaml
    enabled: false
  - name: broken
    file: broken.yaml
    enabled: true
`

const testInvoiceYAML = `name: invoice
description: 发票字段抽取
fields:
  invoice_number:
    type: string
    keywords: ["invoice no", "invoice"]
  grand_total:
    type: number
    keywords: ["total", "amount due"]
  issue_date:
    type: date
  currency:
    type: enum
    enum: [USD, EUR, GBP, CNY]
required: [invoice_number]
`

// broken.yaml 含未知字段类型，加载时应被跳过
const testBrokenYAML = `name: broken
fields:
  something:
    type: blob
`

// writeSchemaDir 写入临时 schema 目录
func writeSchemaDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "registry.yaml"), []byte(testRegistryYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invoice.yaml"), []byte(testInvoiceYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(testBrokenYAML), 0644))
	return dir
}

func newTestLoader(t *testing.T) *Loader {
	t.Helper()

	cfg := &config.Config{}
	cfg.Schema.Dir = writeSchemaDir(t)

	loader, err := NewLoader(cfg)
	require.NoError(t, err)
	return loader
}

func TestLoader_LoadsEnabledSchemas(t *testing.T) {
	loader := newTestLoader(t)

	// 只有启用且合法的 schema 被加载
	assert.Equal(t, []string{"invoice"}, loader.Names())

	schema, ok := loader.Get("invoice")
	require.True(t, ok)
	assert.Equal(t, "invoice", schema.Name)
	assert.Len(t, schema.Fields, 4)
	assert.Equal(t, []string{"invoice_number"}, schema.Required)

	_, ok = loader.Get("contract")
	assert.False(t, ok)
	_, ok = loader.Get("broken")
	assert.False(t, ok)
}

func TestLoader_MissingRegistry(t *testing.T) {
	cfg := &config.Config{}
	cfg.Schema.Dir = t.TempDir()

	_, err := NewLoader(cfg)
	assert.Error(t, err)
}

func TestLoader_Reload(t *testing.T) {
	cfg := &config.Config{}
	cfg.Schema.Dir = writeSchemaDir(t)

	loader, err := NewLoader(cfg)
	require.NoError(t, err)

	// 新增 schema 后 Reload 生效
	supportYAML := `name: support_case
fields:
  severity:
    type: enum
    enum: [critical, high, medium, low]
`
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Schema.Dir, "support_case.yaml"), []byte(supportYAML), 0644))

	registryYAML := testRegistryYAML + `  - name: support_case
    file: support_case.yaml
    enabled: true
`
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Schema.Dir, "registry.yaml"), []byte(registryYAML), 0644))

	require.NoError(t, loader.Reload())
	assert.Equal(t, []string{"invoice", "support_case"}, loader.Names())
}

func TestSchema_Validate(t *testing.T) {
	valid := &Schema{
		Name: "test",
		Fields: map[string]*Field{
			"title": {Type: FieldTypeString},
		},
	}
	assert.NoError(t, valid.Validate())

	noFields := &Schema{Name: "test"}
	assert.Error(t, noFields.Validate())

	emptyEnum := &Schema{
		Name:   "test",
		Fields: map[string]*Field{"status": {Type: FieldTypeEnum}},
	}
	assert.Error(t, emptyEnum.Validate())

	badRequired := &Schema{
		Name:     "test",
		Fields:   map[string]*Field{"title": {Type: FieldTypeString}},
		Required: []string{"missing"},
	}
	assert.Error(t, badRequired.Validate())
}
