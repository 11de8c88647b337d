package extraction

import "fmt"

// 字段类型常量（封闭集合）
const (
	FieldTypeString = "string"
	FieldTypeNumber = "number"
	FieldTypeDate   = "date"
	FieldTypeEnum   = "enum"
	FieldTypeList   = "list"
)

// Field 抽取字段定义
type Field struct {
	Type string `yaml:"type"`
	// Pattern 自定义匹配正则（可选，捕获组 1 为字段值）
	Pattern string `yaml:"pattern,omitempty"`
	// Keywords 字段名之外的补充触发词（可选）
	Keywords []string `yaml:"keywords,omitempty"`
	// Enum 枚举候选值（仅 enum 类型）
	Enum []string `yaml:"enum,omitempty"`
}

// Schema 抽取 schema 定义
type Schema struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Fields      map[string]*Field `yaml:"fields"`
	// Required 缺失任一必填字段时整个 schema 的结果被丢弃
	Required []string `yaml:"required,omitempty"`
}

// Validate 校验 schema 定义的完整性
func (s *Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema name is empty")
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema %s has no fields", s.Name)
	}

	for name, field := range s.Fields {
		switch field.Type {
		case FieldTypeString, FieldTypeNumber, FieldTypeDate, FieldTypeList:
		case FieldTypeEnum:
			if len(field.Enum) == 0 {
				return fmt.Errorf("schema %s: enum field %s has no values", s.Name, name)
			}
		default:
			return fmt.Errorf("schema %s: field %s has unknown type %q", s.Name, name, field.Type)
		}
	}

	for _, required := range s.Required {
		if _, ok := s.Fields[required]; !ok {
			return fmt.Errorf("schema %s: required field %s is not defined", s.Name, required)
		}
	}
	return nil
}

// RegistryEntry 注册表中的一条 schema 记录
type RegistryEntry struct {
	Name    string `yaml:"name"`
	File    string `yaml:"file"`
	Enabled bool   `yaml:"enabled"`
}

// Registry schema 注册表（registry.yaml）
type Registry struct {
	Schemas []RegistryEntry `yaml:"schemas"`
}
