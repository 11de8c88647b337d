package extraction

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/docuchat/backend/internal/infrastructure/log"
)

// confidenceThreshold 低于该置信度的字段匹配被丢弃
const confidenceThreshold = 0.7

// 通用日期模式（MM/DD/YYYY、YYYY-MM-DD、Month DD, YYYY）
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}[/-]\d{1,2}[/-]\d{1,2}`),
	regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`),
	regexp.MustCompile(`[A-Za-z]+\s+\d{1,2},?\s+\d{4}`),
}

// fieldMatch 单字段抽取结果
type fieldMatch struct {
	Value      any
	Confidence float64
}

// Extractor 纯文本结构化抽取器
// 基于字段名/关键词的标签模式与正则匹配，不依赖外部服务
type Extractor struct {
	loader *Loader
	logger *slog.Logger
}

// NewExtractor 创建抽取器
func NewExtractor(loader *Loader) *Extractor {
	return &Extractor{
		loader: loader,
		logger: log.NewModuleLogger("extraction", "extractor"),
	}
}

// Apply 将指定 schema 应用到文本，返回按 schema 名键入的字段表。
// 未命中必填字段的 schema 整体不出现在结果中。
func (e *Extractor) Apply(text string, schemaNames []string) map[string]any {
	results := make(map[string]any)

	for _, name := range schemaNames {
		schema, ok := e.loader.Get(name)
		if !ok {
			e.logger.Warn("Schema not found", "schema", name)
			continue
		}

		fields := e.applySchema(text, schema)
		if fields != nil {
			results[name] = fields
		}
	}
	return results
}

// ApplyAll 将全部启用的 schema 应用到文本
func (e *Extractor) ApplyAll(text string) map[string]any {
	return e.Apply(text, e.loader.Names())
}

// applySchema 应用单个 schema，必填字段缺失时返回 nil
func (e *Extractor) applySchema(text string, schema *Schema) map[string]any {
	extracted := make(map[string]any)

	for name, field := range schema.Fields {
		match := e.extractField(text, name, field)
		if match != nil && match.Confidence >= confidenceThreshold {
			extracted[name] = match.Value
		}
	}

	for _, required := range schema.Required {
		if _, ok := extracted[required]; !ok {
			e.logger.Debug("Required field missing, dropping schema result",
				"schema", schema.Name, "field", required)
			return nil
		}
	}

	if len(extracted) == 0 {
		return nil
	}
	return extracted
}

// extractField 按字段类型分派抽取
func (e *Extractor) extractField(text, name string, field *Field) *fieldMatch {
	switch field.Type {
	case FieldTypeString:
		return extractStringField(text, name, field)
	case FieldTypeNumber:
		return extractNumberField(text, name, field)
	case FieldTypeDate:
		return extractDateField(text, name, field)
	case FieldTypeEnum:
		return extractEnumField(text, field)
	case FieldTypeList:
		return extractListField(text, name, field)
	}
	return nil
}

// labelPattern 构造 "field name: value" 形式的标签模式
func labelPattern(name string, keywords []string) *regexp.Regexp {
	labels := make([]string, 0, len(keywords)+1)
	labels = append(labels, strings.ReplaceAll(regexp.QuoteMeta(name), `_`, `\s+`))
	for _, kw := range keywords {
		labels = append(labels, strings.ReplaceAll(regexp.QuoteMeta(kw), ` `, `\s+`))
	}

	pattern := fmt.Sprintf(`(?i)\b(?:%s)[:\s#]+([^.\n]+)`, strings.Join(labels, "|"))
	return regexp.MustCompile(pattern)
}

func extractStringField(text, name string, field *Field) *fieldMatch {
	if field.Pattern != "" {
		re, err := regexp.Compile("(?i)" + field.Pattern)
		if err != nil {
			return nil
		}
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			return &fieldMatch{Value: strings.TrimSpace(m[1]), Confidence: 0.8}
		}
		return nil
	}

	if m := labelPattern(name, field.Keywords).FindStringSubmatch(text); len(m) > 1 {
		return &fieldMatch{Value: strings.TrimSpace(m[1]), Confidence: 0.7}
	}
	return nil
}

func extractNumberField(text, name string, field *Field) *fieldMatch {
	labels := make([]string, 0, len(field.Keywords)+1)
	labels = append(labels, strings.ReplaceAll(regexp.QuoteMeta(name), `_`, `\s+`))
	for _, kw := range field.Keywords {
		labels = append(labels, strings.ReplaceAll(regexp.QuoteMeta(kw), ` `, `\s+`))
	}

	pattern := fmt.Sprintf(`(?i)\b(?:%s)[:\s]*[\$€£¥₹]?\s*(\d+(?:,\d{3})*(?:\.\d+)?)`, strings.Join(labels, "|"))
	if m := regexp.MustCompile(pattern).FindStringSubmatch(text); len(m) > 1 {
		value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			return nil
		}
		return &fieldMatch{Value: value, Confidence: 0.8}
	}
	return nil
}

func extractDateField(text, name string, field *Field) *fieldMatch {
	// 先在字段标签之后找日期
	if m := labelPattern(name, field.Keywords).FindStringSubmatch(text); len(m) > 1 {
		for _, re := range datePatterns {
			if date := re.FindString(m[1]); date != "" {
				return &fieldMatch{Value: date, Confidence: 0.9}
			}
		}
	}

	// 退化为全文日期匹配
	for _, re := range datePatterns {
		if date := re.FindString(text); date != "" {
			return &fieldMatch{Value: date, Confidence: 0.7}
		}
	}
	return nil
}

func extractEnumField(text string, field *Field) *fieldMatch {
	textLower := strings.ToLower(text)
	for _, candidate := range field.Enum {
		if strings.Contains(textLower, strings.ToLower(candidate)) {
			return &fieldMatch{Value: candidate, Confidence: 0.9}
		}
	}
	return nil
}

func extractListField(text, name string, field *Field) *fieldMatch {
	m := labelPattern(name, field.Keywords).FindStringSubmatch(text)
	if len(m) < 2 {
		return nil
	}

	raw := regexp.MustCompile(`(?i)\s*(?:,|;|\band\b)\s*`).Split(m[1], -1)
	items := make([]string, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil
	}
	return &fieldMatch{Value: items, Confidence: 0.8}
}
