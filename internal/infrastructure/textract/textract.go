package textract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"log/slog"

	"github.com/ledongthuc/pdf"

	"github.com/docuchat/backend/internal/infrastructure/log"
)

// Reader 按文件类型提取文档的纯文本内容
// txt/md 原样读取，pdf 和 docx 走格式解析后输出纯文本。
type Reader struct {
	logger *slog.Logger
}

// NewReader 创建文本提取器
func NewReader() *Reader {
	return &Reader{
		logger: log.NewModuleLogger("textract", "reader"),
	}
}

// ReadText 读取文件并返回 UTF-8 纯文本
func (r *Reader) ReadText(path, fileType string) (string, error) {
	switch strings.ToLower(fileType) {
	case "pdf":
		return r.readPDF(path)
	case "docx":
		return r.readDocx(path)
	default:
		return r.readPlain(path)
	}
}

// readPlain 读取文本类文件，要求内容是有效的 UTF-8
func (r *Reader) readPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file %s is not valid UTF-8 text", path)
	}
	return string(data), nil
}

// readPDF 提取 PDF 文本
// 底层解析器对损坏文件可能 panic，这里统一转换为错误返回。
func (r *Reader) readPDF(path string) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("failed to parse pdf %s: %v", path, rec)
		}
	}()

	f, doc, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse pdf %s: %w", path, err)
	}
	defer f.Close()

	reader, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text from %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("failed to read pdf text from %s: %w", path, err)
	}
	return buf.String(), nil
}

// readDocx 提取 docx 文本
// docx 是 zip 容器，正文在 word/document.xml 里，文本落在 w:t 元素中。
func (r *Reader) readDocx(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open docx %s: %w", path, err)
	}
	defer zr.Close()

	for _, file := range zr.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open docx body of %s: %w", path, err)
		}
		defer rc.Close()
		return extractDocxText(rc)
	}
	return "", fmt.Errorf("docx %s has no word/document.xml", path)
}

// extractDocxText 遍历正文 XML，收集 w:t 文本并在段落边界换行
func extractDocxText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var sb strings.Builder
	inText := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to decode docx body: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
