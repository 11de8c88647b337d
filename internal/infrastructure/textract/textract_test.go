package textract

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestReadText_PlainText(t *testing.T) {
	path := writeTempFile(t, "notes.txt", []byte("hello world\n第二行"))

	text, err := NewReader().ReadText(path, "txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world\n第二行", text)
}

func TestReadText_PlainTextRejectsInvalidUTF8(t *testing.T) {
	path := writeTempFile(t, "bad.txt", []byte{0xff, 0xfe, 0x01})

	_, err := NewReader().ReadText(path, "txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid UTF-8")
}

func TestReadText_Docx(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second</w:t></w:r><w:r><w:t xml:space="preserve"> paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

	path := filepath.Join(t.TempDir(), "report.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	entry, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = entry.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	text, err := NewReader().ReadText(path, "docx")
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", text)
}

func TestReadText_DocxWithoutBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = NewReader().ReadText(path, "docx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word/document.xml")
}

func TestReadText_CorruptPDFReportsParseError(t *testing.T) {
	// 不是合法 PDF 的内容必须以解析错误失败，而不是按文本文件处理
	path := writeTempFile(t, "report.pdf", []byte("%PDF-garbage\xff\xfe"))

	_, err := NewReader().ReadText(path, "pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdf")
	assert.NotContains(t, err.Error(), "UTF-8")
}
