package middleware

import (
	"bytes"
	"io"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// EnsureUTF8Body 把非 UTF-8 的请求体转换为 UTF-8
// 内嵌文本接入和聊天消息里常有中文内容；Windows 中文环境的命令行客户端
// 默认按 GBK（代码页 936）发送请求体，不转换会污染分块与会话存储。
func EnsureUTF8Body() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.ContentLength == 0 {
			c.Next()
			return
		}

		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Next()
			return
		}
		c.Request.Body.Close()

		if len(bodyBytes) == 0 || utf8.Valid(bodyBytes) {
			restoreBody(c, bodyBytes)
			c.Next()
			return
		}

		utf8Bytes, err := convertGBKToUTF8(bodyBytes)
		if err != nil || !utf8.Valid(utf8Bytes) {
			// 转换失败就保留原始数据，让后续的 JSON 绑定报错
			restoreBody(c, bodyBytes)
			c.Next()
			return
		}

		restoreBody(c, utf8Bytes)
		c.Next()
	}
}

// restoreBody 回填请求体并同步 Content-Length
func restoreBody(c *gin.Context, body []byte) {
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	c.Request.ContentLength = int64(len(body))
}

// convertGBKToUTF8 将 GBK 编码的字节转换为 UTF-8
func convertGBKToUTF8(gbkBytes []byte) ([]byte, error) {
	reader := transform.NewReader(bytes.NewReader(gbkBytes), simplifiedchinese.GBK.NewDecoder())
	return io.ReadAll(reader)
}
