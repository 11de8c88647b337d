package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

func newEncodingTestRouter(t *testing.T, captured *[]byte) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(EnsureUTF8Body())
	router.POST("/echo", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		require.NoError(t, err)
		*captured = body
		c.Status(http.StatusOK)
	})
	return router
}

func TestEnsureUTF8Body_ConvertsGBK(t *testing.T) {
	original := "会议纪要：预算讨论"
	gbkBytes, err := io.ReadAll(transform.NewReader(
		bytes.NewReader([]byte(original)), simplifiedchinese.GBK.NewEncoder()))
	require.NoError(t, err)
	require.False(t, utf8.Valid(gbkBytes))

	var captured []byte
	router := newEncodingTestRouter(t, &captured)

	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(gbkBytes))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, original, string(captured))
}

func TestEnsureUTF8Body_PassesValidUTF8Unchanged(t *testing.T) {
	var captured []byte
	router := newEncodingTestRouter(t, &captured)

	body := []byte(`{"text":"plain ascii and 中文"}`)
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, captured)
}
