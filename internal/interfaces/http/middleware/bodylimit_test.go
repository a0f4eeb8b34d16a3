package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func bodyLimitRouter(maxBytes int64) *gin.Engine {
	r := gin.New()
	r.Use(BodyLimit(maxBytes))
	r.POST("/api/v1/signup", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.AbortWithStatus(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusCreated)
	})
	return r
}

func TestBodyLimit_SmallPayloadPasses(t *testing.T) {
	r := bodyLimitRouter(64)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/signup", strings.NewReader(`{"study_code":"ABC123"}`))
	w := serve(r, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestBodyLimit_RejectsByContentLength(t *testing.T) {
	r := bodyLimitRouter(16)

	body := strings.Repeat("x", 64)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/signup", strings.NewReader(body))
	w := serve(r, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "REQUEST_TOO_LARGE")
}

func TestBodyLimit_CapsStreamedBody(t *testing.T) {
	r := bodyLimitRouter(16)

	// no Content-Length; the limit must hold when the body is streamed
	req := httptest.NewRequest(http.MethodPost, "/api/v1/signup", strings.NewReader(strings.Repeat("x", 64)))
	req.ContentLength = -1
	w := serve(r, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
