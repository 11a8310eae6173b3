package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)
	seen := new(string)
	r := gin.New()
	r.Use(New())
	r.GET("/", func(c *gin.Context) {
		*seen = Value(c)
		c.Status(http.StatusNoContent)
	})
	return r, seen
}

func TestAssignsAndEchoesID(t *testing.T) {
	router, seen := newTestRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	router.ServeHTTP(w, req)

	require.NotEmpty(t, *seen)
	assert.Equal(t, *seen, w.Header().Get(Header))
}

func TestHonorsCallerSuppliedID(t *testing.T) {
	router, seen := newTestRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(Header, "req-123")
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", *seen)
	assert.Equal(t, "req-123", w.Header().Get(Header))
}
