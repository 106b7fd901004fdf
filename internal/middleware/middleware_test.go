package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func init() { gin.SetMode(gin.TestMode) }

func perform(r *gin.Engine, remoteAddr, requestID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	if requestID != "" {
		req.Header.Set(HeaderXRequestID, requestID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitIsPerClient(t *testing.T) {
	r := gin.New()
	limiter := NewRateLimiter(RateLimiterConfig{Rate: rate.Limit(1), Burst: 1})
	r.Use(limiter.RateLimit())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, "10.0.0.1:1000", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, "10.0.0.1:1000", "").Code)

	// A different client has its own bucket.
	assert.Equal(t, http.StatusOK, perform(r, "10.0.0.2:1000", "").Code)
}

func TestRequestIDValidation(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("well formed id is echoed", func(t *testing.T) {
		rid := uuid.NewString()
		w := perform(r, "10.0.0.1:1000", rid)
		assert.Equal(t, rid, w.Header().Get(HeaderXRequestID))
	})

	t.Run("malformed id is replaced", func(t *testing.T) {
		w := perform(r, "10.0.0.1:1000", "not-a-uuid")
		got := w.Header().Get(HeaderXRequestID)
		assert.NotEqual(t, "not-a-uuid", got)
		_, err := uuid.Parse(got)
		require.NoError(t, err)
	})
}
