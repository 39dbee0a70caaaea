package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsIsolatedRegistries(t *testing.T) {
	// Two collectors in one process must not collide.
	a := NewMetrics()
	b := NewMetrics()

	a.RecordRender("ok", 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Renders.WithLabelValues("ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Renders.WithLabelValues("ok")))
}

func TestRecorders(t *testing.T) {
	m := NewMetrics()

	m.RecordResolveError("not_found")
	m.RecordResolveError("not_found")
	m.RecordGuestError()
	m.RecordBridgeFetch("blocked")
	m.SetViewsActive(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ResolveErrors.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuestErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BridgeFetches.WithLabelValues("blocked")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ViewsActive))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/tools/:slug", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tools/overlay", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/tools/:slug", "200")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "brandhub_http_requests_total")
}
