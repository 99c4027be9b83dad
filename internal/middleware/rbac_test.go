package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/procurehub/marketplace-api/internal/models"
	"github.com/procurehub/marketplace-api/internal/service"
)

func setClaims(claims *models.JWTClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

func serveMetrics(t *testing.T, handlers ...gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	metrics := service.NewMetricsService()
	route := append(handlers, gin.WrapH(metrics.Handler()))
	r.GET("/metrics", route...)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return w
}

func TestMetricsRouteRejectsAnonymous(t *testing.T) {
	w := serveMetrics(t, JWT(nil), RequireAdmin())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetricsRouteRejectsNonAdmin(t *testing.T) {
	vendor := &models.JWTClaims{UserID: "vendor-1", Role: models.RoleVendor}
	w := serveMetrics(t, setClaims(vendor), RequireAdmin())
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMetricsRouteServesAdmin(t *testing.T) {
	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	w := serveMetrics(t, setClaims(admin), RequireAdmin())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goroutines_total")
}
