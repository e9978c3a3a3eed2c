package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tenant": GetTenantID(c), "user": GetUserID(c)})
	})
	return r
}

func TestTenantMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		wantBody   string
	}{
		{"tenant header", map[string]string{"X-Tenant-ID": "t1"}, http.StatusOK, `"tenant":"t1"`},
		{"vendor header wins", map[string]string{"X-Tenant-ID": "t1", "X-Vendor-ID": "v1"}, http.StatusOK, `"tenant":"v1"`},
		{"missing", nil, http.StatusUnauthorized, `TENANT_REQUIRED`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(DevelopmentAuthMiddleware(), TenantMiddleware())
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestDevelopmentAuthMiddleware(t *testing.T) {
	r := newRouter(DevelopmentAuthMiddleware())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Contains(t, w.Body.String(), DevUserID)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-ID", "staff-7")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `"user":"staff-7"`)
}

func TestCORS_Preflight(t *testing.T) {
	r := newRouter(CORS([]string{"https://*.tesseract-hub.com"}))
	r.OPTIONS("/whoami", func(c *gin.Context) {})

	req := httptest.NewRequest(http.MethodOptions, "/whoami", nil)
	req.Header.Set("Origin", "https://admin.tesseract-hub.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, "https://admin.tesseract-hub.com", w.Header().Get("Access-Control-Allow-Origin"))
}
