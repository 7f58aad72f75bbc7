package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"chat-widget-go/pkg/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func sessionRouter(manager *token.SessionManager) *gin.Engine {
	r := gin.New()
	r.Use(SessionMiddleware(manager, "widget_session", false))
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, SessionID(c))
	})
	return r
}

func TestSessionMiddlewareIssuesAndReuses(t *testing.T) {
	manager := token.NewSessionManager("secret", 24)
	r := sessionRouter(manager)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	first := w.Body.String()
	require.NotEmpty(t, first)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, first, w.Body.String())
	assert.Empty(t, w.Result().Cookies(), "fresh token is not re-issued")
}

func TestSessionMiddlewareReplacesForgedCookie(t *testing.T) {
	other := token.NewSessionManager("other-secret", 24)
	_, forged, err := other.Issue()
	require.NoError(t, err)

	r := sessionRouter(token.NewSessionManager("secret", 24))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "widget_session", Value: forged})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	claims, err := other.Verify(forged)
	require.NoError(t, err)
	assert.NotEqual(t, claims.SessionID(), w.Body.String())
	assert.Len(t, w.Result().Cookies(), 1)
}

func TestAdminAuthMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	r := gin.New()
	r.Use(AdminAuthMiddleware("admin", string(hash)))
	r.GET("/admin", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name     string
		user     string
		password string
		noAuth   bool
		want     int
	}{
		{name: "valid", user: "admin", password: "s3cret", want: http.StatusNoContent},
		{name: "wrong password", user: "admin", password: "nope", want: http.StatusForbidden},
		{name: "wrong user", user: "root", password: "s3cret", want: http.StatusForbidden},
		{name: "missing", noAuth: true, want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if !tt.noAuth {
				req.SetBasicAuth(tt.user, tt.password)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
