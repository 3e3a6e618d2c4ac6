package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"minuteride/internal/domain"
)

const testSecret = "unit-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func validClaims(role string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":  "user-1",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
}

func newAuthRouter(extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{Auth(testSecret)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		actor, _ := ActorFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": actor.ID, "role": string(actor.Role)})
	})
	r.GET("/whoami", handlers...)
	return r
}

func serve(r *gin.Engine, target, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	t.Parallel()

	good := sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("driver"))

	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"bearer header", "/whoami", "Bearer " + good, http.StatusOK},
		{"lowercase scheme", "/whoami", "bearer " + good, http.StatusOK},
		{"query token", "/whoami?access_token=" + good, "", http.StatusOK},
		{"missing token", "/whoami", "", http.StatusUnauthorized},
		{"wrong scheme", "/whoami", "Basic " + good, http.StatusUnauthorized},
		{"garbage token", "/whoami", "Bearer not-a-jwt", http.StatusUnauthorized},
		{
			"wrong secret", "/whoami",
			"Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims("driver")),
			http.StatusUnauthorized,
		},
		{
			"expired", "/whoami",
			"Bearer " + sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
				"sub": "user-1", "role": "driver", "exp": time.Now().Add(-time.Minute).Unix(),
			}),
			http.StatusUnauthorized,
		},
		{
			"unknown role", "/whoami",
			"Bearer " + sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("admin")),
			http.StatusUnauthorized,
		},
		{
			"missing subject", "/whoami",
			"Bearer " + sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"role": "driver"}),
			http.StatusUnauthorized,
		},
	}

	r := newAuthRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := serve(r, tt.target, tt.header); w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestAuth_UserIDClaimFallback(t *testing.T) {
	t.Parallel()

	tok := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"user_id": "disp-9", "role": "dispatcher"})
	w := serve(newAuthRouter(), "/whoami", "Bearer "+tok)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := w.Body.String(); body != `{"id":"disp-9","role":"dispatcher"}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	r := newAuthRouter(RequireRole(domain.RoleDispatcher))

	driver := sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("driver"))
	if w := serve(r, "/whoami", "Bearer "+driver); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for driver, got %d", w.Code)
	}

	dispatcher := sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("dispatcher"))
	if w := serve(r, "/whoami", "Bearer "+dispatcher); w.Code != http.StatusOK {
		t.Errorf("expected 200 for dispatcher, got %d", w.Code)
	}
}

func TestRequireRole_WithoutAuth(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.GET("/x", RequireRole(domain.RoleDriver), func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := serve(r, "/x", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}
