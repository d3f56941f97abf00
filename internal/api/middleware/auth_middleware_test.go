package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"ojtportal/internal/auth"
	"ojtportal/internal/database"
)

func newTestAuthService(t *testing.T) *auth.AuthService {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	privatePEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	publicPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicDER,
	})

	svc, err := auth.NewAuthService(privatePEM, publicPEM, 15*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	return svc
}

func newProtectedRouter(svc *auth.AuthService, role database.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	group := router.Group("/probe")
	group.Use(AuthMiddleware(svc), RequireRole(role))
	group.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userID": c.MustGet(UserIDKey)})
	})
	return router
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	svc := newTestAuthService(t)
	router := newProtectedRouter(svc, database.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", w.Code)
	}
}

func TestAuthMiddlewareRejectsMalformedHeader(t *testing.T) {
	svc := newTestAuthService(t)
	router := newProtectedRouter(svc, database.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", w.Code)
	}
}

func TestAuthMiddlewareRejectsRefreshToken(t *testing.T) {
	svc := newTestAuthService(t)
	router := newProtectedRouter(svc, database.RoleAdmin)

	pair, err := svc.GenerateTokenPair(7, string(database.RoleAdmin))
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for refresh token, got %d", w.Code)
	}
}

func TestRequireRoleBlocksOtherRole(t *testing.T) {
	svc := newTestAuthService(t)
	router := newProtectedRouter(svc, database.RoleAdmin)

	pair, err := svc.GenerateTokenPair(7, string(database.RoleStudent))
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", w.Code)
	}
}

func TestRequireRoleAllowsMatchingRole(t *testing.T) {
	svc := newTestAuthService(t)
	router := newProtectedRouter(svc, database.RoleAdmin)

	pair, err := svc.GenerateTokenPair(7, string(database.RoleAdmin))
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
}
