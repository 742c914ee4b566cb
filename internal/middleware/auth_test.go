package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ugmart/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authedRouter(extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{Auth(testSecret)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		id, _ := GetIdentity(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "role": id.Role})
	})
	r.GET("/protected", handlers...)
	return r
}

func doGet(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthValidToken(t *testing.T) {
	r := authedRouter()
	tok := signToken(t, testSecret, jwt.MapClaims{
		"id":   float64(42),
		"role": model.RoleCustomer,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	w := doGet(r, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":42`)
}

func TestAuthRejections(t *testing.T) {
	r := authedRouter()

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", jwt.MapClaims{
			"id": float64(1), "exp": time.Now().Add(time.Hour).Unix(),
		})},
		{"expired", "Bearer " + signToken(t, testSecret, jwt.MapClaims{
			"id": float64(1), "exp": time.Now().Add(-time.Hour).Unix(),
		})},
		{"no user id claim", "Bearer " + signToken(t, testSecret, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doGet(r, tc.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	r := authedRouter(RequireAdmin())

	admin := signToken(t, testSecret, jwt.MapClaims{
		"id": float64(1), "role": model.RoleSuperAdmin,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	customer := signToken(t, testSecret, jwt.MapClaims{
		"id": float64(2), "role": model.RoleCustomer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	assert.Equal(t, http.StatusOK, doGet(r, "Bearer "+admin).Code)
	assert.Equal(t, http.StatusForbidden, doGet(r, "Bearer "+customer).Code)
}
