package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func mintToken(t *testing.T, claims schemeClaims) string {
	t.Helper()
	claims.Issuer = "switch-test"
	claims.Audience = jwt.ClaimStrings{"central-ledger"}
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Minute))
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func authedRequest(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/v1/transfers", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestAuthMiddlewareFspIdentity(t *testing.T) {
	SetJWTSecret(testSecret)
	SetJWTValidation("switch-test", "central-ledger")

	var gotFsp, gotRole string
	handler := AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFsp = FspFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
	}))

	token := mintToken(t, schemeClaims{FspID: "dfsp-a", Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "dfsp-a"}})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(token))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dfsp-a", gotFsp)
	assert.Equal(t, RoleAdmin, gotRole)

	// A token without a role claim defaults to the participant role.
	token = mintToken(t, schemeClaims{FspID: "dfsp-b"})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(token))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dfsp-b", gotFsp)
	assert.Equal(t, RoleFsp, gotRole)
}

func TestAuthMiddlewareRejects(t *testing.T) {
	SetJWTSecret(testSecret)
	SetJWTValidation("switch-test", "central-ledger")

	handler := AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	cases := map[string]string{
		"missing header": "",
		"no fsp claim":   mintToken(t, schemeClaims{Role: RoleFsp}),
		"subject mismatch": mintToken(t, schemeClaims{FspID: "dfsp-a",
			RegisteredClaims: jwt.RegisteredClaims{Subject: "dfsp-b"}}),
		"garbage token": "not-a-jwt",
	}
	for name, token := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(token))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}
}

func TestRequireRoleBlocksParticipants(t *testing.T) {
	SetJWTSecret(testSecret)
	SetJWTValidation("switch-test", "central-ledger")

	handler := AuthMiddleware(RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})))

	token := mintToken(t, schemeClaims{FspID: "dfsp-a", Role: RoleFsp})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(token))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
