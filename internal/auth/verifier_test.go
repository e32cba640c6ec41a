package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/auth"
	"github.com/noah-isme/backend-kasir/internal/common"
)

var testSecret = []byte("kasir-test-secret")

func signedToken(t *testing.T, secret []byte, mutate func(*jwt.Builder)) string {
	t.Helper()
	now := time.Now()
	builder := jwt.NewBuilder().
		Issuer("toko-store").
		Subject("user-1").
		IssuedAt(now).
		Expiration(now.Add(time.Minute))
	if mutate != nil {
		mutate(builder)
	}
	token, err := builder.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, secret))
	require.NoError(t, err)
	return string(signed)
}

func TestVerifyValidToken(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	v.Issuer = "toko-store"

	subject, err := v.Verify(signedToken(t, testSecret, nil))
	require.NoError(t, err)
	require.Equal(t, "user-1", subject)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	_, err := v.Verify(signedToken(t, []byte("other-secret"), nil))
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeUnauthorized, appErr.Code)
	require.Equal(t, http.StatusUnauthorized, appErr.HTTPStatus)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	token := signedToken(t, testSecret, func(b *jwt.Builder) {
		b.Expiration(time.Now().Add(-time.Hour))
	})
	_, err := v.Verify(token)
	require.Error(t, err)
}

func TestVerifyRejectsIssuerMismatch(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	v.Issuer = "toko-store"
	token := signedToken(t, testSecret, func(b *jwt.Builder) {
		b.Issuer("someone-else")
	})
	_, err := v.Verify(token)
	require.Error(t, err)
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	_, err := v.Verify("   ")
	require.Error(t, err)
}

func TestAuthenticatePassesThroughWithoutHeader(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	var sawSubject bool
	handler := auth.Authenticate(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawSubject = common.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.False(t, sawSubject)
}

func TestAuthenticateStoresSubjectAndBearer(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	raw := signedToken(t, testSecret, nil)

	var subject, bearer string
	handler := auth.Authenticate(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, _ = common.UserID(r.Context())
		bearer, _ = common.Bearer(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "user-1", subject)
	require.Equal(t, raw, bearer)
}

func TestAuthenticateRejectsBadToken(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	handler := auth.Authenticate(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), common.CodeUnauthorized)
}

func TestRequireAuth(t *testing.T) {
	protected := auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(common.WithUserID(req.Context(), "user-1"))
	protected.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestContextTokenSource(t *testing.T) {
	src := auth.ContextTokenSource{}
	_, ok := src.Token(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	require.False(t, ok)

	ctx := common.WithBearer(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "tok")
	token, ok := src.Token(ctx)
	require.True(t, ok)
	require.Equal(t, "tok", token)
}
