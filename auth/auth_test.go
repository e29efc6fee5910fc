package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return Config{PasswordHash: string(hash), TokenSecret: "test-secret", SessionTTL: time.Hour}
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig(t)
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.Enabled())

	assert.NoError(t, Config{}.Validate())
	assert.False(t, Config{}.Enabled())

	assert.Error(t, Config{PasswordHash: cfg.PasswordHash}.Validate())
	assert.Error(t, Config{TokenSecret: "x"}.Validate())
	assert.Error(t, Config{PasswordHash: "plain", TokenSecret: "x"}.Validate())
}

func TestLogin(t *testing.T) {
	a := New(testConfig(t))

	result, session, err := a.Login("s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), result.ExpiresAt, time.Minute)
	require.NotNil(t, session.Workspace)

	got, err := a.Authenticate(result.Token)
	require.NoError(t, err)
	assert.Same(t, session, got)

	_, _, err = a.Login("wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = a.Login("")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginDisabled(t *testing.T) {
	a := New(Config{})
	_, _, err := a.Login("anything")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = a.Authenticate("token")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestLogout(t *testing.T) {
	a := New(testConfig(t))
	result, session, err := a.Login("s3cret")
	require.NoError(t, err)

	a.Logout(session)

	_, err = a.Authenticate(result.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestTokenRejectsOtherAlgorithms(t *testing.T) {
	ts := TokenService{Secret: []byte("k"), Issuer: tokenIssuer, Duration: time.Hour}

	claims := Claims{SessionID: "abc", RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ts.Parse(unsigned)
	assert.Error(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = ts.Parse(hs512)
	assert.Error(t, err)
}

func TestTokenExpiredAndWrongSecret(t *testing.T) {
	ts := TokenService{Secret: []byte("k"), Issuer: tokenIssuer, Duration: time.Minute}

	expired, _, err := ts.Sign("abc", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = ts.Parse(expired)
	assert.Error(t, err)

	valid, _, err := ts.Sign("abc", time.Now())
	require.NoError(t, err)
	other := TokenService{Secret: []byte("other"), Issuer: tokenIssuer}
	_, err = other.Parse(valid)
	assert.Error(t, err)

	claims, err := ts.Parse(valid)
	require.NoError(t, err)
	assert.Equal(t, "abc", claims.SessionID)
}

func TestSessionStoreExpiry(t *testing.T) {
	store := NewSessionStore(time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	s := store.Create()
	_, ok := store.Get(s.ID)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = store.Get(s.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())

	assert.Equal(t, 1, store.Cleanup())
	assert.Equal(t, 0, store.Len())
}

func TestRunCleanupStops(t *testing.T) {
	store := NewSessionStore(time.Millisecond)
	store.Create()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.RunCleanup(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunCleanup did not stop after cancel")
	}
}

func TestMiddleware(t *testing.T) {
	a := New(testConfig(t))
	result, session, err := a.Login("s3cret")
	require.NoError(t, err)

	var seen *Session
	handler := Middleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + result.Token, http.StatusNoContent},
		{"lowercase scheme", "bearer " + result.Token, http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"basic scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/v1/admin/workspace/filters", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			if tt.status == http.StatusNoContent {
				assert.Same(t, session, seen)
			} else {
				assert.Nil(t, seen)
				assert.Contains(t, rr.Body.String(), `"code":401`)
			}
		})
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	handler := Middleware(New(Config{}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/refresh", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestOptionalMiddleware(t *testing.T) {
	a := New(testConfig(t))
	result, session, err := a.Login("s3cret")
	require.NoError(t, err)

	var seen *Session
	handler := Optional(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/fetch", nil)
	req.Header.Set("Authorization", "Bearer "+result.Token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Same(t, session, seen)

	seen = nil
	req = httptest.NewRequest(http.MethodPost, "/v1/fetch", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Nil(t, seen)
	assert.Equal(t, http.StatusOK, rr.Code)
}
