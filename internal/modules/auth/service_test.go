package auth

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_admin INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	return db
}

func newTestService(t *testing.T) (*Service, *sql.DB) {
	db := setupTestDB(t)
	log := zerolog.New(nil).Level(zerolog.Disabled)
	users := NewUserRepository(db, log)
	return NewService(users, "test-secret", log), db
}

func TestRegisterAndLogin(t *testing.T) {
	svc, db := newTestService(t)
	defer db.Close()

	user, err := svc.Register("alice", "alice@example.com", "correct-horse")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)

	loggedIn, token, err := svc.Login("alice", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotEmpty(t, token)
}

func TestRegister_Validation(t *testing.T) {
	svc, db := newTestService(t)
	defer db.Close()

	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"empty username", "", "a@example.com", "long-enough"},
		{"bad email", "alice", "not-an-email", "long-enough"},
		{"short password", "alice", "a@example.com", "short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(tt.username, tt.email, tt.password)
			assert.Error(t, err)
		})
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc, db := newTestService(t)
	defer db.Close()

	_, err := svc.Register("alice", "alice@example.com", "correct-horse")
	require.NoError(t, err)

	_, err = svc.Register("alice", "other@example.com", "correct-horse")
	assert.Error(t, err)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, db := newTestService(t)
	defer db.Close()

	_, err := svc.Register("alice", "alice@example.com", "correct-horse")
	require.NoError(t, err)

	_, _, err = svc.Login("alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login("nobody", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateToken(t *testing.T) {
	svc, db := newTestService(t)
	defer db.Close()

	user, err := svc.Register("alice", "alice@example.com", "correct-horse")
	require.NoError(t, err)

	token, err := svc.GenerateToken(user)
	require.NoError(t, err)

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	svc, db := newTestService(t)
	defer db.Close()

	user, err := svc.Register("alice", "alice@example.com", "correct-horse")
	require.NoError(t, err)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	other := NewService(svc.users, "different-secret", log)

	token, err := other.GenerateToken(user)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, db := newTestService(t)
	defer db.Close()

	_, err := svc.Register("alice", "alice@example.com", "correct-horse")
	require.NoError(t, err)

	token, err := svc.GenerateResetToken("alice@example.com")
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(token, "new-password-1"))

	_, _, err = svc.Login("alice", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login("alice", "new-password-1")
	assert.NoError(t, err)
}

func TestRequestPasswordReset_TokenNeverLeavesServer(t *testing.T) {
	svc, db := newTestService(t)
	defer db.Close()

	_, err := svc.Register("alice", "alice@example.com", "correct-horse")
	require.NoError(t, err)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	handlers := NewHandlers(svc, log)

	req := httptest.NewRequest(http.MethodPost, "/password-reset/request",
		strings.NewReader(`{"email":"alice@example.com"}`))
	rec := httptest.NewRecorder()
	handlers.HandleRequestPasswordReset(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	// The response carries only the neutral message. No token material may
	// reach an unauthenticated caller.
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "reset_token")
	assert.NotContains(t, body, "token")
	assert.Len(t, body, 1)
	assert.Contains(t, body["message"], "If the email is registered")

	// The account stays intact: the old password still works
	_, _, err = svc.Login("alice", "correct-horse")
	assert.NoError(t, err)
}

func TestRequestPasswordReset_UnknownEmailIndistinguishable(t *testing.T) {
	svc, db := newTestService(t)
	defer db.Close()

	log := zerolog.New(nil).Level(zerolog.Disabled)
	handlers := NewHandlers(svc, log)

	req := httptest.NewRequest(http.MethodPost, "/password-reset/request",
		strings.NewReader(`{"email":"nobody@example.com"}`))
	rec := httptest.NewRecorder()
	handlers.HandleRequestPasswordReset(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "If the email is registered")
}

func TestResetPassword_AccessTokenRejected(t *testing.T) {
	svc, db := newTestService(t)
	defer db.Close()

	user, err := svc.Register("alice", "alice@example.com", "correct-horse")
	require.NoError(t, err)

	// An access token has no password_reset purpose claim
	token, err := svc.GenerateToken(user)
	require.NoError(t, err)

	err = svc.ResetPassword(token, "new-password-1")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireAuth(t *testing.T) {
	svc, db := newTestService(t)
	defer db.Close()

	user, err := svc.Register("alice", "alice@example.com", "correct-horse")
	require.NoError(t, err)

	token, err := svc.GenerateToken(user)
	require.NoError(t, err)

	handler := svc.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := UserFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, user.ID, got.ID)
		w.WriteHeader(http.StatusOK)
	}))

	// Valid token
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Missing header
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Malformed header
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	svc, db := newTestService(t)
	defer db.Close()

	user, err := svc.Register("alice", "alice@example.com", "correct-horse")
	require.NoError(t, err)

	admin, err := svc.Register("root", "root@example.com", "correct-horse")
	require.NoError(t, err)
	_, err = db.Exec("UPDATE users SET is_admin = 1 WHERE id = ?", admin.ID)
	require.NoError(t, err)

	handler := svc.RequireAuth(svc.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	userToken, err := svc.GenerateToken(user)
	require.NoError(t, err)
	adminUser, err := svc.users.GetByID(admin.ID)
	require.NoError(t, err)
	adminToken, err := svc.GenerateToken(adminUser)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
