package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/R4255/news-portal/internal/database"
)

func newTestManager(t *testing.T) (*Manager, *database.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "auth.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := NewManager(db, Options{
		Secret:     "test-secret-test-secret-test-sec",
		BcryptCost: bcrypt.MinCost,
		Logger:     zaptest.NewLogger(t),
	})
	return m, db
}

// withCookies copies the cookies set by rec onto r. When a cookie was set
// more than once the last value wins, as in a browser.
func withCookies(r *http.Request, rec *httptest.ResponseRecorder) *http.Request {
	latest := map[string]*http.Cookie{}
	var order []string
	for _, c := range rec.Result().Cookies() {
		if _, seen := latest[c.Name]; !seen {
			order = append(order, c.Name)
		}
		latest[c.Name] = c
	}
	for _, name := range order {
		r.AddCookie(latest[name])
	}
	return r
}

func TestRegisterAndAuthenticate(t *testing.T) {
	m, db := newTestManager(t)
	ctx := context.Background()

	u, err := m.Register(ctx, RegisterForm{Username: "  reader ", Email: "r@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "reader", u.Username)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	got, err := m.Authenticate(ctx, "Reader", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	stored, err := db.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt, "successful login is recorded")

	_, err = m.Authenticate(ctx, "reader", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = m.Authenticate(ctx, "nobody", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = m.Authenticate(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicate(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Register(ctx, RegisterForm{Username: "reader", Password: "password1"})
	require.NoError(t, err)
	_, err = m.Register(ctx, RegisterForm{Username: "READER", Password: "password2"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRegisterValidation(t *testing.T) {
	m, _ := newTestManager(t)

	tests := []struct {
		name  string
		form  RegisterForm
		field string
	}{
		{"short username", RegisterForm{Username: "ab", Password: "password1"}, "Username"},
		{"bad characters", RegisterForm{Username: "bad name!", Password: "password1"}, "Username"},
		{"short password", RegisterForm{Username: "reader", Password: "short"}, "Password"},
		{"long password", RegisterForm{Username: "reader", Password: strings.Repeat("x", 73)}, "Password"},
		{"bad email", RegisterForm{Username: "reader", Email: "not-an-email", Password: "password1"}, "Email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Register(context.Background(), tt.form)
			var verrs validation.Errors
			require.ErrorAs(t, err, &verrs)
			assert.Contains(t, verrs, tt.field)
		})
	}
}

func TestRequireRedirectsAnonymous(t *testing.T) {
	m, _ := newTestManager(t)
	h := m.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/category/sports?q=cup", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?next=%2Fcategory%2Fsports%3Fq%3Dcup", rec.Header().Get("Location"))
}

func TestRequireAPIUnauthorized(t *testing.T) {
	m, _ := newTestManager(t)
	h := m.RequireAPI(http.NotFoundHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/news", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body["status"])
}

func TestLoginSessionRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	u, err := m.Register(context.Background(), RegisterForm{Username: "reader", Password: "password1"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, m.Login(rec, httptest.NewRequest(http.MethodPost, "/login", nil), u))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	var seen *database.User
	h := m.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
	}))
	next := httptest.NewRecorder()
	h.ServeHTTP(next, withCookies(httptest.NewRequest(http.MethodGet, "/", nil), rec))
	assert.Equal(t, http.StatusOK, next.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "reader", seen.Username)

	out := httptest.NewRecorder()
	require.NoError(t, m.Logout(out, withCookies(httptest.NewRequest(http.MethodGet, "/logout", nil), rec)))
	_, ok := m.CurrentUser(withCookies(httptest.NewRequest(http.MethodGet, "/", nil), out))
	assert.False(t, ok, "session is cleared after logout")
}

func TestSessionForDeletedUser(t *testing.T) {
	m, db := newTestManager(t)
	u, err := m.Register(context.Background(), RegisterForm{Username: "reader", Password: "password1"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, m.Login(rec, httptest.NewRequest(http.MethodPost, "/login", nil), u))
	_, err = db.DeleteUser(context.Background(), u.ID)
	require.NoError(t, err)

	_, ok := m.CurrentUser(withCookies(httptest.NewRequest(http.MethodGet, "/", nil), rec))
	assert.False(t, ok)
}

func TestForeignCookieIsIgnored(t *testing.T) {
	m, _ := newTestManager(t)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionName, Value: "garbage"})
	_, ok := m.CurrentUser(r)
	assert.False(t, ok)
}

func TestFlashes(t *testing.T) {
	m, _ := newTestManager(t)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/register", nil)
	require.NoError(t, m.AddFlash(rec, r, FlashError, "Username already taken"))
	require.NoError(t, m.AddFlash(rec, r, FlashInfo, "Try another"))

	read := httptest.NewRecorder()
	flashes := m.Flashes(read, withCookies(httptest.NewRequest(http.MethodGet, "/register", nil), rec))
	assert.Equal(t, []Flash{
		{Kind: FlashError, Message: "Username already taken"},
		{Kind: FlashInfo, Message: "Try another"},
	}, flashes)

	again := m.Flashes(httptest.NewRecorder(), withCookies(httptest.NewRequest(http.MethodGet, "/", nil), read))
	assert.Empty(t, again, "flashes are shown once")
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/category/sports":     "/category/sports",
		"/search?q=go":         "/search?q=go",
		"https://evil.example": "/",
		"//evil.example/path":  "/",
		"/\\evil.example":      "/",
		"relative/path":        "/",
		"javascript:alert(1)":  "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeNext(in), "next=%q", in)
	}
}
