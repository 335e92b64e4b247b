// Package auth gates the portal behind username/password accounts. Sessions
// live in a signed cookie; passwords are stored as bcrypt hashes.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/R4255/news-portal/internal/database"
)

var (
	// ErrInvalidCredentials is returned for an unknown user or a wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserExists is returned when registering a taken username.
	ErrUserExists = database.ErrUserExists
)

const (
	SessionName = "newsportal_session"
	userIDKey   = "user_id"

	// DefaultMaxAge is how long a login lasts.
	DefaultMaxAge = 7 * 24 * time.Hour
)

// UserStore is the subset of the user database the gate needs. Both the
// SQLite and PostgreSQL stores satisfy it.
type UserStore interface {
	CreateUser(ctx context.Context, username string, email *string, passwordHash string) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*database.User, error)
	GetUserByID(ctx context.Context, id int64) (*database.User, error)
	TouchLogin(ctx context.Context, id int64, at time.Time) error
}

// Options configures a Manager.
type Options struct {
	// Secret signs the session cookie. When empty a random key is generated
	// and sessions do not survive a restart.
	Secret     string
	Secure     bool
	MaxAge     time.Duration
	BcryptCost int
	Logger     *zap.Logger
}

// Manager owns the session store and the user accounts behind it.
type Manager struct {
	users    UserStore
	sessions *sessions.CookieStore
	cost     int
	log      *zap.Logger
	now      func() time.Time

	// dummyHash is compared against when the user does not exist so both
	// failure paths cost one bcrypt comparison.
	dummyHash []byte
}

// NewManager creates a Manager backed by users.
func NewManager(users UserStore, opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("auth")

	secret := []byte(opts.Secret)
	if len(secret) == 0 {
		log.Warn("no session secret configured, generating an ephemeral one")
		secret = securecookie.GenerateRandomKey(32)
	}
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(int(maxAge.Seconds()))

	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)

	return &Manager{
		users:     users,
		sessions:  store,
		cost:      cost,
		log:       log,
		now:       time.Now,
		dummyHash: dummy,
	}
}

// Register validates form and creates the account.
func (m *Manager) Register(ctx context.Context, form RegisterForm) (*database.User, error) {
	form.normalize()
	if err := form.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), m.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	var email *string
	if form.Email != "" {
		email = &form.Email
	}
	id, err := m.users.CreateUser(ctx, form.Username, email, string(hash))
	if err != nil {
		if errors.Is(err, database.ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	m.log.Info("user registered", zap.Int64("user_id", id), zap.String("username", form.Username))

	return &database.User{
		ID:           id,
		Username:     form.Username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    m.now().UTC(),
	}, nil
}

// Authenticate checks a username/password pair.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (*database.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := m.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if u == nil {
		_ = bcrypt.CompareHashAndPassword(m.dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := m.users.TouchLogin(ctx, u.ID, m.now()); err != nil {
		m.log.Warn("recording login time", zap.Int64("user_id", u.ID), zap.Error(err))
	}
	return u, nil
}

// Login stores the user in the session cookie.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, u *database.User) error {
	s := m.session(r)
	s.Values[userIDKey] = u.ID
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Logout clears the session cookie.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	s := m.session(r)
	delete(s.Values, userIDKey)
	s.Options.MaxAge = -1
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// CurrentUser returns the logged-in user, if any.
func (m *Manager) CurrentUser(r *http.Request) (*database.User, bool) {
	if u, ok := UserFromContext(r.Context()); ok {
		return u, true
	}

	s := m.session(r)
	id, ok := s.Values[userIDKey].(int64)
	if !ok {
		return nil, false
	}
	u, err := m.users.GetUserByID(r.Context(), id)
	if err != nil {
		m.log.Error("loading session user", zap.Int64("user_id", id), zap.Error(err))
		return nil, false
	}
	if u == nil {
		return nil, false
	}
	return u, true
}

// Require redirects anonymous visitors to the login page.
func (m *Manager) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := m.CurrentUser(r)
		if !ok {
			target := "/login?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequireAPI answers anonymous callers with 401 and a JSON error body.
func (m *Manager) RequireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := m.CurrentUser(r)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"status":  "error",
				"message": "authentication required",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// session returns the request's session. A cookie that fails to decode
// (for example after a secret change) yields a fresh session.
func (m *Manager) session(r *http.Request) *sessions.Session {
	s, err := m.sessions.Get(r, SessionName)
	if err != nil {
		m.log.Debug("discarding undecodable session", zap.Error(err))
	}
	return s
}

// SafeNext returns next when it is a local absolute path, "/" otherwise.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}

type ctxKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *database.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the user stored by WithUser.
func UserFromContext(ctx context.Context) (*database.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*database.User)
	return u, ok && u != nil
}
