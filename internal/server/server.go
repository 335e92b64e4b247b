package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/R4255/news-portal/internal/auth"
	"github.com/R4255/news-portal/internal/imageproxy"
	"github.com/R4255/news-portal/internal/news"
)

//go:embed templates/*.html templates/*.md
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var md = goldmark.New()

// Pinger reports whether the user store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires the server to its collaborators.
type Options struct {
	News   *news.Service
	Images *imageproxy.Proxy
	Auth   *auth.Manager
	Store  Pinger

	// RequireLogin gates the headline pages, the JSON API and the image
	// proxy behind a session.
	RequireLogin bool
	// SiteURL is used for absolute links in the RSS feed.
	SiteURL string
	Logger  *zap.Logger
}

// Server is the HTTP server for the news portal.
type Server struct {
	news         *news.Service
	images       *imageproxy.Proxy
	auth         *auth.Manager
	store        Pinger
	requireLogin bool
	siteURL      string
	log          *zap.Logger

	pages   map[string]*template.Template
	about   string
	mux     *http.ServeMux
	handler http.Handler
}

// New creates a new Server.
func New(opts Options) (*Server, error) {
	if opts.News == nil || opts.Images == nil || opts.Auth == nil {
		return nil, errors.New("server: news, images and auth are required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"pageURL":  pageURL,
		"title":    func(c news.Category) string { return c.Title() },
		"add1":     func(n int) int { return n + 1 },
		"sub1":     func(n int) int { return n - 1 },
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so {{define "content"}} does not collide.
	pageNames := []string{"index.html", "login.html", "register.html", "about.html", "error.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	aboutSrc, err := templateFS.ReadFile("templates/about.md")
	if err != nil {
		return nil, fmt.Errorf("reading about page: %w", err)
	}

	s := &Server{
		news:         opts.News,
		images:       opts.Images,
		auth:         opts.Auth,
		store:        opts.Store,
		requireLogin: opts.RequireLogin,
		siteURL:      opts.SiteURL,
		log:          log.Named("server"),
		pages:        pages,
		about:        string(aboutSrc),
		mux:          http.NewServeMux(),
	}
	s.routes()

	var h http.Handler = http.HandlerFunc(s.dispatch)
	h = s.metrics(h)
	h = s.logRequests(h)
	h = requestID(h)
	h = s.recoverPanics(h)
	s.handler = h
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Headlines
	s.mux.Handle("GET /{$}", s.page(s.handleHeadlines))
	s.mux.Handle("GET /category/{category}", s.page(s.handleHeadlines))
	s.mux.Handle("GET /category/{category}/page/{page}", s.page(s.handleHeadlines))
	s.mux.Handle("GET /search", s.page(s.handleHeadlines))
	s.mux.Handle("GET /api/news", s.api(s.handleAPINews))
	s.mux.HandleFunc("GET /feed", s.handleFeed)
	s.mux.HandleFunc("GET /feed/{category}", s.handleFeed)

	// Accounts
	s.mux.HandleFunc("GET /login", s.handleLoginForm)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("GET /register", s.handleRegisterForm)
	s.mux.HandleFunc("POST /register", s.handleRegister)
	s.mux.HandleFunc("GET /signup", s.handleRegisterForm)
	s.mux.HandleFunc("POST /signup", s.handleRegister)
	s.mux.HandleFunc("GET /logout", s.handleLogout)

	// Misc
	s.mux.HandleFunc("GET /about", s.handleAbout)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("/", s.handleNotFound)
}

// dispatch sends image proxy requests straight to their handler. The mux
// would clean the "//" inside the embedded URL and redirect.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, news.ImageProxyPrefix) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.page(s.handleProxyImage).ServeHTTP(w, r)
		return
	}
	s.mux.ServeHTTP(w, r)
}

// page gates a browser-facing handler when login is required.
func (s *Server) page(h http.HandlerFunc) http.Handler {
	if !s.requireLogin {
		return h
	}
	return s.auth.Require(h)
}

// api gates a JSON handler when login is required.
func (s *Server) api(h http.HandlerFunc) http.Handler {
	if !s.requireLogin {
		return h
	}
	return s.auth.RequireAPI(h)
}

// baseData is the template data every page shares.
func (s *Server) baseData(w http.ResponseWriter, r *http.Request) map[string]any {
	user, _ := s.auth.CurrentUser(r)
	return map[string]any{
		"User":         user,
		"Flashes":      s.auth.Flashes(w, r),
		"Categories":   news.Categories,
		"RequireLogin": s.requireLogin,
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.log.Error("template not found", zap.String("template", name))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	base := s.baseData(w, r)
	for k, v := range data {
		base[k] = v
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", base); err != nil {
		s.log.Error("rendering template", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int) {
	s.render(w, r, status, "error.html", map[string]any{
		"Status":  status,
		"Message": http.StatusText(status),
	})
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// pageURL links to page n of the listing q came from.
func pageURL(q news.Query, n int) string {
	if q.Search != "" {
		v := url.Values{}
		v.Set("category", string(q.Category))
		v.Set("page", strconv.Itoa(n))
		v.Set("q", q.Search)
		return "/search?" + v.Encode()
	}
	if n <= 1 {
		return "/category/" + string(q.Category)
	}
	return "/category/" + string(q.Category) + "/page/" + strconv.Itoa(n)
}

// Serve runs the server on addr until ctx is cancelled or the process
// receives SIGINT/SIGTERM, then shuts down gracefully.
func Serve(ctx context.Context, srv *Server, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		srv.log.Info("server listening", zap.String("url", "http://"+addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	srv.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
