package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"go.uber.org/zap"

	"github.com/R4255/news-portal/internal/imageproxy"
	"github.com/R4255/news-portal/internal/news"
)

// queryFromRequest reads category and page from the path when the route has
// them, falling back to the query string, and q from the query string.
func queryFromRequest(r *http.Request) news.Query {
	params := r.URL.Query()

	category := r.PathValue("category")
	if category == "" {
		category = params.Get("category")
	}
	pageText := r.PathValue("page")
	if pageText == "" {
		pageText = params.Get("page")
	}
	page := 1
	if pageText != "" {
		page = news.ParsePage(pageText)
	}
	return news.NewQuery(category, page, params.Get("q"))
}

func (s *Server) handleHeadlines(w http.ResponseWriter, r *http.Request) {
	q := queryFromRequest(r)
	result := s.news.Page(r.Context(), q)

	title := q.Category.Title() + " Headlines"
	if q.Search != "" {
		title = "Search: " + q.Search
	}
	s.render(w, r, http.StatusOK, "index.html", map[string]any{
		"Title":  title,
		"Result": result,
	})
}

func (s *Server) handleAPINews(w http.ResponseWriter, r *http.Request) {
	h := s.news.Fetch(r.Context(), queryFromRequest(r))
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleProxyImage(w http.ResponseWriter, r *http.Request) {
	target := imageproxy.RepairURL(
		strings.TrimPrefix(r.URL.EscapedPath(), news.ImageProxyPrefix),
		r.URL.RawQuery,
	)

	img, err := s.images.Fetch(r.Context(), target)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
	if r.Method == http.MethodHead {
		return
	}
	w.Write(img.Data)
}

// handleFeed serves the first page of a category as RSS 2.0.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	q := news.NewQuery(r.PathValue("category"), 1, r.URL.Query().Get("q"))
	result := s.news.Page(r.Context(), q)

	base := strings.TrimSuffix(s.siteURL, "/")
	feed := &feeds.Feed{
		Title:       "News Portal - " + q.Category.Title(),
		Link:        &feeds.Link{Href: base + pageURL(q, 1)},
		Description: "Top " + string(q.Category) + " headlines",
		Created:     time.Now(),
	}

	for _, a := range result.Articles {
		item := &feeds.Item{
			Title:       a.Title,
			Link:        &feeds.Link{Href: a.URL},
			Description: a.Description,
			Author:      &feeds.Author{Name: a.SourceName},
			Id:          a.URL,
		}
		if t, err := time.Parse("January 02, 2006", a.PublishedDate); err == nil {
			item.Created = t
		}
		feed.Items = append(feed.Items, item)
	}

	rss, err := feed.ToRss()
	if err != nil {
		s.log.Error("generating rss", zap.String("category", string(q.Category)), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write([]byte(rss))
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "about.html", map[string]any{
		"Title": "About",
		"About": s.about,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	database := "ok"
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.log.Warn("health check: database unreachable", zap.Error(err))
			status, database = "degraded", "unreachable"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]any{
		"status":   status,
		"database": database,
		"caches": map[string]int{
			"headlines": s.news.CacheLen(),
			"images":    s.images.CacheLen(),
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
