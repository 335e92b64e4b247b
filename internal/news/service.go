package news

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/R4255/news-portal/internal/cache"
	"github.com/R4255/news-portal/internal/metrics"
	"github.com/R4255/news-portal/internal/newsapi"
)

// Upstream is the headline source the service caches.
type Upstream interface {
	TopHeadlines(ctx context.Context, p newsapi.Params) (newsapi.Headlines, error)
}

// Options configures a Service.
type Options struct {
	Language string
	TTL      time.Duration
	// MaxEntries caps the number of cached queries. Zero means unbounded.
	MaxEntries int
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Service fetches headlines through a TTL cache keyed by Query.
type Service struct {
	upstream Upstream
	language string
	timeout  time.Duration
	log      *zap.Logger
	memo     *cache.Memo[Query, newsapi.Headlines]
}

// NewService wraps upstream with a TTL cache.
func NewService(upstream Upstream, opts Options) *Service {
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.TTL == 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Service{
		upstream: upstream,
		language: opts.Language,
		timeout:  opts.Timeout,
		log:      opts.Logger.Named("news"),
	}
	s.memo = cache.WithTTL("headlines", Query.Key, opts.TTL, s.fetchUpstream)
	s.memo.SetMaxEntries(opts.MaxEntries)
	return s
}

// Fetch returns the headlines for q. It never fails: when the upstream call
// fails the error is logged and an empty result is returned, and nothing is
// cached so the next call retries.
func (s *Service) Fetch(ctx context.Context, q Query) newsapi.Headlines {
	h, err := s.memo.Get(ctx, q)
	if err != nil {
		s.log.Warn("headline fetch failed",
			zap.String("category", string(q.Category)),
			zap.Int("page", q.Page),
			zap.String("query", q.Search),
			zap.Error(err))
		return newsapi.Empty()
	}
	return h
}

// Page fetches q and normalizes it for display.
func (s *Service) Page(ctx context.Context, q Query) PageResult {
	return Normalize(q, s.Fetch(ctx, q))
}

// CacheLen returns the number of cached headline pages.
func (s *Service) CacheLen() int {
	return s.memo.Len()
}

// SetClock replaces the cache time source. Intended for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.memo.SetClock(now)
}

func (s *Service) fetchUpstream(ctx context.Context, q Query) (newsapi.Headlines, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	h, err := s.upstream.TopHeadlines(ctx, newsapi.Params{
		Category: string(q.Category),
		Language: s.language,
		Page:     q.Page,
		PageSize: PageSize,
		Query:    q.Search,
	})
	metrics.UpstreamDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(string(q.Category), "error").Inc()
		return newsapi.Headlines{}, err
	}
	metrics.UpstreamRequests.WithLabelValues(string(q.Category), "ok").Inc()

	s.log.Debug("fetched headlines",
		zap.String("category", string(q.Category)),
		zap.Int("page", q.Page),
		zap.Int("articles", len(h.Articles)),
		zap.Int("total", h.TotalResults))
	return h, nil
}
