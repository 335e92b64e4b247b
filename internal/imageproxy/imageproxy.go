package imageproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/R4255/news-portal/internal/cache"
	"github.com/R4255/news-portal/internal/metrics"
)

// ErrNotFound is returned for any image that could not be fetched. The
// underlying cause is wrapped for logging.
var ErrNotFound = errors.New("image not found")

// Image is a fetched remote image.
type Image struct {
	Data        []byte
	ContentType string
}

// Options configures a Proxy.
type Options struct {
	Timeout  time.Duration
	TTL      time.Duration
	MaxBytes int64
	// MaxEntries caps the image cache. Zero means unbounded.
	MaxEntries int
	// AllowPrivateNetworks lets the proxy fetch from loopback, private and
	// link-local addresses. Off by default.
	AllowPrivateNetworks bool
	Logger               *zap.Logger
	// Client overrides the HTTP client; its Timeout is replaced by Timeout.
	// The private network check only applies when Client has no Transport.
	Client *http.Client
}

// Proxy fetches remote images with a bounded timeout and caches them.
type Proxy struct {
	client   *http.Client
	maxBytes int64
	log      *zap.Logger
	memo     *cache.Memo[string, *Image]
}

// New creates a Proxy.
func New(opts Options) *Proxy {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.TTL == 0 {
		opts.TTL = time.Hour
	}
	if opts.MaxBytes == 0 {
		opts.MaxBytes = 10 << 20
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	client := &http.Client{}
	if opts.Client != nil {
		c := *opts.Client
		client = &c
	}
	client.Timeout = opts.Timeout
	if client.Transport == nil && !opts.AllowPrivateNetworks {
		client.Transport = publicTransport()
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return http.ErrUseLastResponse
		}
		return nil
	}

	p := &Proxy{
		client:   client,
		maxBytes: opts.MaxBytes,
		log:      opts.Logger.Named("imageproxy"),
	}
	p.memo = cache.WithTTL("images", func(u string) string { return u }, opts.TTL, p.fetch)
	p.memo.SetMaxEntries(opts.MaxEntries)
	return p
}

// Fetch returns the image at rawURL, from cache when fresh. Every failure is
// reported as ErrNotFound.
func (p *Proxy) Fetch(ctx context.Context, rawURL string) (*Image, error) {
	img, err := p.memo.Get(ctx, rawURL)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			err = fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		p.log.Debug("image fetch failed", zap.String("url", rawURL), zap.Error(err))
		return nil, err
	}
	return img, nil
}

// CacheLen returns the number of cached images.
func (p *Proxy) CacheLen() int {
	return p.memo.Len()
}

// RepairURL undoes the damage path cleaning does to an absolute URL carried
// in a request path: a collapsed "https:/host" scheme gets its second slash
// back and the request's raw query is re-attached.
func RepairURL(path, rawQuery string) string {
	for _, scheme := range []string{"http:/", "https:/"} {
		if strings.HasPrefix(path, scheme) && !strings.HasPrefix(path, scheme+"/") {
			path = scheme + "/" + strings.TrimPrefix(path, scheme)
			break
		}
	}
	if rawQuery != "" {
		path += "?" + rawQuery
	}
	return path
}

func (p *Proxy) fetch(ctx context.Context, rawURL string) (*Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		metrics.ImageFetches.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: parsing url: %w", ErrNotFound, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		metrics.ImageFetches.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: unsupported url %q", ErrNotFound, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		metrics.ImageFetches.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	req.Header.Set("User-Agent", "newsportal/1.0 (image proxy)")
	req.Header.Set("Accept", "image/*")

	resp, err := p.client.Do(req)
	if errors.Is(err, errBlockedAddress) {
		metrics.ImageFetches.WithLabelValues("blocked").Inc()
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if err != nil {
		metrics.ImageFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ImageFetches.WithLabelValues("bad_status").Inc()
		return nil, fmt.Errorf("%w: upstream status %d", ErrNotFound, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		metrics.ImageFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: reading body: %w", ErrNotFound, err)
	}
	if int64(len(data)) > p.maxBytes {
		metrics.ImageFetches.WithLabelValues("too_large").Inc()
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrNotFound, p.maxBytes)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	// Anything that is not an image would be served from our own origin.
	if mediaType, _, err := mime.ParseMediaType(ct); err != nil || !strings.HasPrefix(mediaType, "image/") {
		metrics.ImageFetches.WithLabelValues("not_image").Inc()
		return nil, fmt.Errorf("%w: content type %q", ErrNotFound, ct)
	}

	metrics.ImageFetches.WithLabelValues("ok").Inc()
	return &Image{Data: data, ContentType: ct}, nil
}
