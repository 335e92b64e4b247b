package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://newsapi.org/v2"

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("newsapi: api key not configured")

// Source names the publisher of an article.
type Source struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`
}

// RawArticle is an article exactly as the headlines API returns it. Every
// field may be null.
type RawArticle struct {
	Source      *Source `json:"source"`
	Author      *string `json:"author"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	URL         *string `json:"url"`
	URLToImage  *string `json:"urlToImage"`
	PublishedAt *string `json:"publishedAt"`
	Content     *string `json:"content"`
}

// Headlines is a top-headlines response.
type Headlines struct {
	Status       string       `json:"status"`
	TotalResults int          `json:"totalResults"`
	Articles     []RawArticle `json:"articles"`
}

// Empty returns the zero-result response used when the upstream fails.
func Empty() Headlines {
	return Headlines{Status: "ok", Articles: []RawArticle{}}
}

// Params are the top-headlines query parameters.
type Params struct {
	Category string
	Language string
	Page     int
	PageSize int
	Query    string
}

func (p Params) values() url.Values {
	v := url.Values{}
	if p.Category != "" {
		v.Set("category", p.Category)
	}
	if p.Language != "" {
		v.Set("language", p.Language)
	}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	if p.Query != "" {
		v.Set("q", p.Query)
	}
	return v
}

// APIError is an error reported by the API itself: a non-200 status or a
// body with status "error".
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("newsapi: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("newsapi: HTTP %d", e.StatusCode)
}

// Options configures a Client.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Retries int
	Logger  *zap.Logger
}

// Client calls the NewsAPI top-headlines endpoint.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new NewsAPI client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := retryablehttp.NewClient()
	r.RetryMax = opts.Retries
	r.RetryWaitMin = 200 * time.Millisecond
	r.RetryWaitMax = 2 * time.Second
	r.HTTPClient.Timeout = opts.Timeout
	r.Logger = &retryLogger{log: log.Named("newsapi")}
	// Hand 4xx/5xx bodies back to us instead of a generic "giving up" error.
	r.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    r.StandardClient(),
	}
}

// IsConfigured returns whether the API key is available.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// TopHeadlines fetches one page of top headlines.
func (c *Client) TopHeadlines(ctx context.Context, p Params) (Headlines, error) {
	if c.apiKey == "" {
		return Headlines{}, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/top-headlines?"+p.values().Encode(), nil)
	if err != nil {
		return Headlines{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("User-Agent", "newsportal/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return Headlines{}, fmt.Errorf("requesting headlines: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return Headlines{}, fmt.Errorf("reading response: %w", err)
	}

	var result struct {
		Headlines
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	decodeErr := json.Unmarshal(body, &result)

	if resp.StatusCode != http.StatusOK || result.Status == "error" {
		return Headlines{}, &APIError{
			StatusCode: resp.StatusCode,
			Code:       result.Code,
			Message:    result.Message,
		}
	}
	if decodeErr != nil {
		return Headlines{}, fmt.Errorf("decoding response: %w", decodeErr)
	}
	if result.Articles == nil {
		result.Articles = []RawArticle{}
	}
	return result.Headlines, nil
}

// retryLogger adapts zap to retryablehttp's LeveledLogger.
type retryLogger struct {
	log *zap.Logger
}

func (l *retryLogger) Error(msg string, kv ...any) { l.log.Sugar().Errorw(msg, kv...) }
func (l *retryLogger) Info(msg string, kv ...any)  { l.log.Sugar().Debugw(msg, kv...) }
func (l *retryLogger) Debug(msg string, kv ...any) { l.log.Sugar().Debugw(msg, kv...) }
func (l *retryLogger) Warn(msg string, kv ...any)  { l.log.Sugar().Warnw(msg, kv...) }
