package news

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/R4255/news-portal/internal/newsapi"
)

// DisplayArticle is a RawArticle with every field defaulted for rendering.
type DisplayArticle struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	URL           string `json:"url"`
	ImageURL      string `json:"imageUrl"`
	SourceName    string `json:"sourceName"`
	PublishedDate string `json:"publishedDate"`
}

// PageResult is one rendered page of headlines.
type PageResult struct {
	Query        Query
	Articles     []DisplayArticle
	TotalResults int
	TotalPages   int
}

// Pages returns 1..TotalPages for pagination links.
func (p PageResult) Pages() []int {
	pages := make([]int, p.TotalPages)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}

// HasPrev reports whether a previous page exists.
func (p PageResult) HasPrev() bool { return p.Query.Page > 1 }

// HasNext reports whether a next page exists.
func (p PageResult) HasNext() bool { return p.Query.Page < p.TotalPages }

// Normalize clamps the result counts and converts each raw article. It has
// no side effects.
func Normalize(q Query, raw newsapi.Headlines) PageResult {
	total := ClampResults(raw.TotalResults)
	result := PageResult{
		Query:        q,
		Articles:     make([]DisplayArticle, 0, len(raw.Articles)),
		TotalResults: total,
		TotalPages:   TotalPages(total),
	}
	for _, a := range raw.Articles {
		result.Articles = append(result.Articles, NormalizeArticle(a))
	}
	return result
}

// ClampResults limits a total result count to [0, MaxResults].
func ClampResults(total int) int {
	return max(0, min(total, MaxResults))
}

// TotalPages is the page count for a clamped total.
func TotalPages(clampedTotal int) int {
	return min(clampedTotal/PageSize+1, MaxPages)
}

// NormalizeArticle applies the display defaults to a single article.
func NormalizeArticle(a newsapi.RawArticle) DisplayArticle {
	d := DisplayArticle{
		Title:         orDefault(a.Title, DefaultTitle),
		Description:   TruncateDescription(deref(a.Description)),
		URL:           orDefault(a.URL, DefaultURL),
		ImageURL:      ProxyImageURL(deref(a.URLToImage)),
		SourceName:    DefaultSource,
		PublishedDate: FormatDate(deref(a.PublishedAt)),
	}
	if a.Source != nil {
		d.SourceName = orDefault(a.Source.Name, DefaultSource)
	}
	return d
}

// TruncateDescription cuts s to DescriptionLimit runes, appending Ellipsis
// only when something was cut.
func TruncateDescription(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= DescriptionLimit {
		return s
	}
	runes := []rune(s)
	return string(runes[:DescriptionLimit]) + Ellipsis
}

// ProxyImageURL routes a remote image through the local proxy, or returns
// the placeholder when there is no image. The fragment is dropped: it is
// never sent to the image host and would end the proxy path early.
func ProxyImageURL(remote string) string {
	remote, _, _ = strings.Cut(strings.TrimSpace(remote), "#")
	if remote == "" {
		return PlaceholderImage
	}
	return ImageProxyPrefix + remote
}

// FormatDate renders a "2006-01-02T15:04:05Z" timestamp as "January 02, 2006".
// Absent or malformed input yields UnknownDate.
func FormatDate(publishedAt string) string {
	if publishedAt == "" {
		return UnknownDate
	}
	t, err := time.Parse(publishedAtLayout, publishedAt)
	if err != nil {
		return UnknownDate
	}
	return t.Format(displayDateLayout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDefault(s *string, def string) string {
	if v := strings.TrimSpace(deref(s)); v != "" {
		return v
	}
	return def
}
