// Package news turns a category/page/search request into a page of
// display-ready headlines: it coerces the request, fetches through a TTL
// cache, and normalizes the raw articles.
package news

import (
	"strconv"
	"strings"
)

// Category is one of the fixed headline categories.
type Category string

const (
	General       Category = "general"
	Business      Category = "business"
	Entertainment Category = "entertainment"
	Health        Category = "health"
	Science       Category = "science"
	Sports        Category = "sports"
	Technology    Category = "technology"
)

// Categories lists every category in display order.
var Categories = []Category{General, Business, Entertainment, Health, Science, Sports, Technology}

const (
	PageSize         = 12
	MaxPages         = 5
	MaxResults       = PageSize * MaxPages
	DescriptionLimit = 150
	Ellipsis         = "..."

	DefaultTitle      = "No title available"
	DefaultURL        = "#"
	DefaultSource     = "Unknown"
	UnknownDate       = "Unknown date"
	PlaceholderImage  = "/static/img/placeholder.svg"
	ImageProxyPrefix  = "/proxy_image/"
	publishedAtLayout = "2006-01-02T15:04:05Z"
	displayDateLayout = "January 02, 2006"
)

// ParseCategory maps s onto the fixed category set. Anything unrecognized
// becomes General.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c
		}
	}
	return General
}

// Title returns the category name for display.
func (c Category) Title() string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

// ClampPage returns page if it lies in [1, MaxPages], else 1.
func ClampPage(page int) int {
	if page < 1 || page > MaxPages {
		return 1
	}
	return page
}

// ParsePage parses and clamps a page number; unparseable text yields 1.
func ParsePage(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 1
	}
	return ClampPage(n)
}

// Query is a coerced headline request. It is comparable and serves as the
// cache key.
type Query struct {
	Category Category
	Page     int
	Search   string
}

// NewQuery builds a Query from untrusted input.
func NewQuery(category string, page int, search string) Query {
	return Query{
		Category: ParseCategory(category),
		Page:     ClampPage(page),
		Search:   strings.TrimSpace(search),
	}
}

// Key is the cache key for q.
func (q Query) Key() string {
	return string(q.Category) + "|" + strconv.Itoa(q.Page) + "|" + q.Search
}
