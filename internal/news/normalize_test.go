package news

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R4255/news-portal/internal/newsapi"
)

func ptr(s string) *string { return &s }

func TestClampBoundaries(t *testing.T) {
	tests := []struct {
		total, wantResults, wantPages int
	}{
		{0, 0, 1},
		{59, 59, 5},
		{60, 60, 5},
		{61, 60, 5},
		{1000, 60, 5},
		{11, 11, 1},
		{12, 12, 2},
		{-5, 0, 1},
	}
	for _, tt := range tests {
		r := Normalize(Query{Category: General, Page: 1}, newsapi.Headlines{TotalResults: tt.total})
		assert.Equal(t, tt.wantResults, r.TotalResults, "total %d", tt.total)
		assert.Equal(t, tt.wantPages, r.TotalPages, "total %d", tt.total)
	}
}

func TestNormalizeAllFieldsAbsent(t *testing.T) {
	d := NormalizeArticle(newsapi.RawArticle{})
	assert.Equal(t, DisplayArticle{
		Title:         "No title available",
		Description:   "",
		URL:           "#",
		ImageURL:      PlaceholderImage,
		SourceName:    "Unknown",
		PublishedDate: "Unknown date",
	}, d)
}

func TestNormalizeFullArticle(t *testing.T) {
	d := NormalizeArticle(newsapi.RawArticle{
		Source:      &newsapi.Source{Name: ptr("Example Times")},
		Title:       ptr("Headline"),
		Description: ptr("Short description."),
		URL:         ptr("https://example.com/a"),
		URLToImage:  ptr("https://cdn.example.com/a.jpg"),
		PublishedAt: ptr("2024-01-15T10:30:00Z"),
	})
	assert.Equal(t, "Headline", d.Title)
	assert.Equal(t, "Short description.", d.Description)
	assert.Equal(t, "https://example.com/a", d.URL)
	assert.Equal(t, "/proxy_image/https://cdn.example.com/a.jpg", d.ImageURL)
	assert.Equal(t, "Example Times", d.SourceName)
	assert.Equal(t, "January 15, 2024", d.PublishedDate)
}

func TestNormalizeSourceWithoutName(t *testing.T) {
	d := NormalizeArticle(newsapi.RawArticle{Source: &newsapi.Source{ID: ptr("bbc-news")}})
	assert.Equal(t, "Unknown", d.SourceName)
}

func TestProxyImageURL(t *testing.T) {
	tests := []struct {
		remote, want string
	}{
		{"", PlaceholderImage},
		{"   ", PlaceholderImage},
		{"#frag", PlaceholderImage},
		{"https://img.example.com/1.jpg", "/proxy_image/https://img.example.com/1.jpg"},
		{" https://img.example.com/1.jpg\n", "/proxy_image/https://img.example.com/1.jpg"},
		{"https://img.example.com/1.jpg?w=300#top", "/proxy_image/https://img.example.com/1.jpg?w=300"},
		{"https://img.example.com/a%23b.jpg", "/proxy_image/https://img.example.com/a%23b.jpg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ProxyImageURL(tt.remote), tt.remote)
	}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "January 15, 2024", FormatDate("2024-01-15T10:30:00Z"))
	assert.Equal(t, "March 03, 2023", FormatDate("2023-03-03T00:00:00Z"))
	assert.Equal(t, "Unknown date", FormatDate("not-a-date"))
	assert.Equal(t, "Unknown date", FormatDate(""))
	assert.Equal(t, "Unknown date", FormatDate("2024-01-15"))
	assert.Equal(t, "Unknown date", FormatDate("2024-13-45T10:30:00Z"))
}

func TestTruncateDescription(t *testing.T) {
	exact := strings.Repeat("a", DescriptionLimit)
	assert.Equal(t, exact, TruncateDescription(exact))

	short := "A short description."
	assert.Equal(t, short, TruncateDescription(short))

	long := strings.Repeat("b", DescriptionLimit+1)
	got := TruncateDescription(long)
	assert.Equal(t, strings.Repeat("b", DescriptionLimit)+"...", got)

	assert.Equal(t, "", TruncateDescription(""))
	assert.Equal(t, "", TruncateDescription("   "))
}

func TestTruncateDescriptionCountsRunes(t *testing.T) {
	s := strings.Repeat("é", DescriptionLimit)
	assert.Equal(t, s, TruncateDescription(s), "multi-byte text at the limit is untouched")

	got := TruncateDescription(s + "é")
	assert.True(t, strings.HasSuffix(got, Ellipsis))
	assert.Equal(t, DescriptionLimit+len(Ellipsis), len([]rune(got)))
}

func TestNormalizeKeepsDescriptionVerbatim(t *testing.T) {
	d := NormalizeArticle(newsapi.RawArticle{Description: ptr("No description available")})
	assert.Equal(t, "No description available", d.Description,
		"a real description is never rewritten")
}

func TestNormalizePage(t *testing.T) {
	q := Query{Category: Technology, Page: 2, Search: "go"}
	r := Normalize(q, newsapi.Headlines{
		TotalResults: 30,
		Articles:     []newsapi.RawArticle{{Title: ptr("One")}, {Title: ptr("Two")}},
	})
	require.Len(t, r.Articles, 2)
	assert.Equal(t, q, r.Query)
	assert.Equal(t, "One", r.Articles[0].Title)
	assert.Equal(t, 30, r.TotalResults)
	assert.Equal(t, 3, r.TotalPages)
	assert.Equal(t, []int{1, 2, 3}, r.Pages())
	assert.True(t, r.HasPrev())
	assert.True(t, r.HasNext())
}

func TestNormalizeEmpty(t *testing.T) {
	r := Normalize(Query{Category: General, Page: 1}, newsapi.Empty())
	assert.NotNil(t, r.Articles)
	assert.Empty(t, r.Articles)
	assert.False(t, r.HasPrev())
	assert.False(t, r.HasNext())
}
