package news

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"technology", Technology},
		{"Sports", Sports},
		{"  health ", Health},
		{"", General},
		{"politics", General},
		{"general", General},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseCategory(tt.in), "input %q", tt.in)
	}
}

func TestParseCategoryIdempotent(t *testing.T) {
	for _, in := range []string{"weather", "science", "BUSINESS", "x"} {
		once := ParseCategory(in)
		assert.Equal(t, once, ParseCategory(string(once)))
	}
}

func TestClampPage(t *testing.T) {
	for page, want := range map[int]int{-3: 1, 0: 1, 1: 1, 3: 3, 5: 5, 6: 1, 100: 1} {
		assert.Equal(t, want, ClampPage(page), "page %d", page)
	}
}

func TestParsePage(t *testing.T) {
	assert.Equal(t, 4, ParsePage("4"))
	assert.Equal(t, 1, ParsePage("9"))
	assert.Equal(t, 1, ParsePage("abc"))
	assert.Equal(t, 1, ParsePage(""))
}

func TestNewQuery(t *testing.T) {
	q := NewQuery("Weather", 7, "  elections ")
	assert.Equal(t, Query{Category: General, Page: 1, Search: "elections"}, q)
	assert.Equal(t, "general|1|elections", q.Key())

	q = NewQuery("science", 2, "")
	assert.Equal(t, "science|2|", q.Key())
}

func TestCategoryTitle(t *testing.T) {
	assert.Equal(t, "Technology", Technology.Title())
	assert.Equal(t, "", Category("").Title())
}
