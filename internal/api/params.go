package api

import (
	"strconv" // String conversion
	"time"    // Date filters

	"collector_hub/internal/store" // Pagination

	"github.com/gin-gonic/gin" // Gin web framework
)

// pageFromQuery reads page and page_size, defaulting to 1 and 20 with a 100 cap
func pageFromQuery(c *gin.Context) store.Page {
	page, _ := strconv.Atoi(c.Query("page"))          // Invalid values fall back to defaults
	pageSize, _ := strconv.Atoi(c.Query("page_size")) // Same for the page size
	return store.NormalizePage(page, pageSize)
}

// paged builds the standard paginated envelope
func paged(key string, items any, page store.Page, total int64) gin.H {
	totalPages := (int(total) + page.PageSize - 1) / page.PageSize // Calculate total pages
	return gin.H{
		key:           items,         // Result rows
		"page":        page.Page,     // Current page
		"page_size":   page.PageSize, // Page size
		"total":       total,         // Total rows
		"total_pages": totalPages,    // Total pages
	}
}

// timeQuery parses an RFC 3339 or YYYY-MM-DD query value
func timeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, true
		}
	}
	return nil, false
}
