package table

import (
	"net/url"
	"strconv"
)

// Query parameters for pagination.
const (
	PageParam         = "page"
	ItemsPerPageParam = "itemsperpage"
)

// Page describes one page of a paginated listing.
type Page struct {
	Number  int
	Pages   int
	PerPage int // 0 shows everything on one page
	Total   int64
}

// Paginate clamps page into range for total items at perPage items each.
// perPage <= 0 puts every item on a single page.
func Paginate(total int64, page, perPage int) Page {
	if perPage <= 0 {
		return Page{Number: 1, Pages: 1, Total: total}
	}
	pages := int((total + int64(perPage) - 1) / int64(perPage))
	if pages < 1 {
		pages = 1
	}
	page = max(1, min(page, pages))
	return Page{Number: page, Pages: pages, PerPage: perPage, Total: total}
}

// Offset is the index of the first item on the page.
func (p Page) Offset() int {
	if p.PerPage <= 0 {
		return 0
	}
	return (p.Number - 1) * p.PerPage
}

// Limit is the page size for a store query; 0 means all.
func (p Page) Limit() int {
	return p.PerPage
}

func (p Page) HasPrev() bool { return p.Number > 1 }
func (p Page) HasNext() bool { return p.Number < p.Pages }

// First is the 1-based position of the first item shown.
func (p Page) First() int64 {
	if p.Total == 0 {
		return 0
	}
	return int64(p.Offset()) + 1
}

// Last is the 1-based position of the last item shown.
func (p Page) Last() int64 {
	if p.PerPage <= 0 {
		return p.Total
	}
	return min(int64(p.Offset()+p.PerPage), p.Total)
}

// ParsePaging reads page and items per page from query values. Unknown or
// malformed values fall back to page 1 and def; -1 and 0 both mean all.
func ParsePaging(values url.Values, def int) (page, perPage int) {
	page, err := strconv.Atoi(values.Get(PageParam))
	if err != nil || page < 1 {
		page = 1
	}
	perPage = def
	if raw := values.Get(ItemsPerPageParam); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			perPage = n
		}
	}
	if perPage < 0 {
		perPage = 0
	}
	return page, perPage
}
