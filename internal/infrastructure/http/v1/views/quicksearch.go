package views

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"bread/internal/domain"
	"bread/internal/domain/filter"
	"bread/internal/infrastructure/http/v1/dto"
)

const (
	quickSearchLimit    = 10
	maxQuickSearchLimit = 50
)

// QuickSearch is an extension answering "/quicksearch?q=" with the records
// whose search fields match, as JSON for autocomplete widgets.
func QuickSearch() Extension {
	return Extension{
		Name: "quicksearch",
		Path: "/quicksearch",
		Handler: func(v *ModelViews) gin.HandlerFunc {
			return v.quickSearch
		},
	}
}

func (v *ModelViews) quickSearch(c *gin.Context) {
	text := strings.TrimSpace(c.Query(SearchParam))
	if text == "" {
		c.JSON(http.StatusOK, []dto.SearchResult{})
		return
	}
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = quickSearchLimit
	}
	limit = min(limit, maxQuickSearchLimit)

	node, err := filter.Search(v.cfg.Models.Registry(), v.Model.Key(), text)
	if err != nil {
		fail(c, err)
		return
	}
	res, err := v.cfg.Models.List(c.Request.Context(), v.Model, domain.Query{Filter: node, Limit: limit})
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]dto.SearchResult, 0, len(res.Items))
	for _, rec := range res.Items {
		out = append(out, dto.SearchResult{
			ID:    rec.ID.String(),
			Label: rec.Label(v.Model),
			URL:   v.URLs.URL(ActionRead, rec.ID.String()),
		})
	}
	c.JSON(http.StatusOK, out)
}
