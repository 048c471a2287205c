package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bread/internal/core/apperror"
	appctx "bread/internal/core/context"
	"bread/internal/domain/auth"
	"bread/internal/domain/reports"
	"bread/internal/domain/table"
	"bread/internal/infrastructure/http/v1/dto"
	"bread/internal/infrastructure/http/v1/middleware"
	"bread/internal/infrastructure/http/v1/pages"
	"bread/internal/metadata"
	"bread/pkg/logger"
)

// ReportsPath is the prefix of the report pages.
const ReportsPath = "/reports"

// ReportsHandler lists, runs and exports saved reports.
type ReportsHandler struct {
	*BaseHandler
	service             *reports.Service
	itemsPerPageOptions []int
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, service *reports.Service, itemsPerPageOptions []int) *ReportsHandler {
	return &ReportsHandler{
		BaseHandler:         base,
		service:             service,
		itemsPerPageOptions: itemsPerPageOptions,
	}
}

// permission is the view permission of the report's model. A model key
// that does not split yields a permission nobody but admins hold.
func permission(def reports.Definition) string {
	app, name, ok := metadata.SplitKey(def.Model)
	if !ok {
		return auth.Permission(def.Model, "view", "")
	}
	return auth.Permission(app, "view", name)
}

func (h *ReportsHandler) visible(c *gin.Context, def reports.Definition) bool {
	return appctx.GetUser(c.Request.Context()).HasPermission(permission(def))
}

// definition loads the report named by ":slug" and checks access to it.
func (h *ReportsHandler) definition(c *gin.Context) (reports.Definition, bool) {
	def, err := h.service.Get(c.Param("slug"))
	if err != nil {
		h.Error(c, err)
		return reports.Definition{}, false
	}
	if !h.visible(c, def) {
		h.Error(c, apperror.NewForbidden("insufficient permissions").WithDetail("required_permission", permission(def)))
		return reports.Definition{}, false
	}
	return def, true
}

// List handles GET /reports
func (h *ReportsHandler) List(c *gin.Context) {
	var defs []reports.Definition
	for _, def := range h.service.List() {
		if h.visible(c, def) {
			defs = append(defs, def)
		}
	}
	if middleware.WantsJSON(c) {
		h.OK(c, dto.FromDefinitions(defs))
		return
	}

	var content pages.ReportListContent
	for _, def := range defs {
		content.Reports = append(content.Reports, pages.NavLink{Label: def.Name, URL: ReportsPath + "/" + def.Slug})
	}
	h.HTML(c, http.StatusOK, "reports", "Reports", content)
}

// Run handles GET /reports/:slug. A report that no longer fits its model
// is shown as an error panel.
func (h *ReportsHandler) Run(c *gin.Context) {
	def, ok := h.definition(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	path := ReportsPath + "/" + def.Slug
	values := c.Request.URL.Query()

	perPage := -1
	page, requested := table.ParsePaging(values, def.Pagination)
	if values.Has(table.ItemsPerPageParam) {
		perPage = requested
	}

	res, err := h.service.Run(ctx, def, page, perPage)
	if err != nil {
		if !apperror.IsModelConfiguration(err) {
			h.Error(c, err)
			return
		}
		appErr, _ := apperror.AsAppError(err)
		logger.Warn(ctx, "report is misconfigured", "report", def.Slug, "error", err)
		h.HTML(c, http.StatusOK, "report", def.Name, pages.ReportContent{Error: appErr.Message})
		return
	}

	view := &table.View{
		Title:               def.Name,
		Path:                path,
		Query:               values,
		Columns:             res.Columns,
		Rows:                res.Rows,
		Page:                res.Page,
		ItemsPerPageOptions: h.itemsPerPageOptions,
	}
	var buf bytes.Buffer
	if err := table.Render(&buf, view); err != nil {
		h.Error(c, err)
		return
	}

	content := pages.ReportContent{
		Table:     template.HTML(buf.String()),
		ExportURL: path + "/export",
	}
	if res.HasTotals() {
		for _, col := range res.Columns {
			content.Headers = append(content.Headers, col.Header)
		}
		content.Totals = res.Totals
	}
	h.HTML(c, http.StatusOK, "report", def.Name, content)
}

// Export handles GET /reports/:slug/export
func (h *ReportsHandler) Export(c *gin.Context) {
	def, ok := h.definition(c)
	if !ok {
		return
	}
	res, err := h.service.Rows(c.Request.Context(), def)
	if err != nil {
		h.Error(c, err)
		return
	}

	var buf bytes.Buffer
	if err := table.Export(&buf, def.Name, res.Columns, res.Rows, true); err != nil {
		h.Error(c, err)
		return
	}
	filename := strings.ReplaceAll(def.Slug, " ", "_") + ".xlsx"
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, table.XLSXContentType, buf.Bytes())
}
