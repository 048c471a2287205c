package v1

import (
	"github.com/gin-gonic/gin"

	"bread/internal/infrastructure/http/v1/middleware"
)

// LoginRouteHandler serves the browser session endpoints.
type LoginRouteHandler interface {
	LoginPage(c *gin.Context)
	Login(c *gin.Context)
	Logout(c *gin.Context)
}

// ReportRouteHandler serves saved reports.
type ReportRouteHandler interface {
	List(c *gin.Context)
	Run(c *gin.Context)
	Export(c *gin.Context)
}

// RegisterLoginRoutes adds the login form and logout.
func RegisterLoginRoutes(r gin.IRoutes, handler LoginRouteHandler) {
	r.GET(middleware.LoginPath, handler.LoginPage)
	r.POST(middleware.LoginPath, handler.Login)
	r.POST("/logout", handler.Logout)
}

// RegisterReportRoutes adds the report list, the report page and its export.
// The handler checks the model permission of each report.
func RegisterReportRoutes(group *gin.RouterGroup, handler ReportRouteHandler) {
	group.GET("", handler.List)
	group.GET("/:slug", handler.Run)
	group.GET("/:slug/export", handler.Export)
}
