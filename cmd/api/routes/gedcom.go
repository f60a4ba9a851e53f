package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/arborhq/lineage/cmd/api/container"
	"github.com/arborhq/lineage/cmd/api/handlers"
	"github.com/arborhq/lineage/cmd/api/middleware"
)

// RegisterGedcomRoutes registers GEDCOM import and export routes
func RegisterGedcomRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewGedcomHandler(c.ImportService, c.ExportService)

	gedcom := e.Group("/api/v1/trees/:treeId/gedcom")
	gedcom.Use(middleware.ExtractUserID())
	{
		gedcom.POST("/import", h.Import)
		gedcom.GET("/export", h.Export)
	}
}
