package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/arborhq/lineage/cmd/api/container"
	"github.com/arborhq/lineage/cmd/api/handlers"
	"github.com/arborhq/lineage/cmd/api/middleware"
)

// RegisterRelationshipRoutes registers all relationship-related routes
func RegisterRelationshipRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewRelationshipHandler(c.GraphService)

	rels := e.Group("/api/v1/relationships")
	rels.Use(middleware.ExtractUserID())
	{
		rels.POST("", h.CreateRelationship)
		rels.GET("/:id", h.GetRelationship)
		rels.PATCH("/:id", h.UpdateRelationship)
		rels.DELETE("/:id", h.DeleteRelationship)
	}
}
