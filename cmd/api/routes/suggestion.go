package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/arborhq/lineage/cmd/api/container"
	"github.com/arborhq/lineage/cmd/api/handlers"
	"github.com/arborhq/lineage/cmd/api/middleware"
)

// RegisterSuggestionRoutes registers merge suggestion review routes
func RegisterSuggestionRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewSuggestionHandler(c.MergeService)

	treeSuggestions := e.Group("/api/v1/trees/:treeId/suggestions")
	treeSuggestions.Use(middleware.ExtractUserID())
	{
		treeSuggestions.GET("", h.ListSuggestions)
	}

	suggestions := e.Group("/api/v1/suggestions")
	suggestions.Use(middleware.ExtractUserID())
	{
		suggestions.POST("/:id/accept", h.AcceptSuggestion)
		suggestions.POST("/:id/decline", h.DeclineSuggestion)
	}
}
