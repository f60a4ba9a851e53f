package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/arborhq/lineage/cmd/api/container"
	"github.com/arborhq/lineage/cmd/api/handlers"
	"github.com/arborhq/lineage/cmd/api/middleware"
)

// RegisterTreeRoutes registers all tree-related routes
func RegisterTreeRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewTreeHandler(c.TreeService)

	trees := e.Group("/api/v1/trees")
	trees.Use(middleware.ExtractUserID())
	{
		trees.POST("", h.CreateTree)
		trees.GET("", h.ListTrees)
		trees.GET("/:id", h.GetTree)
		trees.PATCH("/:id", h.UpdateTree)
		trees.DELETE("/:id", h.DeleteTree)

		trees.POST("/:id/collaborators", h.InviteCollaborator)
		trees.POST("/:id/collaborators/accept", h.AcceptInvitation)
		trees.DELETE("/:id/collaborators/:userId", h.RemoveCollaborator)
	}
}
