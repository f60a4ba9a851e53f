package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/arborhq/lineage/cmd/api/container"
	"github.com/arborhq/lineage/cmd/api/handlers"
	"github.com/arborhq/lineage/cmd/api/middleware"
)

// RegisterPersonRoutes registers all person-related routes
func RegisterPersonRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewPersonHandler(c.PersonService)

	treePersons := e.Group("/api/v1/trees/:treeId/persons")
	treePersons.Use(middleware.ExtractUserID())
	{
		treePersons.POST("", h.CreatePerson)
		treePersons.GET("", h.ListPersons)
	}

	persons := e.Group("/api/v1/persons")
	persons.Use(middleware.ExtractUserID())
	{
		persons.GET("/:id", h.GetPerson)
		persons.PATCH("/:id", h.UpdatePerson)
		persons.DELETE("/:id", h.DeletePerson)
		persons.GET("/:id/history", h.ListHistory)
		persons.POST("/:id/revert/:version", h.RevertPerson)
	}
}
