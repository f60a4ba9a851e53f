package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/arborhq/lineage/cmd/api/middleware"
	"github.com/arborhq/lineage/cmd/api/service"
)

// RelationshipHandler handles relationship requests; all mutations go
// through the graph consistency engine
type RelationshipHandler struct {
	graph *service.GraphService
}

// NewRelationshipHandler creates a new relationship handler
func NewRelationshipHandler(graph *service.GraphService) *RelationshipHandler {
	return &RelationshipHandler{graph: graph}
}

// CreateRelationship creates an edge and applies its mirrors
// POST /api/v1/relationships
func (h *RelationshipHandler) CreateRelationship(c echo.Context) error {
	var req service.CreateRelationshipRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	rel, err := h.graph.CreateRelationship(c.Request().Context(), middleware.GetUserID(c), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, rel)
}

// GetRelationship retrieves an edge
// GET /api/v1/relationships/:id
func (h *RelationshipHandler) GetRelationship(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	rel, err := h.graph.GetRelationship(c.Request().Context(), middleware.GetUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, rel)
}

// UpdateRelationship patches mutable edge fields
// PATCH /api/v1/relationships/:id
func (h *RelationshipHandler) UpdateRelationship(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var patch service.UpdateRelationshipRequest
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	rel, err := h.graph.UpdateRelationship(c.Request().Context(), middleware.GetUserID(c), id, &patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, rel)
}

// DeleteRelationship removes an edge and strips its mirrors
// DELETE /api/v1/relationships/:id
func (h *RelationshipHandler) DeleteRelationship(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.graph.DeleteRelationship(c.Request().Context(), middleware.GetUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
