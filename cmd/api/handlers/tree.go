package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/arborhq/lineage/cmd/api/middleware"
	"github.com/arborhq/lineage/cmd/api/service"
	"github.com/arborhq/lineage/common/models"
)

// TreeHandler handles family tree requests
type TreeHandler struct {
	trees *service.TreeService
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(trees *service.TreeService) *TreeHandler {
	return &TreeHandler{trees: trees}
}

// CreateTree creates a new tree
// POST /api/v1/trees
func (h *TreeHandler) CreateTree(c echo.Context) error {
	var req service.CreateTreeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	tree, err := h.trees.CreateTree(c.Request().Context(), middleware.GetUserID(c), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, tree)
}

// GetTree retrieves a tree
// GET /api/v1/trees/:id
func (h *TreeHandler) GetTree(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	tree, err := h.trees.GetTree(c.Request().Context(), middleware.GetUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tree)
}

// ListTrees lists the caller's trees
// GET /api/v1/trees
func (h *TreeHandler) ListTrees(c echo.Context) error {
	trees, err := h.trees.ListTrees(c.Request().Context(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"trees": trees})
}

// UpdateTree patches tree fields
// PATCH /api/v1/trees/:id
func (h *TreeHandler) UpdateTree(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var patch service.UpdateTreeRequest
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	tree, err := h.trees.UpdateTree(c.Request().Context(), middleware.GetUserID(c), id, &patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tree)
}

// DeleteTree deletes a tree and all its records
// DELETE /api/v1/trees/:id
func (h *TreeHandler) DeleteTree(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.trees.DeleteTree(c.Request().Context(), middleware.GetUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// InviteCollaborator invites a user to the tree
// POST /api/v1/trees/:id/collaborators
func (h *TreeHandler) InviteCollaborator(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		UserID string                  `json:"user_id"`
		Role   models.CollaboratorRole `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	tree, err := h.trees.InviteCollaborator(c.Request().Context(), middleware.GetUserID(c), id, req.UserID, req.Role)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tree)
}

// AcceptInvitation accepts the caller's pending invitation
// POST /api/v1/trees/:id/collaborators/accept
func (h *TreeHandler) AcceptInvitation(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	tree, err := h.trees.AcceptInvitation(c.Request().Context(), middleware.GetUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tree)
}

// RemoveCollaborator removes a collaborator or withdraws an invitation
// DELETE /api/v1/trees/:id/collaborators/:userId
func (h *TreeHandler) RemoveCollaborator(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	tree, err := h.trees.RemoveCollaborator(c.Request().Context(), middleware.GetUserID(c), id, c.Param("userId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tree)
}
