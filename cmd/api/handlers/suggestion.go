package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/arborhq/lineage/cmd/api/middleware"
	"github.com/arborhq/lineage/cmd/api/service"
	"github.com/arborhq/lineage/common/models"
)

// SuggestionHandler handles merge suggestion review
type SuggestionHandler struct {
	merges *service.MergeService
}

// NewSuggestionHandler creates a new suggestion handler
func NewSuggestionHandler(merges *service.MergeService) *SuggestionHandler {
	return &SuggestionHandler{merges: merges}
}

// ListSuggestions lists a tree's suggestions
// GET /api/v1/trees/:treeId/suggestions?status=pending
func (h *SuggestionHandler) ListSuggestions(c echo.Context) error {
	treeID, err := pathUUID(c, "treeId")
	if err != nil {
		return respondError(c, err)
	}

	status := models.SuggestionStatus(c.QueryParam("status"))
	suggestions, err := h.merges.ListSuggestions(c.Request().Context(), middleware.GetUserID(c), treeID, status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

// AcceptSuggestion merges the suggested pair
// POST /api/v1/suggestions/:id/accept
func (h *SuggestionHandler) AcceptSuggestion(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	merged, err := h.merges.Accept(c.Request().Context(), middleware.GetUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, merged)
}

// DeclineSuggestion declines the suggestion without mutating either person
// POST /api/v1/suggestions/:id/decline
func (h *SuggestionHandler) DeclineSuggestion(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.merges.Decline(c.Request().Context(), middleware.GetUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": string(models.SuggestionDeclined)})
}
