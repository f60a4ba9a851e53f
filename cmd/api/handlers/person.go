package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/arborhq/lineage/cmd/api/middleware"
	"github.com/arborhq/lineage/cmd/api/service"
	"github.com/arborhq/lineage/common/apperr"
)

// PersonHandler handles person requests
type PersonHandler struct {
	persons *service.PersonService
}

// NewPersonHandler creates a new person handler
func NewPersonHandler(persons *service.PersonService) *PersonHandler {
	return &PersonHandler{persons: persons}
}

// CreatePerson adds a person to a tree
// POST /api/v1/trees/:treeId/persons
func (h *PersonHandler) CreatePerson(c echo.Context) error {
	treeID, err := pathUUID(c, "treeId")
	if err != nil {
		return respondError(c, err)
	}

	var req service.CreatePersonRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	person, err := h.persons.CreatePerson(c.Request().Context(), middleware.GetUserID(c), treeID, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, person)
}

// GetPerson retrieves a person with repaired mirrors
// GET /api/v1/persons/:id
func (h *PersonHandler) GetPerson(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	person, err := h.persons.GetPerson(c.Request().Context(), middleware.GetUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, person)
}

// ListPersons lists a tree's persons
// GET /api/v1/trees/:treeId/persons
func (h *PersonHandler) ListPersons(c echo.Context) error {
	treeID, err := pathUUID(c, "treeId")
	if err != nil {
		return respondError(c, err)
	}

	persons, err := h.persons.ListPersons(c.Request().Context(), middleware.GetUserID(c), treeID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"persons": persons})
}

// UpdatePerson applies a partial patch
// PATCH /api/v1/persons/:id
func (h *PersonHandler) UpdatePerson(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var patch service.UpdatePersonRequest
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	person, err := h.persons.UpdatePerson(c.Request().Context(), middleware.GetUserID(c), id, &patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, person)
}

// DeletePerson removes a person and every edge touching them
// DELETE /api/v1/persons/:id
func (h *PersonHandler) DeletePerson(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.persons.DeletePerson(c.Request().Context(), middleware.GetUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListHistory lists the person's versioned snapshots, newest first
// GET /api/v1/persons/:id/history
func (h *PersonHandler) ListHistory(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	history, err := h.persons.ListHistory(c.Request().Context(), middleware.GetUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"history": history})
}

// RevertPerson restores a historical snapshot as the current record
// POST /api/v1/persons/:id/revert/:version
func (h *PersonHandler) RevertPerson(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		return respondError(c, apperr.Validation("invalid version", map[string]string{"version": c.Param("version")}))
	}

	person, err := h.persons.RevertPerson(c.Request().Context(), middleware.GetUserID(c), id, version)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, person)
}
