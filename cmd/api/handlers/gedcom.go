package handlers

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/arborhq/lineage/cmd/api/middleware"
	"github.com/arborhq/lineage/cmd/api/service"
)

// GedcomHandler handles GEDCOM import and export
type GedcomHandler struct {
	importer *service.ImportService
	exporter *service.ExportService
}

// NewGedcomHandler creates a new GEDCOM handler
func NewGedcomHandler(importer *service.ImportService, exporter *service.ExportService) *GedcomHandler {
	return &GedcomHandler{importer: importer, exporter: exporter}
}

// Import loads a GEDCOM file into the tree. The file arrives either as a
// multipart "file" part or as the raw request body.
// POST /api/v1/trees/:treeId/gedcom/import
func (h *GedcomHandler) Import(c echo.Context) error {
	treeID, err := pathUUID(c, "treeId")
	if err != nil {
		return respondError(c, err)
	}

	reader := c.Request().Body
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable upload"})
		}
		defer f.Close()
		reader = f
	}

	result, err := h.importer.Import(c.Request().Context(), middleware.GetUserID(c), treeID, reader)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Export streams the tree as a GEDCOM download
// GET /api/v1/trees/:treeId/gedcom/export
func (h *GedcomHandler) Export(c echo.Context) error {
	treeID, err := pathUUID(c, "treeId")
	if err != nil {
		return respondError(c, err)
	}

	var buf bytes.Buffer
	filename, err := h.exporter.Export(c.Request().Context(), middleware.GetUserID(c), treeID, &buf)
	if err != nil {
		return respondError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
}
