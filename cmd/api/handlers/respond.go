package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/arborhq/lineage/common/apperr"
)

// respondError renders an error using the apperr kind to HTTP status
// mapping; unknown errors become opaque 500s
func respondError(c echo.Context, err error) error {
	status := apperr.HTTPStatus(err)

	body := map[string]interface{}{
		"error": err.Error(),
		"kind":  string(apperr.KindOf(err)),
	}
	if status == http.StatusInternalServerError {
		body["error"] = "internal error"
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) && len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}

	return c.JSON(status, body)
}

// pathUUID parses a uuid path parameter
func pathUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid "+name, map[string]string{name: c.Param(name)})
	}
	return id, nil
}
