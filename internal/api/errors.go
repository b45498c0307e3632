package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"recap/internal/logging"
	"recap/internal/services"
	"recap/internal/workflow"
)

// StatusFor maps a pipeline error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, services.ErrInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrExternal), errors.Is(err, services.ErrTransient):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func kindOf(err error) string {
	if errors.Is(err, workflow.ErrNotReady) {
		return "not_ready"
	}
	return services.Kind(err)
}

func (rt *router) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger := logging.WithContext(c.Request.Context(), rt.logger)
		logging.ErrorWithContext(logger, "api request failed", "api_request_failed",
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Kind: kindOf(err), RequestID: requestIDOf(c)})
}
