package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"contentfactory/internal/app"
	"contentfactory/internal/avatar"
	"contentfactory/internal/settings"
	"contentfactory/internal/store"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrConfiguration), errors.Is(err, avatar.ErrNotConfigured):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrNotFound), errors.Is(err, avatar.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, avatar.ErrInvalid), errors.Is(err, settings.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrValidation):
		return http.StatusConflict
	case errors.Is(err, app.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
