// Package apiserver is the thin Gin HTTP surface over C7 (project) and C8
// (invites): parse path/query params, resolve a capability token, call the
// service, translate the result to JSON or an apperr-mapped status code.
// Grounded on the teacher's gin.Default()+gin.H{"error": ...} handler shape.
package apiserver

import (
	"errors"
	"net/http"

	"github.com/netsblox/cloud/internal/apperr"
	"github.com/netsblox/cloud/internal/capability"
	"github.com/netsblox/cloud/internal/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError maps a service-layer error to spec.md §7's error-kind ->
// status code policy and writes the teacher's gin.H{"error": ...} body.
// Internal-kind errors are logged with full detail but never echoed
// verbatim to the client.
func writeError(c *gin.Context, err error) {
	var forbidden *capability.Forbidden
	switch {
	case errors.As(err, &forbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": forbidden.Error()})
	case errors.Is(err, apperr.ErrProjectNotFound),
		errors.Is(err, apperr.ErrRoleNotFound),
		errors.Is(err, apperr.ErrInviteNotFound),
		errors.Is(err, apperr.ErrGroupNotFound),
		errors.Is(err, apperr.ErrUserNotFound),
		errors.Is(err, apperr.ErrServiceHostNotFound),
		errors.Is(err, apperr.ErrThumbnailNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrGroupExists),
		errors.Is(err, apperr.ErrInviteAlreadyExists),
		errors.Is(err, apperr.ErrServiceHostAlreadyAuthorized):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrCannotDeleteLastRole),
		errors.Is(err, apperr.ErrInvalidName),
		errors.Is(err, apperr.ErrInvalidClientID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperr.IsInternal(err):
		logging.Error(c.Request.Context(), "internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		logging.Error(c.Request.Context(), "unclassified error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
