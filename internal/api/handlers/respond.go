package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/conduit/conduit/internal/core/endpoint"
)

// respondError writes the error envelope {error, code, details}. Errors it
// does not recognize are attached to the context for the error middleware.
func respondError(c *gin.Context, err error) {
	if ve, ok := endpoint.AsValidationError(err); ok {
		status := http.StatusBadRequest
		var dup *endpoint.DuplicateNameError
		if errors.As(err, &dup) && dup.Kind == "endpoint" {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": ve.Error(), "code": ve.Code(), "details": ve.Details()})
		return
	}

	if errors.Is(err, endpoint.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "not_found"})
		return
	}

	_ = c.Error(err)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
}
