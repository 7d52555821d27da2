package handler

import (
	"errors"
	"net/http"

	"github.com/feliks/curio/internal/domain"
	"github.com/gin-gonic/gin"
)

// respondError maps domain errors to HTTP status codes and writes the
// standard error body.
func respondError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "content not found"})
	case errors.Is(err, domain.ErrAlreadyProcessing):
		c.JSON(http.StatusConflict, gin.H{"error": "content is currently being processed"})
	case errors.Is(err, domain.ErrInvalidKind):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "operation not supported for this content kind"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
