package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/linfit/pkg/errors"
)

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	var (
		mbe *http.MaxBytesError
		ve  *errors.ValidationError
		val *errors.ValueError
	)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrIllegalTransition):
		return http.StatusConflict
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errors.ErrInvalidConfig),
		errors.Is(err, errors.ErrEmptyDataset),
		errors.Is(err, errors.ErrInsufficientData),
		errors.Is(err, errors.ErrDegenerateInput),
		errors.As(err, &ve),
		errors.As(err, &val):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusOf(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

func errUnknownAction(action string) error {
	return errors.NewValidationError("action", "must be pause, resume or stop", action)
}
