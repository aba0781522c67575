package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"pricing-workbench/internal/domain/loan"
	"pricing-workbench/internal/domain/pricing"
	"pricing-workbench/internal/domain/snapshot"
	"pricing-workbench/internal/usecase/playback"
	"pricing-workbench/internal/usecase/session"
)

// writeError maps domain errors onto HTTP status codes. Playback read-only
// and already-deleted conflicts are 409 so clients can distinguish "retry
// after exiting playback" from plain bad input.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, loan.ErrNotFound),
		errors.Is(err, loan.ErrFeeNotFound),
		errors.Is(err, loan.ErrFeeConfigNotFound),
		errors.Is(err, snapshot.ErrNotFound),
		errors.Is(err, pricing.ErrChangeNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, pricing.ErrPlaybackReadOnly),
		errors.Is(err, pricing.ErrFeeAlreadyDeleted):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, session.ErrNoPendingChanges),
		errors.Is(err, session.ErrInvalidRate),
		errors.Is(err, session.ErrInvalidDate),
		errors.Is(err, pricing.ErrMissingOriginalFee),
		errors.Is(err, pricing.ErrUnknownField),
		errors.Is(err, playback.ErrEmptyHistory),
		errors.Is(err, playback.ErrNotInPlayback):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func containsFieldMsg(list []FieldError, field, substr string) bool {
	for _, e := range list {
		if e.Field == field && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
