package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentme-reservations/internal/app/access"
	"rentme-reservations/internal/app/dto"
	"rentme-reservations/internal/app/middleware"
	"rentme-reservations/internal/app/policies"
	domainavailability "rentme-reservations/internal/domain/availability"
	domainbooking "rentme-reservations/internal/domain/booking"
	"rentme-reservations/internal/domain/cancellation"
	domainproperty "rentme-reservations/internal/domain/property"
	"rentme-reservations/internal/domain/shared/daterange"
)

var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	var validation *middleware.ValidationError
	switch {
	case errors.As(err, &validation),
		errors.Is(err, errBadRequest),
		errors.Is(err, domainbooking.ErrValidation),
		errors.Is(err, domainbooking.ErrInvalidDateRange),
		errors.Is(err, daterange.ErrInvalidRange),
		errors.Is(err, daterange.ErrStartInPast),
		errors.Is(err, cancellation.ErrUnknownTier),
		errors.Is(err, cancellation.ErrUnknownActor):
		return http.StatusBadRequest
	case errors.Is(err, access.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, middleware.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domainbooking.ErrNotFound),
		errors.Is(err, domainbooking.ErrNotOwned),
		errors.Is(err, domainproperty.ErrNotFound),
		errors.Is(err, domainavailability.ErrNotOwner),
		errors.Is(err, domainavailability.ErrWindowNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainbooking.ErrConflict),
		errors.Is(err, domainbooking.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, domainbooking.ErrPolicyViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domainbooking.ErrPaymentFailure):
		return http.StatusPaymentRequired
	case errors.Is(err, policies.ErrLockUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the details a client can act on: invalid
// fields, blocking ranges or the refund it would actually get.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	body := gin.H{"error": err.Error()}
	if status == http.StatusInternalServerError {
		body["error"] = "internal error"
		if logger != nil {
			logger.Error("request failed", "path", c.FullPath(), "error", err)
		}
	}

	var validation *middleware.ValidationError
	var conflict *domainbooking.ConflictError
	var mismatch *domainbooking.RefundMismatchError
	switch {
	case errors.As(err, &validation) && len(validation.Fields) > 0:
		body["fields"] = validation.Fields
	case errors.As(err, &conflict):
		body["conflicts"] = dto.MapConflicts(conflict.Conflicts)
	case errors.As(err, &mismatch):
		body["expected_refund_percent"] = mismatch.ExpectedPercent
		body["refund_percent"] = mismatch.Decision.RefundPercent
		body["refund"] = dto.MapMoney(mismatch.Decision.Refund)
	}
	c.AbortWithStatusJSON(status, body)
}
