package booking

import (
	"errors"
	"fmt"
	"strings"

	"rentme-reservations/internal/domain/availability"
	"rentme-reservations/internal/domain/cancellation"
	"rentme-reservations/internal/domain/shared/daterange"
)

var (
	ErrInvalidDateRange = errors.New("booking: invalid date range")
	ErrConflict         = errors.New("booking: these dates are no longer available")
	ErrPolicyViolation  = errors.New("booking: operation not allowed")
	ErrPaymentFailure   = errors.New("booking: payment failed")
	ErrNotFound         = errors.New("booking: not found")
	ErrValidation       = errors.New("booking: validation failed")
	ErrNotOwned         = errors.New("booking: not owned by caller")
	ErrConcurrentUpdate = errors.New("booking: concurrent update")
)

// TransitionError is returned when an action is not allowed from the current status.
type TransitionError struct {
	From   Status
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("booking: cannot %s a %s booking", strings.ToLower(string(e.Action)), strings.ToLower(string(e.From)))
}

func (e *TransitionError) Unwrap() error { return ErrPolicyViolation }

// RefundMismatchError is returned when the computed refund is lower than the
// percent the caller agreed to. Decision carries the current terms.
type RefundMismatchError struct {
	ExpectedPercent int
	Decision        cancellation.Decision
}

func (e *RefundMismatchError) Error() string {
	return fmt.Sprintf("booking: refund is %d%%, caller expected %d%%", e.Decision.RefundPercent, e.ExpectedPercent)
}

func (e *RefundMismatchError) Unwrap() error { return ErrPolicyViolation }

// ConflictError lists what blocks the requested range.
type ConflictError struct {
	Range     daterange.DateRange
	Conflicts []availability.Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s overlaps %d item(s)", ErrConflict.Error(), e.Range, len(e.Conflicts))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InvalidRange maps interval validation errors onto ErrInvalidDateRange.
func InvalidRange(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidDateRange, err)
}
