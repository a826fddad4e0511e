package booking

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCanceled  Status = "CANCELED"
	StatusCompleted Status = "COMPLETED"
)

// Action is a lifecycle event applied to a booking.
type Action string

const (
	ActionApprove   Action = "APPROVE"
	ActionDecline   Action = "DECLINE"
	ActionCancel    Action = "CANCEL"
	ActionSupersede Action = "SUPERSEDE"
	ActionComplete  Action = "COMPLETE"
)

// transitions is the complete state machine; any pair missing here is rejected.
var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionApprove:   StatusConfirmed,
		ActionDecline:   StatusCanceled,
		ActionCancel:    StatusCanceled,
		ActionSupersede: StatusCanceled,
	},
	StatusConfirmed: {
		ActionCancel:   StatusCanceled,
		ActionComplete: StatusCompleted,
	},
	StatusCanceled:  {},
	StatusCompleted: {},
}

func Statuses() []Status {
	return []Status{StatusPending, StatusConfirmed, StatusCanceled, StatusCompleted}
}

func Actions() []Action {
	return []Action{ActionApprove, ActionDecline, ActionCancel, ActionSupersede, ActionComplete}
}

func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.IsValid() {
		return "", fmt.Errorf("%w: unknown booking status %q", ErrValidation, raw)
	}
	return status, nil
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// Next returns the state reached by applying action, or a *TransitionError.
func (s Status) Next(action Action) (Status, error) {
	to, ok := transitions[s][action]
	if !ok {
		return "", &TransitionError{From: s, Action: action}
	}
	return to, nil
}

func (s Status) Can(action Action) bool {
	_, err := s.Next(action)
	return err == nil
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) String() string {
	return string(s)
}

// PaymentStatus tracks money captured for a booking.
type PaymentStatus string

const (
	PaymentUnpaid            PaymentStatus = "UNPAID"
	PaymentPaid              PaymentStatus = "PAID"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// Captured reports whether money was taken from the renter at some point.
func (p PaymentStatus) Captured() bool {
	return p != PaymentUnpaid && p != ""
}
