package booking

import (
	"time"

	"rentme-reservations/internal/app/access"
	"rentme-reservations/internal/app/commands"
	"rentme-reservations/internal/app/dto"
	"rentme-reservations/internal/app/middleware"
)

const (
	createBookingKey   = "booking.create"
	approveBookingKey  = "booking.approve"
	declineBookingKey  = "booking.decline"
	cancelBookingKey   = "booking.cancel"
	completeBookingKey = "booking.complete"
)

// BookingScoped commands act on an existing booking; the lock scope is its property.
type BookingScoped interface {
	BookingRef() string
}

type CreateBookingCommand struct {
	BookingID       string    `validate:"omitempty,max=64"`
	PropertyID      string    `validate:"required,max=64"`
	RenterID        string    `validate:"required,max=64"`
	CheckIn         time.Time `validate:"required"`
	CheckOut        time.Time `validate:"required"`
	TeamSize        int       `validate:"gte=1"`
	Notes           string    `validate:"max=2000"`
	IdempotencyKeyV string    `validate:"omitempty,max=128"`
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

// IdempotencyKey dedupes only when the client supplied a key.
func (c CreateBookingCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return createBookingKey + ":" + c.RenterID + ":" + c.IdempotencyKeyV
}

func (c CreateBookingCommand) ResultPrototype() any  { return &dto.Booking{} }
func (c CreateBookingCommand) PropertyScope() string { return c.PropertyID }
func (c CreateBookingCommand) Roles() []access.Role  { return []access.Role{access.RoleRenter} }
func (c CreateBookingCommand) Actor() string         { return c.RenterID }

type ApproveBookingCommand struct {
	BookingID       string `validate:"required,max=64"`
	OwnerID         string `validate:"required,max=64"`
	IdempotencyKeyV string `validate:"omitempty,max=128"`
}

func (c ApproveBookingCommand) Key() string { return approveBookingKey }

// IdempotencyKey falls back to the booking and target state so a repeated
// approval replays the first result.
func (c ApproveBookingCommand) IdempotencyKey() string {
	return derivedKey(approveBookingKey, c.BookingID, c.OwnerID, c.IdempotencyKeyV)
}

func (c ApproveBookingCommand) ResultPrototype() any { return &dto.Booking{} }
func (c ApproveBookingCommand) BookingRef() string   { return c.BookingID }
func (c ApproveBookingCommand) Roles() []access.Role { return []access.Role{access.RoleOwner} }
func (c ApproveBookingCommand) Actor() string        { return c.OwnerID }

type DeclineBookingCommand struct {
	BookingID string `validate:"required,max=64"`
	OwnerID   string `validate:"required,max=64"`
	Reason    string `validate:"max=500"`
}

func (c DeclineBookingCommand) Key() string          { return declineBookingKey }
func (c DeclineBookingCommand) BookingRef() string   { return c.BookingID }
func (c DeclineBookingCommand) Roles() []access.Role { return []access.Role{access.RoleOwner} }
func (c DeclineBookingCommand) Actor() string        { return c.OwnerID }

type CancelBookingCommand struct {
	BookingID string `validate:"required,max=64"`
	ActorID   string `validate:"required,max=64"`
	// ActorRole is RENTER or OWNER; empty means derive it from the booking.
	ActorRole string `validate:"omitempty,oneof=RENTER OWNER renter owner"`
	Reason    string `validate:"max=500"`
	// ExpectedRefundPercent is the refund the caller agreed to, if any.
	ExpectedRefundPercent *int   `validate:"omitempty,min=0,max=100"`
	IdempotencyKeyV       string `validate:"omitempty,max=128"`
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

func (c CancelBookingCommand) IdempotencyKey() string {
	return derivedKey(cancelBookingKey, c.BookingID, c.ActorID, c.IdempotencyKeyV)
}

func (c CancelBookingCommand) ResultPrototype() any { return &dto.Booking{} }
func (c CancelBookingCommand) BookingRef() string   { return c.BookingID }
func (c CancelBookingCommand) Roles() []access.Role {
	return []access.Role{access.RoleRenter, access.RoleOwner}
}
func (c CancelBookingCommand) Actor() string { return c.ActorID }

type CompleteBookingCommand struct {
	BookingID string `validate:"required,max=64"`
}

func (c CompleteBookingCommand) Key() string          { return completeBookingKey }
func (c CompleteBookingCommand) BookingRef() string   { return c.BookingID }
func (c CompleteBookingCommand) Roles() []access.Role { return []access.Role{access.RoleSystem} }
func (c CompleteBookingCommand) Actor() string        { return "" }

func derivedKey(command, bookingID, actorID, clientKey string) string {
	if clientKey != "" {
		return command + ":" + actorID + ":" + clientKey
	}
	return command + ":" + bookingID + ":" + actorID
}

var (
	_ middleware.IdempotentCommand = CreateBookingCommand{}
	_ middleware.IdempotentCommand = ApproveBookingCommand{}
	_ middleware.IdempotentCommand = CancelBookingCommand{}
	_ commands.PropertyScoped      = CreateBookingCommand{}
	_ BookingScoped                = ApproveBookingCommand{}
	_ BookingScoped                = DeclineBookingCommand{}
	_ BookingScoped                = CancelBookingCommand{}
	_ BookingScoped                = CompleteBookingCommand{}
	_ access.Guarded               = CancelBookingCommand{}
)
