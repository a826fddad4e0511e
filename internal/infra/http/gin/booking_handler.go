package ginserver

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"rentme-reservations/internal/app/commands"
	"rentme-reservations/internal/app/dto"
	bookingapp "rentme-reservations/internal/app/handlers/booking"
	"rentme-reservations/internal/app/queries"
)

const idempotencyHeader = "Idempotency-Key"

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createBookingRequest struct {
	BookingID  string `json:"booking_id"`
	PropertyID string `json:"property_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	TeamSize   int    `json:"team_size"`
	Notes      string `json:"notes"`
}

type declineBookingRequest struct {
	Reason string `json:"reason"`
}

type cancelBookingRequest struct {
	Role                  string `json:"role"`
	Reason                string `json:"reason"`
	ExpectedRefundPercent *int   `json:"expected_refund_percent"`
}

func (h BookingHandler) Create(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Logger, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	checkIn, checkOut, err := parseStay(req.CheckIn, req.CheckOut)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		BookingID:       strings.TrimSpace(req.BookingID),
		PropertyID:      strings.TrimSpace(req.PropertyID),
		RenterID:        user.UserID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		TeamSize:        req.TeamSize,
		Notes:           req.Notes,
		IdempotencyKeyV: c.GetHeader(idempotencyHeader),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	query := bookingapp.GetBookingQuery{BookingID: bookingID(c), ViewerID: user.UserID}
	result, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Approve(c *gin.Context) {
	owner, ok := requirePrincipal(c)
	if !ok {
		return
	}
	cmd := bookingapp.ApproveBookingCommand{
		BookingID:       bookingID(c),
		OwnerID:         owner.UserID,
		IdempotencyKeyV: c.GetHeader(idempotencyHeader),
	}
	result, err := commands.Dispatch[bookingapp.ApproveBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Decline(c *gin.Context) {
	owner, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req declineBookingRequest
	if !bindOptional(c, h.Logger, &req) {
		return
	}
	cmd := bookingapp.DeclineBookingCommand{
		BookingID: bookingID(c),
		OwnerID:   owner.UserID,
		Reason:    strings.TrimSpace(req.Reason),
	}
	result, err := commands.Dispatch[bookingapp.DeclineBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Cancel(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req cancelBookingRequest
	if !bindOptional(c, h.Logger, &req) {
		return
	}
	cmd := bookingapp.CancelBookingCommand{
		BookingID:             bookingID(c),
		ActorID:               user.UserID,
		ActorRole:             strings.TrimSpace(req.Role),
		Reason:                strings.TrimSpace(req.Reason),
		ExpectedRefundPercent: req.ExpectedRefundPercent,
		IdempotencyKeyV:       c.GetHeader(idempotencyHeader),
	}
	result, err := commands.Dispatch[bookingapp.CancelBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) CancellationQuote(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	query := bookingapp.PreviewCancellationQuery{
		BookingID: bookingID(c),
		ActorID:   user.UserID,
		ActorRole: strings.TrimSpace(c.Query("role")),
	}
	result, err := queries.Ask[bookingapp.PreviewCancellationQuery, dto.CancellationQuote](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Complete(c *gin.Context) {
	if _, ok := requirePrincipal(c); !ok {
		return
	}
	result, err := commands.Dispatch[bookingapp.CompleteBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, bookingapp.CompleteBookingCommand{BookingID: bookingID(c)})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) RenterBookings(c *gin.Context) {
	renter, ok := requirePrincipal(c)
	if !ok {
		return
	}
	result, err := queries.Ask[bookingapp.ListRenterBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, bookingapp.ListRenterBookingsQuery{RenterID: renter.UserID})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) OwnerBookings(c *gin.Context) {
	owner, ok := requirePrincipal(c)
	if !ok {
		return
	}
	query := bookingapp.ListOwnerBookingsQuery{OwnerID: owner.UserID, Status: strings.TrimSpace(c.Query("status"))}
	result, err := queries.Ask[bookingapp.ListOwnerBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func bookingID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}

// bindOptional decodes a JSON body when one was sent. Chunked requests carry
// no length, so an empty stream is only known after reading it.
func bindOptional(c *gin.Context, logger *slog.Logger, dst any) bool {
	if c.Request.Body == nil || c.Request.Body == http.NoBody || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		respondError(c, logger, fmt.Errorf("%w: %w", errBadRequest, err))
		return false
	}
	return true
}

// parseDate accepts a calendar day (2006-01-02) or an RFC3339 instant.
func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", errBadRequest, field)
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD or RFC3339", errBadRequest, field)
	}
	return t.UTC(), nil
}

func parseStay(rawIn, rawOut string) (time.Time, time.Time, error) {
	checkIn, err := parseDate("check_in", rawIn)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	checkOut, err := parseDate("check_out", rawOut)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return checkIn, checkOut, nil
}

var _ BookingHTTP = BookingHandler{}
