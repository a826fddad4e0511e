package ginserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"rentme-reservations/internal/app/commands"
	"rentme-reservations/internal/app/dto"
	availabilityapp "rentme-reservations/internal/app/handlers/availability"
	"rentme-reservations/internal/app/queries"
)

type AvailabilityHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type blockDatesRequest struct {
	WindowID string `json:"window_id"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Reason   string `json:"reason"`
}

func (h AvailabilityHandler) Check(c *gin.Context) {
	checkIn, checkOut, err := parseStay(c.Query("check_in"), c.Query("check_out"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	query := availabilityapp.IsPropertyAvailableQuery{PropertyID: propertyID(c), CheckIn: checkIn, CheckOut: checkOut}
	result, err := queries.Ask[availabilityapp.IsPropertyAvailableQuery, dto.Availability](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Windows(c *gin.Context) {
	result, err := queries.Ask[availabilityapp.ListWindowsQuery, dto.WindowCollection](c.Request.Context(), h.Queries, availabilityapp.ListWindowsQuery{PropertyID: propertyID(c)})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Block(c *gin.Context) {
	owner, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req blockDatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Logger, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	checkIn, checkOut, err := parseStay(req.CheckIn, req.CheckOut)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	cmd := availabilityapp.BlockDatesCommand{
		WindowID:   strings.TrimSpace(req.WindowID),
		PropertyID: propertyID(c),
		OwnerID:    owner.UserID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Reason:     strings.TrimSpace(req.Reason),
	}
	result, err := commands.Dispatch[availabilityapp.BlockDatesCommand, *dto.Window](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h AvailabilityHandler) Unblock(c *gin.Context) {
	owner, ok := requirePrincipal(c)
	if !ok {
		return
	}
	cmd := availabilityapp.UnblockDatesCommand{
		PropertyID: propertyID(c),
		OwnerID:    owner.UserID,
		WindowID:   strings.TrimSpace(c.Param("windowId")),
	}
	result, err := commands.Dispatch[availabilityapp.UnblockDatesCommand, *dto.Window](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func propertyID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}

var _ AvailabilityHTTP = AvailabilityHandler{}
