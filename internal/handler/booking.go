package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/showgrid/booking/internal/booking"
	"github.com/showgrid/booking/internal/catalog"
	"github.com/showgrid/booking/internal/payment"
)

// BookingHandler exposes the reservation engine over HTTP.  All methods
// assume that JWT authentication has already been performed by middleware;
// they may return 401 Unauthorized if the user ID cannot be extracted from
// the context.  The handler itself holds no state: lock and booking state
// live in the engine.
type BookingHandler struct {
	Engine  *booking.Engine
	Gateway payment.Gateway
}

// NewBookingHandler constructs a BookingHandler.  Both dependencies must be
// non-nil.
func NewBookingHandler(engine *booking.Engine, gw payment.Gateway) *BookingHandler {
	if engine == nil || gw == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Engine: engine, Gateway: gw}
}

// getUserID extracts the authenticated user's id from the context, where the
// JWT middleware stored it.  Returns "" when no user is present.
func getUserID(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok {
		return v
	}
	return ""
}

// Reserve handles POST /v1/shows/:id/reservations.  The request body must
// contain a "seat_ids" array; "ttl_seconds" optionally overrides the default
// hold TTL.  It returns 201 Created with the booking id and hold expiry, 409
// with the list of unavailable seats on contention, and 400 for malformed
// requests (empty or duplicated seat lists are rejected, not repaired).
func (h *BookingHandler) Reserve(c echo.Context) error {
	userID := getUserID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || showID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	var body struct {
		SeatIDs    []string `json:"seat_ids"`
		TTLSeconds int      `json:"ttl_seconds"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	var ttl time.Duration
	if body.TTLSeconds > 0 {
		ttl = time.Duration(body.TTLSeconds) * time.Second
	}

	handle, err := h.Engine.Reserve(c.Request().Context(), userID, showID, body.SeatIDs, ttl)
	if err != nil {
		var unavailable *booking.SeatUnavailableError
		switch {
		case errors.As(err, &unavailable):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":       "some seats are unavailable",
				"unavailable": unavailable.Seats,
			})
		case errors.Is(err, catalog.ErrShowNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "show not found"})
		case errors.Is(err, booking.ErrInvalidRequest):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reservation failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"booking_id": handle.BookingID.String(),
		"expires_at": handle.ExpiresAt.Format(time.RFC3339),
	})
}

// Availability handles GET /v1/shows/:id/seats.  It returns every seat of
// the show with its live status (FREE, HELD or SOLD) so clients can render a
// seat map before reserving.
func (h *BookingHandler) Availability(c echo.Context) error {
	showID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || showID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	seats, err := h.Engine.Availability(c.Request().Context(), showID)
	if err != nil {
		if errors.Is(err, catalog.ErrShowNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "show not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load availability"})
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": seats})
}

// Pay handles POST /v1/bookings/:id/payment.  It moves the booking to
// PENDING_PAYMENT (re-validating every seat hold first) and submits the
// charge to the payment gateway; the gateway's asynchronous callback
// finishes the booking.  Returns 202 Accepted when the charge is in flight.
func (h *BookingHandler) Pay(c echo.Context) error {
	userID := getUserID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	amount, err := h.Engine.StartPayment(c.Request().Context(), bookingID)
	if err != nil {
		return bookingErrorResponse(c, err)
	}
	if err := h.Gateway.Charge(c.Request().Context(), bookingID, amount); err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway unavailable"})
	}
	return c.JSON(http.StatusAccepted, echo.Map{
		"booking_id":         bookingID.String(),
		"total_amount_cents": amount,
		"status":             "payment_pending",
	})
}

// Cancel handles DELETE /v1/bookings/:id.  It cancels a HELD or
// PENDING_PAYMENT booking and releases its seats immediately.  Cancelling a
// booking that already reached a terminal state returns 409.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID := getUserID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	if err := h.Engine.Cancel(c.Request().Context(), bookingID); err != nil {
		return bookingErrorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetBooking handles GET /v1/bookings/:id.  It returns the booking record,
// including its current lifecycle state, for status polling after a payment
// was submitted.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	userID := getUserID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Engine.GetBooking(c.Request().Context(), bookingID)
	if err != nil {
		return bookingErrorResponse(c, err)
	}
	resp := echo.Map{
		"booking_id":         b.ID.String(),
		"show_id":            b.ShowID,
		"seat_ids":           b.SeatIDs,
		"state":              string(b.State),
		"total_amount_cents": b.TotalAmountCents,
		"created_at":         b.CreatedAt.Format(time.RFC3339),
		"deadline":           b.Deadline.Format(time.RFC3339),
	}
	if b.ConfirmedAt != nil {
		resp["confirmed_at"] = b.ConfirmedAt.Format(time.RFC3339)
	}
	return c.JSON(http.StatusOK, resp)
}

// bookingErrorResponse maps engine errors onto HTTP responses.  The
// already-finalized case is a 409 so payment-retry clients can recognize it
// as success-equivalent rather than an outage.
func bookingErrorResponse(c echo.Context, err error) error {
	var illegal *booking.IllegalTransitionError
	switch {
	case errors.Is(err, booking.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, booking.ErrBookingFinalized):
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking already finalized"})
	case errors.Is(err, booking.ErrHoldExpired):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seat hold expired"})
	case errors.As(err, &illegal):
		return c.JSON(http.StatusConflict, echo.Map{"error": illegal.Error()})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
