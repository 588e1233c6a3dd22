package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"booker/booking"
	"booker/command"
	"booker/entity"
	"booker/gateway"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type handler struct {
	bookingSvc BookingService
	paymentSvc PaymentService
	flights    FlightRepo
	seats      SeatLister
	gateways   *gateway.Registry
	commandBus CommandSender
}

type cabinRequest struct {
	Class       string `json:"class"`
	Rows        int    `json:"rows"`
	SeatsPerRow int    `json:"seats_per_row"`
	Price       money  `json:"price"`
}

type createFlightRequest struct {
	FlightNumber  string         `json:"flight_number"`
	Origin        string         `json:"origin"`
	Destination   string         `json:"destination"`
	DepartureTime string         `json:"departure_time"`
	Cabins        []cabinRequest `json:"cabins"`
}

type money struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

const rowLetters = "ABCDEFGHJK"

func (h handler) CreateFlight(c echo.Context) error {
	var req createFlightRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}

	flight := entity.Flight{
		ID:          uuid.NewString(),
		Number:      req.FlightNumber,
		Origin:      req.Origin,
		Destination: req.Destination,
	}
	if err := flight.DepartureTime.UnmarshalText([]byte(req.DepartureTime)); err != nil {
		return badRequest(fmt.Errorf("parsing departure time: %w", err))
	}

	var seats []entity.Seat
	for _, cabin := range req.Cabins {
		if cabin.Rows < 1 || cabin.SeatsPerRow < 1 || cabin.SeatsPerRow > len(rowLetters) {
			return badRequest(fmt.Errorf("invalid cabin layout %dx%d", cabin.Rows, cabin.SeatsPerRow))
		}
		for row := 1; row <= cabin.Rows; row++ {
			for _, letter := range rowLetters[:cabin.SeatsPerRow] {
				seats = append(seats, entity.Seat{
					ID:       uuid.NewString(),
					FlightID: flight.ID,
					Number:   fmt.Sprintf("%d%c", row, letter),
					Class:    cabin.Class,
					Price: entity.Money{
						Amount:   cabin.Price.Amount,
						Currency: cabin.Price.Currency,
					},
				})
			}
		}
	}

	if err := h.flights.Create(c.Request().Context(), flight, seats); err != nil {
		return fmt.Errorf("creating flight: %w", err)
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"flight_id": flight.ID,
		"seats":     len(seats),
	})
}

func (h handler) ListSeats(c echo.Context) error {
	seats, err := h.seats.ListForFlight(c.Request().Context(), c.Param("flight_id"))
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{"seats": seats})
}

type createBookingRequest struct {
	CustomerID string `json:"customer_id"`
	FlightID   string `json:"flight_id"`
	SeatNumber string `json:"seat_number"`
	Class      string `json:"class"`
	Quote      money  `json:"quote"`
}

func (h handler) CreateBooking(c echo.Context) error {
	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	if req.CustomerID == "" || req.FlightID == "" {
		return badRequest(errors.New("customer_id and flight_id are required"))
	}

	b, err := h.bookingSvc.Create(c.Request().Context(), booking.CreateInput{
		CustomerID: req.CustomerID,
		FlightID:   req.FlightID,
		SeatNumber: req.SeatNumber,
		Class:      req.Class,
		Quote: entity.Money{
			Amount:   req.Quote.Amount,
			Currency: req.Quote.Currency,
		},
	})
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusCreated, b)
}

func (h handler) GetBooking(c echo.Context) error {
	b, err := h.bookingSvc.Get(c.Request().Context(), c.Param("booking_id"))
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, b)
}

type startPaymentRequest struct {
	Gateway string `json:"gateway"`
}

func (h handler) StartPayment(c echo.Context) error {
	var req startPaymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}

	res, err := h.paymentSvc.Start(c.Request().Context(), c.Param("booking_id"), req.Gateway)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"payment_id":    res.PaymentID,
		"gateway":       res.Gateway,
		"external_ref":  res.ExternalRef,
		"client_secret": res.ClientSecret,
	})
}

// ConfirmBooking is the polling path: it verifies the latest payment attempt
// with the gateway and returns the booking, confirmed if the provider
// reports the money as captured.
func (h handler) ConfirmBooking(c echo.Context) error {
	ctx := c.Request().Context()
	bookingID := c.Param("booking_id")

	if err := h.paymentSvc.VerifyBooking(ctx, bookingID); err != nil {
		return mapError(err)
	}

	b, err := h.bookingSvc.Get(ctx, bookingID)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, b)
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

func (h handler) CancelBooking(c echo.Context) error {
	var req cancelBookingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	if req.Reason == "" {
		req.Reason = "customer request"
	}

	ctx := c.Request().Context()
	bookingID := c.Param("booking_id")

	if err := h.bookingSvc.Cancel(ctx, bookingID, req.Reason, "customer"); err != nil {
		return mapError(err)
	}

	b, err := h.bookingSvc.Get(ctx, bookingID)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, b)
}

// HandleWebhook accepts asynchronous outcome notifications from a payment
// provider. The body is parsed by the gateway adapter, which rejects
// anything failing signature verification. Everything past the signature
// check answers 200: duplicates, unknown references and stale outcomes are
// reconciliation no-ops and the provider must not keep retrying them.
func (h handler) HandleWebhook(c echo.Context) error {
	gatewayName := c.Param("gateway")
	gw, err := h.gateways.Get(gatewayName)
	if err != nil {
		return mapError(err)
	}

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return badRequest(fmt.Errorf("reading body: %w", err))
	}

	outcome, err := gw.ParseWebhook(c.Request().Header.Get(gw.SignatureHeader()), payload)
	if errors.Is(err, gateway.ErrEventIgnored) {
		return c.NoContent(http.StatusOK)
	}
	if err != nil {
		return mapError(err)
	}

	err = h.paymentSvc.ApplyOutcome(c.Request().Context(), gatewayName, outcome)
	if errors.Is(err, entity.ErrHoldExpired) || errors.Is(err, entity.ErrHoldMismatch) {
		// Acknowledged but not applied; the refund is handled out of band.
		log.FromContext(c.Request().Context()).WithError(err).Error("Webhook outcome not applied")
		return c.NoContent(http.StatusOK)
	}
	if err != nil {
		return fmt.Errorf("applying webhook outcome: %w", err)
	}

	return c.NoContent(http.StatusOK)
}

type refundRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

// RefundPayment only enqueues the refund; the command handler executes it
// against the gateway asynchronously.
func (h handler) RefundPayment(c echo.Context) error {
	var req refundRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	if req.Reason == "" {
		req.Reason = "requested by operator"
	}

	cmd := command.NewRefundPayment(c.Param("payment_id"), req.Amount, req.Reason)
	if err := h.commandBus.Send(c.Request().Context(), cmd); err != nil {
		return fmt.Errorf("sending refund command: %w", err)
	}

	return c.NoContent(http.StatusAccepted)
}

func badRequest(err error) *echo.HTTPError {
	return &echo.HTTPError{
		Code:     http.StatusBadRequest,
		Message:  "failed to parse request",
		Internal: err,
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, entity.ErrBookingNotFound),
		errors.Is(err, entity.ErrPaymentNotFound),
		errors.Is(err, entity.ErrFlightNotFound),
		errors.Is(err, entity.ErrUnknownGateway):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, entity.ErrNoSeatsAvailable),
		errors.Is(err, entity.ErrAlreadyTerminal),
		errors.Is(err, entity.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, entity.ErrInvalidQuote):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, entity.ErrPaymentNotVerified):
		return echo.NewHTTPError(http.StatusPaymentRequired, err.Error())
	case errors.Is(err, entity.ErrInvalidSignature):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}
