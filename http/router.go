package http

import (
	"context"
	"net/http"

	"booker/booking"
	"booker/entity"
	"booker/gateway"
	"booker/payment"

	commonHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/labstack/echo/v4"
)

var ErrServerClosed = http.ErrServerClosed

type BookingService interface {
	Create(ctx context.Context, in booking.CreateInput) (entity.Booking, error)
	Get(ctx context.Context, bookingID string) (entity.Booking, error)
	Cancel(ctx context.Context, bookingID, reason, actor string) error
}

type PaymentService interface {
	Start(ctx context.Context, bookingID, gatewayName string) (payment.StartResult, error)
	ApplyOutcome(ctx context.Context, gatewayName string, o gateway.Outcome) error
	VerifyBooking(ctx context.Context, bookingID string) error
}

type FlightRepo interface {
	Create(ctx context.Context, flight entity.Flight, seats []entity.Seat) error
}

type SeatLister interface {
	ListForFlight(ctx context.Context, flightID string) ([]entity.Seat, error)
}

type CommandSender interface {
	Send(ctx context.Context, cmd any) error
}

func NewRouter(
	bookingSvc BookingService,
	paymentSvc PaymentService,
	flights FlightRepo,
	seats SeatLister,
	gateways *gateway.Registry,
	commandBus CommandSender,
) *echo.Echo {
	server := commonHTTP.NewEcho()

	server.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	h := handler{
		bookingSvc: bookingSvc,
		paymentSvc: paymentSvc,
		flights:    flights,
		seats:      seats,
		gateways:   gateways,
		commandBus: commandBus,
	}

	server.POST("/flights", h.CreateFlight)
	server.GET("/flights/:flight_id/seats", h.ListSeats)

	server.POST("/bookings", h.CreateBooking)
	server.GET("/bookings/:booking_id", h.GetBooking)
	server.POST("/bookings/:booking_id/payments", h.StartPayment)
	server.PUT("/bookings/:booking_id/confirm", h.ConfirmBooking)
	server.PUT("/bookings/:booking_id/cancel", h.CancelBooking)

	server.POST("/payments/webhook/:gateway", h.HandleWebhook)
	server.POST("/payments/:payment_id/refund", h.RefundPayment)

	return server
}
