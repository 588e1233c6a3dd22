package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booker/booking"
	"booker/clock"
	"booker/config"
	"booker/db"
	"booker/gateway"
	"booker/http"
	"booker/inventory"
	"booker/message"
	"booker/payment"
	"booker/sweeper"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Service struct {
	httpAddr   string
	forwarder  *message.Forwarder
	msgRouter  *message.Router
	httpRouter *echo.Echo
	sweeper    sweeper.Sweeper
}

func New(
	logger watermill.LoggerAdapter,
	redisClient *redis.Client,
	dbConn *sqlx.DB,
	gateways *gateway.Registry,
	loyalty message.LoyaltyService,
	notifier message.NotificationSender,
	cfg config.Config,
) (*Service, error) {
	clk := clock.NewSystem()

	bookingRepo := db.NewBookingRepo(dbConn, logger)
	paymentRepo := db.NewPaymentRepo(dbConn, logger)
	seatRepo := db.NewSeatRepo(dbConn)
	flightRepo := db.NewFlightRepo(dbConn)

	inventoryMgr := inventory.NewManager(seatRepo, clk, cfg.HoldTTL)
	bookingSvc := booking.NewService(bookingRepo, inventoryMgr, clk)
	reconciler := payment.NewReconciler(paymentRepo, bookingRepo, gateways, clk)

	fwd, err := message.NewForwarder(dbConn, redisClient, logger)
	if err != nil {
		return nil, fmt.Errorf("creating forwarder: %w", err)
	}

	msgRouter, err := message.NewRouter(message.RouterDeps{
		Logger:      logger,
		Loyalty:     loyalty,
		Notifier:    notifier,
		RedisClient: redisClient,
		Refunder:    reconciler,
	})
	if err != nil {
		return nil, fmt.Errorf("creating message router: %w", err)
	}

	commandBus, err := message.NewCommandBus(redisClient, logger)
	if err != nil {
		return nil, fmt.Errorf("creating command bus: %w", err)
	}

	httpRouter := http.NewRouter(bookingSvc, reconciler, flightRepo, inventoryMgr, gateways, commandBus)

	swp := sweeper.New(bookingRepo, bookingSvc, clk, cfg.SweepInterval, logrus.StandardLogger())

	return &Service{
		httpAddr:   cfg.HTTPAddr,
		forwarder:  fwd,
		msgRouter:  msgRouter,
		httpRouter: httpRouter,
		sweeper:    swp,
	}, nil
}

func (s Service) Run(ctx context.Context) error {
	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.forwarder.Run(runCtx); err != nil {
			return fmt.Errorf("running forwarder: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		if err := s.msgRouter.Run(runCtx); err != nil {
			return fmt.Errorf("running messaging router: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		if err := s.sweeper.Run(runCtx); err != nil {
			return fmt.Errorf("running sweeper: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		// Wait for message router
		<-s.msgRouter.Running()

		logrus.Info("Starting HTTP server...")
		err := s.httpRouter.Start(s.httpAddr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("starting http server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-runCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		logrus.Info("Shutting down HTTP server...")
		if err := s.httpRouter.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("waiting for shutdown: %w", err)
	}
	logrus.Info("Shutdown complete.")

	return nil
}
