package main // Entry point package

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/showgrid/booking/internal/booking"
	"github.com/showgrid/booking/internal/catalog"
	"github.com/showgrid/booking/internal/clock"
	"github.com/showgrid/booking/internal/config"
	"github.com/showgrid/booking/internal/database"
	"github.com/showgrid/booking/internal/handler"
	"github.com/showgrid/booking/internal/lock"
	"github.com/showgrid/booking/internal/model"
	"github.com/showgrid/booking/internal/payment"
	"github.com/showgrid/booking/internal/queue"
	"github.com/showgrid/booking/internal/router"
	queue_publisher "github.com/showgrid/booking/internal/service"
)

func main() {
	cfg := config.Load() // Load environment config

	// Catalog: MySQL when database settings are present, otherwise an
	// in-memory catalog seeded with a demo show so the service is usable
	// standalone.
	var cat catalog.Catalog
	if cfg.CatalogFromDB() {
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Fatalf("catalog database: %v", err)
		}
		defer db.Close()
		cat = catalog.NewMySQL(db)
	} else {
		mem := catalog.NewInMemory()
		mem.AddShow(demoShow())
		cat = mem
		log.Printf("no catalog database configured; using in-memory demo catalog")
	}

	// Events only go to RabbitMQ when a broker is configured; otherwise the
	// engine runs with a no-op notifier instead of dialing (and logging a
	// failure for) a broker that is not there.
	var notifier booking.Notifier = booking.NopNotifier{}
	if cfg.AMQPURL != "" {
		notifier = queue_publisher.AMQPNotifier{}
	} else {
		log.Printf("no message broker configured; booking events stay local")
	}

	clk := clock.System()
	table := lock.NewTable(clk)
	store := booking.NewStore()
	engine := booking.NewEngine(table, store, cat, notifier, clk, booking.Options{
		DefaultHoldTTL:    cfg.HoldTTL,
		PaymentRetryTTL:   cfg.PaymentRetryTTL,
		MaxPaymentRetries: cfg.MaxPaymentRetries,
	})

	// Expiry sweeper reclaims abandoned holds in the background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper := booking.NewSweeper(table, engine, clk, cfg.SweepInterval)
	go sweeper.Run(ctx)

	// Payment gateway delivers asynchronous success/failure callbacks into
	// the engine, duplicates and all.
	gw := payment.NewSimulator(paymentCallback(engine), cfg.PaymentDelay, cfg.PaymentFailRate)

	if cfg.ConsumerEnabled {
		go func() {
			if err := queue.StartBookingConsumer(); err != nil {
				log.Printf("booking consumer stopped: %v", err)
			}
		}()
	}

	e := echo.New()
	h := handler.NewBookingHandler(engine, gw)
	router.RegisterRoutes(e, h)
	router.RegisterBooking(e, h, cfg.JWTSecret, config.LoadRateLimitConfig(), config.NewRedisClient())

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// paymentCallback routes gateway verdicts into the engine's idempotent
// transitions.
func paymentCallback(engine *booking.Engine) payment.CallbackFunc {
	return func(ctx context.Context, bookingID uuid.UUID, ok bool) {
		var err error
		if ok {
			err = engine.ConfirmPayment(ctx, bookingID)
		} else {
			err = engine.FailPayment(ctx, bookingID)
		}
		if err != nil {
			log.Printf("payment callback for booking %s: %v", bookingID, err)
		}
	}
}

// demoShow seeds the in-memory catalog with a small auditorium.
func demoShow() *model.Show {
	seats := make(map[string]uint32)
	for _, row := range []string{"A", "B", "C"} {
		for n := 1; n <= 10; n++ {
			seats[row+strconv.Itoa(n)] = 1500
		}
	}
	return &model.Show{ID: 1, Title: "Demo Screening", StartsAt: time.Now().Add(24 * time.Hour), Seats: seats}
}
