package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses the duration-valued settings

	"github.com/joho/godotenv" // godotenv loads a local .env file when present
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for the
// hold and sweep timings the reservation engine runs on.
type Config struct {
	Env               string        // application environment (e.g. "dev", "prod")
	Port              string        // HTTP port to listen on
	JWTSecret         string        // secret used to verify bearer tokens
	HoldTTL           time.Duration // how long a seat hold lives before a payment confirms it
	PaymentRetryTTL   time.Duration // shorter deadline granted after a failed payment attempt
	MaxPaymentRetries int           // failed payment attempts tolerated before cancelling
	SweepInterval     time.Duration // expiry sweeper cadence; must stay below HoldTTL
	PaymentDelay      time.Duration // simulated gateway latency
	PaymentFailRate   float64       // simulated gateway decline probability
	DBUser            string        // catalog database username (empty disables the MySQL catalog)
	DBPass            string        // catalog database password (optional)
	DBHost            string        // catalog database host address
	DBPort            string        // catalog database port number
	DBName            string        // catalog database name
	AMQPURL           string        // message broker URL (empty disables event publishing)
	ConsumerEnabled   bool          // whether to run the booking.events consumer in-process
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when it
// exists.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message; engine tunables all
// have sensible defaults.
func Load() Config {
	_ = godotenv.Load() // best effort; absence of .env is not an error

	cfg := Config{
		Env:               must("APP_ENV"),    // environment (dev/test/prod)
		Port:              must("APP_PORT"),   // port to bind the HTTP server
		JWTSecret:         must("JWT_SECRET"), // secret used to verify bearer tokens
		HoldTTL:           envDur("HOLD_TTL", 5*time.Minute),
		PaymentRetryTTL:   envDur("PAYMENT_RETRY_TTL", 2*time.Minute),
		MaxPaymentRetries: envInt("PAYMENT_MAX_RETRIES", 1),
		SweepInterval:     envDur("SWEEP_INTERVAL", 0),
		PaymentDelay:      envDur("PAYMENT_DELAY", 100*time.Millisecond),
		PaymentFailRate:   envFloat("PAYMENT_FAIL_RATE", 0.05),
		DBUser:            os.Getenv("DB_USER"),
		DBPass:            os.Getenv("DB_PASS"),
		DBHost:            os.Getenv("DB_HOST"),
		DBPort:            os.Getenv("DB_PORT"),
		DBName:            os.Getenv("DB_NAME"),
		AMQPURL:           brokerURL(),
		ConsumerEnabled:   envBool("QUEUE_CONSUMER_ENABLED", false),
	}
	if cfg.SweepInterval <= 0 {
		// Keep reclamation latency bounded relative to the hold TTL.
		cfg.SweepInterval = cfg.HoldTTL / 5
	}
	if cfg.SweepInterval >= cfg.HoldTTL {
		log.Fatalf("SWEEP_INTERVAL (%s) must be smaller than HOLD_TTL (%s)", cfg.SweepInterval, cfg.HoldTTL)
	}
	return cfg
}

// CatalogFromDB reports whether enough database settings are present to use
// the MySQL catalog adapter instead of the in-memory catalog.
func (c Config) CatalogFromDB() bool {
	return c.DBUser != "" && c.DBHost != "" && c.DBPort != "" && c.DBName != ""
}

// brokerURL reads the message broker address, accepting either variable
// name.  Empty means no broker: booking events are discarded instead of
// dialing a broker that is not there.
func brokerURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// envFloat reads a float-valued variable, falling back to d when unset or
// malformed.
func envFloat(key string, d float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return d
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return d
	}
	return f
}
