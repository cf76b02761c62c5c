package initializer

import (
	"log"

	"github.com/alpacahq/gopaca/calendar"
	"github.com/alpacahq/gopaca/clock"
	"github.com/alpacahq/gopaca/env"
)

// Initialize gocax's required environment variables
// to their default values.
func Initialize() {
	// Engine
	env.RegisterDefault("ENGINE_MODE", "DEV")
	env.RegisterDefault("START_TIME", clock.Now().In(calendar.NY).Format("2006-01-02 15:04"))
	env.RegisterDefault("LOG_LEVEL", "INFO")
	env.RegisterDefault("STANDBY_MODE", "FALSE")

	// Batch scheduler
	env.RegisterDefault("CAPROC_PARALLELISM", "4")
	env.RegisterDefault("CAPROC_RETRY_SWEEP_INTERVAL", "15m")
	// after market close, eastern
	env.RegisterDefault("CAPROC_BATCH_SCHEDULE", "0 30 16 * * MON-FRI")

	// Postgres
	env.RegisterDefault("PGDATABASE", "gocax")
	env.RegisterDefault("PGHOST", "127.0.0.1")
	env.RegisterDefault("PGUSER", "postgres")
	env.RegisterDefault("PGPASSWORD", "alpacas")

	// if rmq queues are not specified, panic
	if env.GetVar("ACTION_REQUESTS_QUEUE") == "" {
		log.Fatal("invalid environment: ACTION_REQUESTS_QUEUE is required")
	}
}
