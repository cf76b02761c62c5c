package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/alpacahq/gopaca/calendar"
	"github.com/alpacahq/gopaca/clock"
	"github.com/alpacahq/gopaca/env"
	"github.com/alpacahq/gopaca/log"
	"github.com/alpacahq/gopaca/rmq"
	"github.com/equitylab/gocax/utils"
	"github.com/equitylab/gocax/utils/bizday"
	"github.com/equitylab/gocax/utils/initializer"
	"github.com/equitylab/gocax/utils/signalman"
	"github.com/equitylab/gocax/workers/caproc"
	"github.com/equitylab/gocax/workers/caqueue"
	"github.com/robfig/cron"
	"go.uber.org/zap/zapcore"
)

var (
	cronWg      sync.WaitGroup
	c           *cron.Cron
	queueWorker *caqueue.QueueWorker
)

func shutdown() error {

	// stop crons so no new ones start
	if c != nil {
		c.Stop()
	}

	// wait for existing crons to finish
	cronWg.Wait()

	// stop the RMQ related tasks explicitly
	queueWorker.Stop()

	// sleep a second to let things cleanup
	<-time.After(time.Second)
	return nil
}

func init() {
	rand.Seed(clock.Now().UTC().UnixNano())
	// set the clock
	clock.Set()

	// register env defaults
	initializer.Initialize()

	flag.Parse()

	// forward errors to the alerts queue if one is configured
	log.Logger().AddCallback(
		"gocax-workers_error_alerts",
		zapcore.ErrorLevel,
		func(i interface{}) {
			queue := env.GetVar("ENGINE_ALERTS_QUEUE")
			if queue == "" {
				return
			}
			buf, err := json.Marshal(map[string]interface{}{
				"source": "gocax-workers",
				"time":   clock.Now(),
				"body":   i,
			})
			if err != nil {
				return
			}
			rmq.Produce(queue, buf)
		},
	)

	// set deployment level on logger
	log.Logger().SetDeploymentLevel(env.GetVar("ENGINE_MODE"))

	signalman.RegisterFunc("workers_shutdown", shutdown)
	signalman.Start()
}

func main() {
	// queue worker - no need for cron, it just runs in the background,
	// pulling execution requests from RMQ
	queueWorker = caqueue.NewQueueWorker()

	if utils.StandBy() {
		log.Info("starting in standby mode - no crons will be run")
		signalman.Wait()
		return
	}

	c = cron.NewWithLocation(calendar.NY)

	// daily batch - every weekday after market close
	log.Info(
		"starting batch scheduler",
		"schedule",
		env.GetVar("CAPROC_BATCH_SCHEDULE"))

	c.AddFunc(env.GetVar("CAPROC_BATCH_SCHEDULE"), func() {
		cronWg.Add(1)
		defer cronWg.Done()

		now := clock.Now().In(calendar.NY)

		if !calendar.IsMarketDay(now) {
			return
		}

		log.Info("daily corporate action batch", "time", now)
		caproc.Work(bizday.Today(now))
	})

	// retry sweep - requeue failed actions under their retry budget
	log.Info(
		"starting retry sweep",
		"interval",
		env.GetVar("CAPROC_RETRY_SWEEP_INTERVAL"))

	c.AddFunc(fmt.Sprintf("@every %v", env.GetVar("CAPROC_RETRY_SWEEP_INTERVAL")), func() {
		cronWg.Add(1)
		defer cronWg.Done()
		caproc.WorkRetries(bizday.Today(clock.Now()))
	})

	// queue the crons
	c.Start()

	log.Info(
		"workers are live",
		"mode", env.GetVar("ENGINE_MODE"),
		"clock", clock.Now())

	signalman.Wait()
}
