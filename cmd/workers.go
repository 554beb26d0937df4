package cmd

import (
	"context"
	"sync"
	"time"

	"predictor/service"

	log "github.com/sirupsen/logrus"
)

// StartDeadlineSweepWorker periodically closes open predictions whose deadline
// has passed. Returns a cleanup function to stop the worker.
func StartDeadlineSweepWorker(ctx context.Context, predictions service.PredictionService, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	stopChan := make(chan struct{})

	sweep := func() {
		sweepCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()

		closed, err := predictions.CloseExpired(sweepCtx, time.Now().UTC())
		if err != nil {
			log.WithError(err).Error("Deadline sweep failed")
			return
		}
		if closed > 0 {
			log.WithField("closed", closed).Debug("Deadline sweep closed predictions")
		}
	}

	go func() {
		log.WithField("interval", interval).Info("Deadline sweep worker started")

		sweep()

		for {
			select {
			case <-ctx.Done():
				log.Info("Deadline sweep worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Deadline sweep worker shutting down (stop requested)...")
				return
			case <-ticker.C:
				sweep()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(stopChan)
		})
	}
}
