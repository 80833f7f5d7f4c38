package syncer

import (
	"context"
	"log"
	"time"
)

// StartSweepWorker runs periodic reconciliation sweeps against the wallet
// provider. Returns a cleanup function to stop the worker.
func StartSweepWorker(ctx context.Context, svc Service, interval time.Duration) func() {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	stopChan := make(chan struct{})

	sweep := func() {
		report, err := svc.SyncAll(ctx, "scheduled reconciliation")
		if err != nil {
			log.Printf("sync worker: sweep aborted: %v", err)
			return
		}
		log.Printf("sync worker: %d account(s) checked, %d corrected, %d failed",
			report.Accounts, report.Corrected, report.Failed)
	}

	go func() {
		log.Println("sync worker started")

		for {
			select {
			case <-ctx.Done():
				log.Println("sync worker shutting down (context cancelled)")
				return
			case <-stopChan:
				log.Println("sync worker shutting down (stop requested)")
				return
			case <-ticker.C:
				sweep()
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(stopChan)
	}
}
