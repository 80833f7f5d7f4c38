package casino

import (
	"context"
	"log"
	"time"
)

// StartRetryWorker starts a background worker that sweeps casino transactions
// whose retry is due. Returns a cleanup function to stop the worker.
func StartRetryWorker(ctx context.Context, svc Service, interval time.Duration) func() {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	stopChan := make(chan struct{})

	sweep := func() {
		processed, err := svc.ProcessDueRetries(ctx)
		if err != nil {
			log.Printf("casino retry worker: sweep failed: %v", err)
			return
		}
		if processed > 0 {
			log.Printf("casino retry worker: processed %d due transaction(s)", processed)
		}
	}

	go func() {
		log.Println("casino retry worker started")
		sweep()

		for {
			select {
			case <-ctx.Done():
				log.Println("casino retry worker shutting down (context cancelled)")
				return
			case <-stopChan:
				log.Println("casino retry worker shutting down (stop requested)")
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
