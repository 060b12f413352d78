// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"trivia-quiz-system/gateway"
)

// StartTokenSweeper drops expired token-cache entries every 15 minutes.
// Expired entries are already treated as absent on lookup; the sweep only
// keeps the table small.
func StartTokenSweeper(cache *gateway.TokenCache) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(15*time.Minute),
		gocron.NewTask(func() {
			n, err := cache.DeleteExpired(context.Background())
			if err != nil {
				log.Printf("[Sweeper] failed to delete expired tokens: %v", err)
				return
			}
			if n > 0 {
				log.Printf("[Sweeper] removed %d expired token(s)", n)
			}
		}),
	)
}
