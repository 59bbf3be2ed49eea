// Command dispatch enqueues a single scheduled-post sweep and exits.
package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/queue"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisURI})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	enqueued, err := queue.EnqueueSweep(ctx, client, "cli", cfg.Sweep.Timeout)
	if err != nil {
		log.Fatalf("Failed to dispatch sweep: %v", err)
	}

	if enqueued {
		log.Println("Scheduled post sweep dispatched")
	} else {
		log.Println("A scheduled post sweep is already pending")
	}
}
