package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"faceattend/internal/config"
	"faceattend/internal/queue"
	"faceattend/internal/stats"
	"faceattend/internal/store"
)

// Worker consumes recorded check-in events and maintains the daily
// dashboard counters in Redis.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Fatalf("redis not reachable at %s", cfg.RedisAddr)
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for check-in events...")
	stats.NewAggregator(redisClient.Client).Run(ctx, messages)
	log.Println("worker stopped")
}
