package stats

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"faceattend/internal/attendance"
	"faceattend/internal/queue"
	"faceattend/internal/store"
)

const retention = 60 * 24 * time.Hour

// DayStats summarizes check-ins for one UTC day.
type DayStats struct {
	Day     string         `json:"day"`
	Total   int            `json:"total"`
	ByClass map[string]int `json:"byClass"`
}

// Aggregator tails check-in events and maintains per-day counters in
// Redis. It runs in the worker binary, off the request path.
type Aggregator struct {
	client *redis.Client
}

// NewAggregator creates an aggregator over the given client.
func NewAggregator(client *redis.Client) *Aggregator {
	return &Aggregator{client: client}
}

// Run consumes messages until ctx is canceled.
func (a *Aggregator) Run(ctx context.Context, messages <-chan queue.Message) {
	for msg := range messages {
		if msg.Type != queue.TypeCheckin {
			continue
		}
		var evt attendance.CheckinEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("stats: drop malformed checkin event: %v", err)
			continue
		}
		if err := a.apply(ctx, evt); err != nil {
			log.Printf("stats: apply checkin for %s failed: %v", evt.StudentID, err)
		}
	}
}

func (a *Aggregator) apply(ctx context.Context, evt attendance.CheckinEvent) error {
	key := store.Key("stats", evt.Day)
	pipe := a.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "total", 1)
	if evt.ClassName != "" {
		pipe.HIncrBy(ctx, key, "class:"+evt.ClassName, 1)
	}
	pipe.Expire(ctx, key, retention)
	_, err := pipe.Exec(ctx)
	return err
}

// Reader serves dashboard queries from the counters.
type Reader struct {
	client *redis.Client
}

// NewReader creates a reader over the given client.
func NewReader(client *redis.Client) *Reader {
	return &Reader{client: client}
}

// ForDay returns the counters for a UTC day. A day with no check-ins
// yields zeroes, not an error.
func (r *Reader) ForDay(ctx context.Context, day time.Time) (DayStats, error) {
	dayKey := day.UTC().Format("2006-01-02")
	fields, err := r.client.HGetAll(ctx, store.Key("stats", dayKey)).Result()
	if err != nil {
		return DayStats{}, err
	}

	out := DayStats{Day: dayKey, ByClass: make(map[string]int)}
	for field, raw := range fields {
		n, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		if field == "total" {
			out.Total = n
		} else if len(field) > 6 && field[:6] == "class:" {
			out.ByClass[field[6:]] = n
		}
	}
	return out, nil
}
