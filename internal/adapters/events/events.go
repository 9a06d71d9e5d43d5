// Package events records session and channel events: always to the log, and
// to Redis pub/sub when configured.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Consult/internal/core"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const publishTimeout = 2 * time.Second

// LogSink writes each event as one structured log line.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("module", "events").Logger()}
}

func (s *LogSink) Record(_ context.Context, e core.Event) {
	ev := s.logger.Info().
		Str("event_id", e.ID).
		Str("display_id", e.DisplayID).
		Str("action", e.Action).
		Time("at", e.At)
	if e.From != "" || e.To != "" {
		ev = ev.Str("from", string(e.From)).Str("to", string(e.To))
	}
	if e.Actor != "" {
		ev = ev.Str("actor", e.Actor)
	}
	ev.Msg("session event")
}

// Publisher is the part of a Redis client RedisSink needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes events as JSON on <prefix><display id>. Publishing is
// bounded by its own timeout and never fails the caller.
type RedisSink struct {
	pub    Publisher
	prefix string
}

func NewRedisSink(pub Publisher, prefix string) *RedisSink {
	return &RedisSink{pub: pub, prefix: prefix}
}

// Dial connects to the Redis server at url and checks it answers.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (s *RedisSink) Record(ctx context.Context, e core.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Str("module", "events").Msg("marshal event")
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.pub.Publish(ctx, s.prefix+e.DisplayID, payload).Err(); err != nil {
		log.Warn().Err(err).Str("module", "events").Str("display_id", e.DisplayID).Msg("publish event")
	}
}

// Multi fans an event out to every sink in order.
type Multi []core.EventSink

func (m Multi) Record(ctx context.Context, e core.Event) {
	for _, s := range m {
		if s != nil {
			s.Record(ctx, e)
		}
	}
}
