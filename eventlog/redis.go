package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"figgie.com/server/game"
	"figgie.com/server/logging"
)

var redisLogger = log.With().Str("logger_name", "eventlog::redis").Logger()

const redisTimeout = 2 * time.Second

// RedisSink appends each event as a JSON blob to a per-round list, so
// a round's full stream can be replayed with a single LRANGE.
type RedisSink struct {
	rdclient  *redis.Client
	keyPrefix string
}

func NewRedisSink(host string, port int, pw string, db int) (*RedisSink, error) {
	rdclient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: pw,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := rdclient.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisSink{rdclient: rdclient, keyPrefix: "figgie:events"}, nil
}

func (r *RedisSink) key(roundID string) string {
	return fmt.Sprintf("%s:%s", r.keyPrefix, roundID)
}

func (r *RedisSink) Emit(ev game.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		redisLogger.Error().Err(err).
			Str(logging.RoundIDKey, ev.RoundID).
			Msg("Could not marshal event")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := r.rdclient.RPush(ctx, r.key(ev.RoundID), b).Err(); err != nil {
		redisLogger.Error().Err(err).
			Str(logging.RoundIDKey, ev.RoundID).
			Str(logging.SinkKey, "redis").
			Msg("Dropping event after redis error")
	}
}

// Replay returns the stored stream for a round in emission order.
func (r *RedisSink) Replay(ctx context.Context, roundID string) ([]game.Event, error) {
	vals, err := r.rdclient.LRange(ctx, r.key(roundID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]game.Event, 0, len(vals))
	for _, v := range vals {
		var ev game.Event
		if err := json.Unmarshal([]byte(v), &ev); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func (r *RedisSink) Close() error {
	return r.rdclient.Close()
}
