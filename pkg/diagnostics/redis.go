package diagnostics

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	gferrors "github.com/vnykmshr/pipex/pkg/common/errors"
)

// DefaultStream is the Redis stream used when RedisConfig.Stream is empty.
const DefaultStream = "pipex:failures"

// RedisConfig holds configuration for a RedisSink.
type RedisConfig struct {
	// Client is the Redis client used for XADD. Required.
	Client redis.Cmdable

	// Stream is the stream key records are appended to.
	Stream string

	// MaxLen caps the stream length (approximate trimming). Zero disables trimming.
	MaxLen int64

	// Timeout bounds each write. Zero means 2 seconds.
	Timeout time.Duration
}

// RedisSink appends failure records to a Redis stream.
type RedisSink struct {
	config RedisConfig
}

// NewRedisSink creates a RedisSink.
func NewRedisSink(config RedisConfig) (*RedisSink, error) {
	if config.Client == nil {
		return nil, gferrors.NewValidationError("diagnostics", "client", nil, "cannot be nil").
			WithHint("provide a redis client")
	}
	if config.Stream == "" {
		config.Stream = DefaultStream
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Second
	}
	return &RedisSink{config: config}, nil
}

// Stream returns the stream key records are written to.
func (s *RedisSink) Stream() string {
	return s.config.Stream
}

// WriteFailure implements Sink.
func (s *RedisSink) WriteFailure(ctx context.Context, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	args := &redis.XAddArgs{
		Stream: s.config.Stream,
		Values: map[string]interface{}{
			"run_id":      rec.RunID,
			"stage":       rec.Stage,
			"stage_index": strconv.Itoa(rec.StageIndex),
			"item":        strconv.Itoa(rec.Index),
			"strategy":    rec.Strategy,
			"failure":     rec.Message(),
			"time":        rec.Time.Format(time.RFC3339Nano),
		},
	}
	if s.config.MaxLen > 0 {
		args.MaxLen = s.config.MaxLen
		args.Approx = true
	}

	if err := s.config.Client.XAdd(ctx, args).Err(); err != nil {
		return gferrors.NewOperationError("diagnostics", "WriteFailure", err).
			WithContext("stream " + s.config.Stream)
	}
	return nil
}
