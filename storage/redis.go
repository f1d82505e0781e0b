package storage

import (
	"context"
	"iter"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/wippyai/wasm-journal/errors"
)

const (
	redisField = "record"
	redisPage  = 256
)

// RedisOptions configures OpenRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

// Redis stores each record as one entry of a Redis stream. XADD is
// atomic, so a record is either fully in the stream or absent.
type Redis struct {
	client  redis.UniversalClient
	stream  string
	ownsCli bool

	mu     sync.Mutex
	closed bool
}

var _ Backend = (*Redis)(nil)

// OpenRedis connects to a single Redis server and checks it responds.
func OpenRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.StorageIO("connect redis "+opts.Addr, err)
	}
	r, err := NewRedis(rdb, opts.Stream)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	r.ownsCli = true
	return r, nil
}

// NewRedis uses an existing client. The caller keeps ownership of it.
func NewRedis(client redis.UniversalClient, stream string) (*Redis, error) {
	if stream == "" {
		return nil, errors.InvalidInput(errors.PhaseStorage, "redis backend needs a stream name")
	}
	return &Redis{client: client, stream: stream}, nil
}

func (r *Redis) Append(ctx context.Context, record []byte) error {
	if err := r.check(); err != nil {
		return err
	}
	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: []any{redisField, record},
	}).Err()
	if err != nil {
		return errors.StorageIO("xadd "+r.stream, err)
	}
	return nil
}

// Records pages through the stream with XRANGE from the oldest entry.
func (r *Redis) Records(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if err := r.check(); err != nil {
			yield(nil, err)
			return
		}
		start := "-"
		for {
			msgs, err := r.client.XRangeN(ctx, r.stream, start, "+", redisPage).Result()
			if err != nil {
				yield(nil, errors.StorageIO("xrange "+r.stream, err))
				return
			}
			for _, msg := range msgs {
				v, ok := msg.Values[redisField].(string)
				if !ok {
					yield(nil, errors.InvalidData(errors.PhaseStorage, []string{r.stream, msg.ID}, "stream entry has no record field"))
					return
				}
				if !yield([]byte(v), nil) {
					return
				}
			}
			if len(msgs) < redisPage {
				return
			}
			start = "(" + msgs[len(msgs)-1].ID
		}
	}
}

func (r *Redis) check() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.Closed(errors.PhaseStorage, "redis backend")
	}
	return nil
}

// Close closes the client if it was opened by OpenRedis.
func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if r.ownsCli {
		return r.client.Close()
	}
	return nil
}
