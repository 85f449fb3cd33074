package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/docvault/docvault/internal/compress"
)

const partitionsSet = "cache:partitions"

func artifactKey(partition, name string) string {
	return "cache:" + partition + ":" + name
}

func entriesKey(partition string) string {
	return "cache:" + partition + ":entries"
}

// Redis keeps artifacts as single values, so publication is atomic by
// construction: the writer buffers everything and stores it with one SET
// on Close. Artifacts are passed through a compression codec before they
// hit the wire.
type Redis struct {
	client  *redis.Client
	encoder compress.Compress
	ttl     time.Duration
}

var _ Cache = (*Redis)(nil)

func NewRedis(addr string, encoder compress.Compress, ttl time.Duration) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // No password set
		DB:       0,  // Use default DB
		Protocol: 2,  // Connection protocol
	})

	return &Redis{client: client, encoder: encoder, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, partition, name string) (io.ReadCloser, error) {
	res := r.client.Get(ctx, artifactKey(partition, name))
	if res.Err() != nil {
		if errors.Is(res.Err(), redis.Nil) {
			return nil, ErrMiss
		}
		return nil, res.Err()
	}

	raw, err := res.Bytes()
	if err != nil {
		return nil, err
	}

	data, err := r.encoder.Decode(raw)
	if err != nil {
		return nil, err
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (r *Redis) Create(ctx context.Context, partition, name string) (Writer, error) {
	return &redisWriter{ctx: ctx, cache: r, partition: partition, name: name}, nil
}

func (r *Redis) Delete(ctx context.Context, partition, name string) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if err := p.Del(ctx, artifactKey(partition, name)).Err(); err != nil {
			return err
		}
		return p.SRem(ctx, entriesKey(partition), name).Err()
	})
	return err
}

func (r *Redis) Purge(ctx context.Context, partition string) error {
	names, err := r.client.SMembers(ctx, entriesKey(partition)).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(names)+1)
	for _, name := range names {
		keys = append(keys, artifactKey(partition, name))
	}
	keys = append(keys, entriesKey(partition))

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if err := p.Del(ctx, keys...).Err(); err != nil {
			return err
		}
		return p.SRem(ctx, partitionsSet, partition).Err()
	})
	return err
}

func (r *Redis) Partitions(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, partitionsSet).Result()
}

func (r *Redis) publish(ctx context.Context, partition, name string, data []byte) error {
	encoded, err := r.encoder.Encode(data)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if err := p.Set(ctx, artifactKey(partition, name), encoded, r.ttl).Err(); err != nil {
			return err
		}
		if err := p.SAdd(ctx, entriesKey(partition), name).Err(); err != nil {
			return err
		}
		return p.SAdd(ctx, partitionsSet, partition).Err()
	})
	return err
}

// redisWriter buffers under the context of its Create call, so a caller
// abandoning the acquisition via cancellation never publishes.
type redisWriter struct {
	mu        sync.Mutex
	ctx       context.Context
	cache     *Redis
	partition string
	name      string
	buf       bytes.Buffer
	done      bool
}

func (w *redisWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return 0, os.ErrClosed
	}

	return w.buf.Write(p)
}

func (w *redisWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return nil
	}
	w.done = true

	return w.cache.publish(w.ctx, w.partition, w.name, w.buf.Bytes())
}

func (w *redisWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.done = true
	w.buf.Reset()
	return nil
}
