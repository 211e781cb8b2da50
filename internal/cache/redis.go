package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/lesson-registration-api/internal/datastore"
	appErrors "github.com/noah-isme/lesson-registration-api/pkg/errors"
)

const (
	redisRowsPrefix = "tablecache:rows:"
	redisTSPrefix   = "tablecache:ts:"

	encodingJSON byte = 'j'
	encodingZstd byte = 'z'
)

// Redis shares table snapshots between processes. Rows and the write timestamp are separate
// keys, written in one MULTI and deleted with one DEL.
type Redis struct {
	client   redis.UniversalClient
	ttl      time.Duration
	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewRedis constructs the shared cache. compress enables zstd on stored snapshots.
func NewRedis(client redis.UniversalClient, ttl time.Duration, compress bool, recorder Recorder, logger *zap.Logger) (*Redis, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("init zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("init zstd decoder: %w", err)
	}
	return &Redis{
		client:   client,
		ttl:      ttl,
		compress: compress,
		encoder:  enc,
		decoder:  dec,
		recorder: recorderOrNop(recorder),
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (c *Redis) Get(ctx context.Context, table string) (*datastore.Table, error) {
	start := time.Now()
	vals, err := c.client.MGet(ctx, redisRowsPrefix+table, redisTSPrefix+table).Result()
	if err != nil {
		c.recorder.RecordCacheOperation(false, time.Since(start))
		return nil, fmt.Errorf("redis mget %s: %w", table, err)
	}
	rows, rowsOK := vals[0].(string)
	rawTS, tsOK := vals[1].(string)
	if !rowsOK || !tsOK {
		c.recorder.RecordCacheOperation(false, time.Since(start))
		return nil, appErrors.ErrCacheMiss
	}
	written, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil || c.now().Sub(time.Unix(0, written)) >= c.ttl {
		c.recorder.RecordCacheOperation(false, time.Since(start))
		return nil, appErrors.ErrCacheMiss
	}
	snapshot, err := c.decode([]byte(rows))
	if err != nil {
		c.recorder.RecordCacheOperation(false, time.Since(start))
		c.logger.Warn("discarding undecodable table snapshot", zap.String("table", table), zap.Error(err))
		return nil, appErrors.ErrCacheMiss
	}
	c.recorder.RecordCacheOperation(true, time.Since(start))
	return snapshot, nil
}

func (c *Redis) Put(ctx context.Context, table string, snapshot *datastore.Table) error {
	if snapshot == nil {
		return c.Invalidate(ctx, table)
	}
	payload, err := c.encode(snapshot)
	if err != nil {
		return err
	}
	ts := strconv.FormatInt(c.now().UnixNano(), 10)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisRowsPrefix+table, payload, c.ttl)
		pipe.Set(ctx, redisTSPrefix+table, ts, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", table, err)
	}
	return nil
}

func (c *Redis) Invalidate(ctx context.Context, table string) error {
	if err := c.client.Del(ctx, redisRowsPrefix+table, redisTSPrefix+table).Err(); err != nil {
		return fmt.Errorf("redis invalidate %s: %w", table, err)
	}
	c.recorder.RecordCacheInvalidation(table)
	return nil
}

func (c *Redis) InvalidateAll(ctx context.Context) error {
	for _, pattern := range []string{redisRowsPrefix + "*", redisTSPrefix + "*"} {
		iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("redis scan pattern %s: %w", pattern, err)
		}
		if len(keys) == 0 {
			continue
		}
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", pattern, err)
		}
	}
	c.recorder.RecordCacheInvalidation("*")
	return nil
}

func (c *Redis) Probe(ctx context.Context, table string) (Presence, error) {
	value, err := c.client.Exists(ctx, redisRowsPrefix+table).Result()
	if err != nil {
		return Presence{}, fmt.Errorf("redis exists %s: %w", table, err)
	}
	ts, err := c.client.Exists(ctx, redisTSPrefix+table).Result()
	if err != nil {
		return Presence{}, fmt.Errorf("redis exists %s: %w", table, err)
	}
	return Presence{Value: value > 0, Timestamp: ts > 0}, nil
}

// Close releases the codec resources. The redis client is owned by the caller.
func (c *Redis) Close() {
	c.decoder.Close()
	_ = c.encoder.Close()
}

func (c *Redis) encode(snapshot *datastore.Table) ([]byte, error) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal table %s: %w", snapshot.Name, err)
	}
	if !c.compress {
		return append([]byte{encodingJSON}, raw...), nil
	}
	return c.encoder.EncodeAll(raw, []byte{encodingZstd}), nil
}

func (c *Redis) decode(payload []byte) (*datastore.Table, error) {
	if len(payload) == 0 {
		return nil, errors.New("empty payload")
	}
	raw := payload[1:]
	switch payload[0] {
	case encodingJSON:
	case encodingZstd:
		var err error
		raw, err = c.decoder.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown encoding %q", payload[0])
	}
	var snapshot datastore.Table
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return &snapshot, nil
}
