package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/singleflight"

	"github.com/dlystyr/fantasypl-mcp/internal/config"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
	"github.com/dlystyr/fantasypl-mcp/pkg/metrics"
)

// Map keys are sorted, so equal parameters always encode to equal bytes.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultPrefix   = "fpl:"
	defaultTTL      = 30 * time.Minute
	defaultCooldown = 30 * time.Second
)

// Version identifies the committed snapshot a result was computed from.
// Epochs are only unique within one store's lifetime; the run that committed
// the epoch makes the pair unique across restarts.
type Version struct {
	Epoch model.Epoch
	RunID string
}

// VersionOf returns the version of snap.
func VersionOf(snap *model.Snapshot) Version {
	return Version{Epoch: snap.Epoch, RunID: snap.RunID}
}

func (v Version) String() string {
	if v.RunID == "" {
		return strconv.FormatInt(int64(v.Epoch), 10)
	}
	return strconv.FormatInt(int64(v.Epoch), 10) + "-" + v.RunID
}

// ReadThrough memoizes analytics results per (operation, parameters, version).
// A failing backend never fails a request: the result is computed and the
// backend is left alone until the cooldown passes.
type ReadThrough struct {
	backend   Backend
	prefix    string
	ttl       time.Duration
	opTTLs    map[string]time.Duration
	cooldown  time.Duration
	logger    logger.Logger
	now       func() time.Time
	group     singleflight.Group
	latest    atomic.Int64 // newest announced epoch
	downUntil atomic.Int64 // unix nanos; backend bypassed before this
}

// New creates a ReadThrough over backend. A nil backend disables caching.
func New(backend Backend, opts ...Option) *ReadThrough {
	c := &ReadThrough{
		backend:  backend,
		prefix:   defaultPrefix,
		ttl:      defaultTTL,
		opTTLs:   map[string]time.Duration{},
		cooldown: defaultCooldown,
		logger:   logger.Named("cache"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open builds the backend named by cfg.Backend: memory, redis or none.
func Open(cfg config.CacheConfig) (Backend, error) {
	switch cfg.Backend {
	case "", config.BackendMemory:
		return NewMemoryBackend(WithMaxEntries(cfg.MaxEntries)), nil
	case config.BackendRedis:
		return NewRedisBackend(RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}), nil
	case config.BackendNone:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
}

// Key derives the cache key: <prefix><op>:<epoch>[-<run id>]:<sha256 of the JSON params>.
func (c *ReadThrough) Key(op string, params any, v Version) (string, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%s%s:%s:%s", c.prefix, op, v, hex.EncodeToString(sum[:])), nil
}

// TTL returns the lifetime used for op.
func (c *ReadThrough) TTL(op string) time.Duration {
	if ttl, ok := c.opTTLs[op]; ok {
		return ttl
	}
	return c.ttl
}

// EpochAdvanced records the newest committed epoch. Results computed against
// an older epoch are still returned to their callers but no longer stored.
func (c *ReadThrough) EpochAdvanced(ctx context.Context, snap *model.Snapshot) {
	for {
		cur := c.latest.Load()
		if int64(snap.Epoch) <= cur {
			return
		}
		if c.latest.CompareAndSwap(cur, int64(snap.Epoch)) {
			c.logger.Debug(ctx, "epoch advanced", logger.Int64("epoch", int64(snap.Epoch)))
			return
		}
	}
}

// Latest returns the newest announced epoch.
func (c *ReadThrough) Latest() model.Epoch {
	return model.Epoch(c.latest.Load())
}

// Close releases the backend.
func (c *ReadThrough) Close() error {
	if c.backend == nil {
		return nil
	}
	return c.backend.Close()
}

// GetOrCompute returns the cached result for (op, params, v) or computes,
// stores and returns it. Concurrent callers for the same key share one
// computation; each decodes its own copy. Compute errors are returned as is
// and never stored.
func GetOrCompute[T any](ctx context.Context, c *ReadThrough, op string, params any, v Version, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	key, err := c.Key(op, params, v)
	if err != nil {
		return zero, fault.Wrap(fault.KindInternal, "cache key "+op, err)
	}

	if raw, ok := c.lookup(ctx, op, key); ok {
		var out T
		if err := json.Unmarshal(raw, &out); err == nil {
			metrics.RecordCacheRequest(op, "hit")
			return out, nil
		}
		c.logger.Warn(ctx, "discarding undecodable cache entry", logger.String("key", key))
	}

	raw, err, shared := c.group.Do(key, func() (any, error) {
		out, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(out)
		if err != nil {
			return nil, fault.Wrap(fault.KindInternal, "encode result "+op, err)
		}
		c.store(ctx, op, key, b, v.Epoch)
		return b, nil
	})
	if shared {
		metrics.RecordCacheRequest(op, "shared")
	} else {
		metrics.RecordCacheRequest(op, "miss")
	}
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(raw.([]byte), &out); err != nil {
		return zero, fault.Wrap(fault.KindInternal, "decode result "+op, err)
	}
	return out, nil
}

func (c *ReadThrough) available() bool {
	return c.backend != nil && c.now().UnixNano() >= c.downUntil.Load()
}

func (c *ReadThrough) lookup(ctx context.Context, op, key string) ([]byte, bool) {
	if !c.available() {
		return nil, false
	}
	raw, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.degrade(ctx, op, "get", err)
		return nil, false
	}
	return raw, ok
}

func (c *ReadThrough) store(ctx context.Context, op, key string, value []byte, epoch model.Epoch) {
	if int64(epoch) < c.latest.Load() {
		metrics.RecordCacheRequest(op, "stale")
		return
	}
	if !c.available() {
		return
	}
	if _, err := c.backend.SetNX(ctx, key, value, c.TTL(op)); err != nil {
		c.degrade(ctx, op, "set", err)
	}
}

// degrade records a backend failure and starts the cooldown.
func (c *ReadThrough) degrade(ctx context.Context, op, action string, cause error) {
	err := fault.Wrap(fault.KindCacheUnavailable, "cache "+action, cause)
	c.downUntil.Store(c.now().Add(c.cooldown).UnixNano())
	metrics.RecordCacheRequest(op, "degraded")
	metrics.RecordErrorByComponent("cache", string(fault.KindCacheUnavailable))
	c.logger.Warn(ctx, "cache backend unavailable, computing through",
		logger.String("op", op),
		logger.Duration("cooldown", c.cooldown),
		logger.Error(err))
}
