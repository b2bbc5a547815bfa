package distributed

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
)

// luaTryAcquire purges expired permits, then grants one if the holder
// count is below capacity. Scores are permit expiry times in epoch
// seconds. Result: 1 when granted, 0 when full.
const luaTryAcquire = `
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
local count = redis.call('ZCARD', KEYS[1])
if count < tonumber(ARGV[4]) then
	redis.call('ZADD', KEYS[1], tonumber(ARGV[2]) + tonumber(ARGV[3]), ARGV[1])
	return 1
end
return 0
`

// luaRelease removes one permit. Result: 1 when the permit was held.
const luaRelease = `
return redis.call('ZREM', KEYS[1], ARGV[1])
`

// luaExtend renews a permit's expiry only if it is still held.
const luaExtend = `
local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
if score == false then
	return 0
end
redis.call('ZADD', KEYS[1], 'XX', tonumber(ARGV[2]) + tonumber(ARGV[3]), ARGV[1])
return 1
`

// luaInUse purges expired permits and returns the holder count.
const luaInUse = `
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
return redis.call('ZCARD', KEYS[1])
`

type redisSemaphore struct {
	config Config
	keys   map[string]string

	tryAcquireScript *redis.Script
	releaseScript    *redis.Script
	extendScript     *redis.Script
	inUseScript      *redis.Script
}

func newRedisSemaphore(config Config) (Semaphore, error) {
	rs := &redisSemaphore{
		config:           config,
		keys:             redisKeys(config.Key),
		tryAcquireScript: redis.NewScript(luaTryAcquire),
		releaseScript:    redis.NewScript(luaRelease),
		extendScript:     redis.NewScript(luaExtend),
		inUseScript:      redis.NewScript(luaInUse),
	}
	return rs, nil
}

func (rs *redisSemaphore) Acquire(ctx context.Context) (*Permit, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(rs.config.RetryInterval)
	defer ticker.Stop()

	for {
		p, err := rs.TryAcquire(ctx)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, tferrors.NewOperationError("distributed", "Acquire", ctx.Err())
		}
	}
}

func (rs *redisSemaphore) TryAcquire(ctx context.Context) (*Permit, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	permitID := rs.config.InstanceID + ":" + uuid.NewString()
	now := time.Now()

	opCtx, cancel := context.WithTimeout(ctx, rs.config.RedisTimeout)
	defer cancel()

	granted, err := rs.tryAcquireScript.Run(opCtx, rs.config.Redis,
		[]string{rs.keys["holders"]},
		permitID,
		timeToFloat(now),
		rs.config.PermitTTL.Seconds(),
		rs.config.Capacity,
	).Int64()
	if err != nil {
		if rs.config.FallbackToLocal {
			return rs.acquireLocal(), nil
		}
		return nil, &RedisError{"TryAcquire", err}
	}

	if granted != 1 {
		return nil, nil
	}
	return &Permit{ID: permitID, ExpiresAt: now.Add(rs.config.PermitTTL)}, nil
}

// localPermitPrefix marks permits granted by the fallback semaphore,
// which must be released locally as well.
const localPermitPrefix = "local:"

func (rs *redisSemaphore) acquireLocal() *Permit {
	if !rs.config.Local.TryAcquire() {
		return nil
	}
	return &Permit{
		ID:        localPermitPrefix + uuid.NewString(),
		ExpiresAt: time.Now().Add(rs.config.PermitTTL),
	}
}

func (rs *redisSemaphore) Release(ctx context.Context, p *Permit) error {
	if p == nil {
		return ErrNotHeld
	}
	if strings.HasPrefix(p.ID, localPermitPrefix) {
		rs.config.Local.Release()
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opCtx, cancel := context.WithTimeout(ctx, rs.config.RedisTimeout)
	defer cancel()

	removed, err := rs.releaseScript.Run(opCtx, rs.config.Redis,
		[]string{rs.keys["holders"]}, p.ID).Int64()
	if err != nil {
		return &RedisError{"Release", err}
	}
	if removed != 1 {
		return ErrNotHeld
	}
	return nil
}

func (rs *redisSemaphore) Extend(ctx context.Context, p *Permit) error {
	if p == nil {
		return ErrNotHeld
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now()
	opCtx, cancel := context.WithTimeout(ctx, rs.config.RedisTimeout)
	defer cancel()

	renewed, err := rs.extendScript.Run(opCtx, rs.config.Redis,
		[]string{rs.keys["holders"]},
		p.ID,
		timeToFloat(now),
		rs.config.PermitTTL.Seconds(),
	).Int64()
	if err != nil {
		return &RedisError{"Extend", err}
	}
	if renewed != 1 {
		return ErrNotHeld
	}
	p.ExpiresAt = now.Add(rs.config.PermitTTL)
	return nil
}

func (rs *redisSemaphore) InUse(ctx context.Context) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	opCtx, cancel := context.WithTimeout(ctx, rs.config.RedisTimeout)
	defer cancel()

	count, err := rs.inUseScript.Run(opCtx, rs.config.Redis,
		[]string{rs.keys["holders"]},
		timeToFloat(time.Now()),
	).Int64()
	if err != nil {
		return 0, &RedisError{"InUse", err}
	}
	return int(count), nil
}

func (rs *redisSemaphore) Capacity() int {
	return rs.config.Capacity
}

func (rs *redisSemaphore) Reset(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	opCtx, cancel := context.WithTimeout(ctx, rs.config.RedisTimeout)
	defer cancel()

	if err := rs.config.Redis.Del(opCtx, rs.keys["holders"], rs.keys["config"]).Err(); err != nil {
		return &RedisError{"Reset", err}
	}
	return nil
}

func (rs *redisSemaphore) Close() error {
	return nil
}
