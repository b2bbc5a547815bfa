package distributed

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
	"github.com/vnykmshr/taskflow/pkg/common/validation"
	"github.com/vnykmshr/taskflow/pkg/limit/semaphore"
)

// Semaphore is a counting semaphore shared by every instance using the
// same Redis key.
type Semaphore interface {
	// Acquire blocks until a permit is granted or ctx is done. It
	// returns the permit handle needed to release.
	Acquire(ctx context.Context) (*Permit, error)

	// TryAcquire takes a permit without blocking. The permit is nil
	// when none was available.
	TryAcquire(ctx context.Context) (*Permit, error)

	// Release returns a permit taken by this instance.
	Release(ctx context.Context, p *Permit) error

	// Extend renews the TTL of a held permit.
	Extend(ctx context.Context, p *Permit) error

	// InUse returns the number of unexpired permits currently held
	// across all instances.
	InUse(ctx context.Context) (int, error)

	// Capacity returns the configured permit capacity.
	Capacity() int

	// Reset clears all semaphore state in Redis.
	Reset(ctx context.Context) error

	// Close releases local resources. It does not release held permits.
	Close() error
}

// Permit is the handle for one granted permit.
type Permit struct {
	ID        string
	ExpiresAt time.Time
}

// Config holds configuration for the distributed semaphore.
type Config struct {
	// Redis is the client used for coordination.
	Redis redis.UniversalClient

	// Key is the Redis key prefix for this semaphore.
	Key string

	// Capacity is the permit count shared across all instances.
	Capacity int

	// InstanceID uniquely identifies this application instance.
	// Defaults to hostname-pid-uuid.
	InstanceID string

	// PermitTTL is how long a permit stays valid without Extend.
	// Defaults to 30 seconds.
	PermitTTL time.Duration

	// RedisTimeout bounds each Redis operation. Defaults to 500ms.
	RedisTimeout time.Duration

	// RetryInterval is the poll interval while Acquire waits for a
	// permit. Defaults to 50ms.
	RetryInterval time.Duration

	// FallbackToLocal admits through Local when Redis is unreachable.
	FallbackToLocal bool

	// Local is the per-instance fallback semaphore. Required when
	// FallbackToLocal is set.
	Local semaphore.Semaphore
}

// DefaultConfig returns a distributed semaphore configuration with
// sensible defaults. Redis, Key, and Capacity must still be set.
func DefaultConfig() Config {
	return Config{
		InstanceID:    generateInstanceID(),
		PermitTTL:     30 * time.Second,
		RedisTimeout:  500 * time.Millisecond,
		RetryInterval: 50 * time.Millisecond,
	}
}

func validateConfig(config Config) error {
	if config.Redis == nil {
		return validation.ValidateNotNil("distributed", "redis", nil)
	}
	if err := validation.ValidateNotEmpty("distributed", "key", config.Key); err != nil {
		return err
	}
	if err := validation.ValidatePositive("distributed", "capacity", config.Capacity); err != nil {
		return err
	}
	if config.FallbackToLocal && config.Local == nil {
		return validation.ValidateNotNil("distributed", "local", nil)
	}
	return nil
}

func applyConfigDefaults(config Config) Config {
	if config.InstanceID == "" {
		config.InstanceID = generateInstanceID()
	}
	if config.PermitTTL == 0 {
		config.PermitTTL = 30 * time.Second
	}
	if config.RedisTimeout == 0 {
		config.RedisTimeout = 500 * time.Millisecond
	}
	if config.RetryInterval == 0 {
		config.RetryInterval = 50 * time.Millisecond
	}
	return config
}

// New creates a distributed semaphore backed by Redis.
func New(config Config) (Semaphore, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return newRedisSemaphore(applyConfigDefaults(config))
}

// RedisError wraps a failed Redis operation so callers can tell
// coordination failures apart from admission denials.
type RedisError struct {
	Operation string
	Err       error
}

func (e *RedisError) Error() string {
	return "redis error in " + e.Operation + ": " + e.Err.Error()
}

func (e *RedisError) Unwrap() error {
	return e.Err
}

// ErrNotHeld is reported when releasing or extending a permit that the
// semaphore no longer tracks, usually because its TTL expired.
var ErrNotHeld = fmt.Errorf("%w: permit not held", tferrors.ErrInvalidState)

// generateInstanceID creates a unique identifier for this application
// instance.
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d-%s", hostname, os.Getpid(), uuid.NewString())
}

func redisKeys(prefix string) map[string]string {
	return map[string]string{
		"holders": prefix + ":holders",
		"config":  prefix + ":config",
	}
}

// timeToFloat converts time to float64 seconds for Redis scores.
func timeToFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
