package distributed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/taskflow/internal/testutil"
	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
	"github.com/vnykmshr/taskflow/pkg/limit/semaphore"
)

// testRedis returns a client against a local Redis, skipping the test
// when none is reachable.
func testRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func testSemaphore(t *testing.T, rdb redis.UniversalClient, capacity int) Semaphore {
	t.Helper()
	config := DefaultConfig()
	config.Redis = rdb
	config.Key = "taskflow_test:" + t.Name()
	config.Capacity = capacity

	sem, err := New(config)
	testutil.AssertNoError(t, err)
	t.Cleanup(func() {
		_ = sem.Reset(context.Background())
		_ = sem.Close()
	})
	testutil.AssertNoError(t, sem.Reset(context.Background()))
	return sem
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{})
	testutil.AssertError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer func() { _ = rdb.Close() }()

	_, err = New(Config{Redis: rdb, Key: "", Capacity: 1})
	testutil.AssertError(t, err)

	_, err = New(Config{Redis: rdb, Key: "k", Capacity: 0})
	testutil.AssertError(t, err)

	_, err = New(Config{Redis: rdb, Key: "k", Capacity: 1, FallbackToLocal: true})
	testutil.AssertError(t, err)
	if !tferrors.IsValidationError(err) {
		t.Error("expected a ValidationError")
	}
}

func TestAcquireReleaseCycle(t *testing.T) {
	rdb := testRedis(t)
	sem := testSemaphore(t, rdb, 2)
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	p1, err := sem.TryAcquire(ctx)
	testutil.AssertNoError(t, err)
	if p1 == nil {
		t.Fatal("expected a permit")
	}

	p2, err := sem.TryAcquire(ctx)
	testutil.AssertNoError(t, err)
	if p2 == nil {
		t.Fatal("expected a second permit")
	}

	// Capacity exhausted.
	p3, err := sem.TryAcquire(ctx)
	testutil.AssertNoError(t, err)
	if p3 != nil {
		t.Fatal("third permit granted beyond capacity")
	}

	inUse, err := sem.InUse(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, inUse, 2)

	testutil.AssertNoError(t, sem.Release(ctx, p1))
	p3, err = sem.TryAcquire(ctx)
	testutil.AssertNoError(t, err)
	if p3 == nil {
		t.Fatal("released capacity not reusable")
	}

	testutil.AssertNoError(t, sem.Release(ctx, p2))
	testutil.AssertNoError(t, sem.Release(ctx, p3))
}

func TestAcquireBlocksUntilCapacity(t *testing.T) {
	rdb := testRedis(t)
	sem := testSemaphore(t, rdb, 1)
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	held, err := sem.Acquire(ctx)
	testutil.AssertNoError(t, err)

	granted := make(chan *Permit, 1)
	go func() {
		p, err := sem.Acquire(ctx)
		if err != nil {
			t.Error(err)
			return
		}
		granted <- p
	}()

	select {
	case <-granted:
		t.Fatal("acquire should block while the permit is held")
	case <-time.After(150 * time.Millisecond):
	}

	testutil.AssertNoError(t, sem.Release(ctx, held))
	select {
	case p := <-granted:
		testutil.AssertNoError(t, sem.Release(ctx, p))
	case <-time.After(2 * time.Second):
		t.Fatal("release did not unblock the waiter")
	}
}

func TestAcquireCancellation(t *testing.T) {
	rdb := testRedis(t)
	sem := testSemaphore(t, rdb, 1)

	bg, bgCancel := testutil.WithTimeout(t)
	defer bgCancel()

	held, err := sem.Acquire(bg)
	testutil.AssertNoError(t, err)
	defer func() { _ = sem.Release(bg, held) }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = sem.Acquire(ctx)
	testutil.AssertError(t, err)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded in chain", err)
	}
}

func TestPermitExpiry(t *testing.T) {
	rdb := testRedis(t)

	config := DefaultConfig()
	config.Redis = rdb
	config.Key = "taskflow_test:" + t.Name()
	config.Capacity = 1
	config.PermitTTL = 200 * time.Millisecond

	sem, err := New(config)
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { _ = sem.Reset(context.Background()) })
	testutil.AssertNoError(t, sem.Reset(context.Background()))

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	// Simulate a crashed holder: acquire and never release.
	p, err := sem.TryAcquire(ctx)
	testutil.AssertNoError(t, err)
	if p == nil {
		t.Fatal("expected a permit")
	}

	time.Sleep(300 * time.Millisecond)

	// The expired permit no longer counts against capacity.
	p2, err := sem.TryAcquire(ctx)
	testutil.AssertNoError(t, err)
	if p2 == nil {
		t.Fatal("capacity not recovered after TTL expiry")
	}

	// Releasing the stale permit reports it as gone.
	err = sem.Release(ctx, p)
	if !errors.Is(err, ErrNotHeld) {
		t.Errorf("err = %v, want ErrNotHeld", err)
	}
	testutil.AssertNoError(t, sem.Release(ctx, p2))
}

func TestExtendKeepsPermitAlive(t *testing.T) {
	rdb := testRedis(t)

	config := DefaultConfig()
	config.Redis = rdb
	config.Key = "taskflow_test:" + t.Name()
	config.Capacity = 1
	config.PermitTTL = 300 * time.Millisecond

	sem, err := New(config)
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { _ = sem.Reset(context.Background()) })
	testutil.AssertNoError(t, sem.Reset(context.Background()))

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	p, err := sem.TryAcquire(ctx)
	testutil.AssertNoError(t, err)
	if p == nil {
		t.Fatal("expected a permit")
	}

	for i := 0; i < 3; i++ {
		time.Sleep(150 * time.Millisecond)
		testutil.AssertNoError(t, sem.Extend(ctx, p))
	}

	inUse, err := sem.InUse(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, inUse, 1)
	testutil.AssertNoError(t, sem.Release(ctx, p))
}

func TestTwoInstancesShareCapacity(t *testing.T) {
	rdb := testRedis(t)
	key := "taskflow_test:" + t.Name()

	newInstance := func(id string) Semaphore {
		config := DefaultConfig()
		config.Redis = rdb
		config.Key = key
		config.Capacity = 2
		config.InstanceID = id
		sem, err := New(config)
		testutil.AssertNoError(t, err)
		return sem
	}

	a := newInstance("instance_a")
	b := newInstance("instance_b")
	t.Cleanup(func() { _ = a.Reset(context.Background()) })
	testutil.AssertNoError(t, a.Reset(context.Background()))

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	pa, err := a.TryAcquire(ctx)
	testutil.AssertNoError(t, err)
	pb, err := b.TryAcquire(ctx)
	testutil.AssertNoError(t, err)
	if pa == nil || pb == nil {
		t.Fatal("both instances should get a permit")
	}

	// The shared capacity of 2 is exhausted across instances.
	p3, err := a.TryAcquire(ctx)
	testutil.AssertNoError(t, err)
	if p3 != nil {
		t.Fatal("capacity not shared between instances")
	}

	testutil.AssertNoError(t, a.Release(ctx, pa))
	testutil.AssertNoError(t, b.Release(ctx, pb))
}

func TestFallbackToLocal(t *testing.T) {
	// An unreachable Redis with fallback enabled still bounds admission
	// per instance.
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:1", DialTimeout: 50 * time.Millisecond})
	defer func() { _ = rdb.Close() }()

	local, err := semaphore.New(1)
	testutil.AssertNoError(t, err)

	config := DefaultConfig()
	config.Redis = rdb
	config.Key = "taskflow_test:fallback"
	config.Capacity = 5
	config.FallbackToLocal = true
	config.Local = local

	sem, err := New(config)
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	p1, err := sem.TryAcquire(ctx)
	testutil.AssertNoError(t, err)
	if p1 == nil {
		t.Fatal("fallback permit expected")
	}

	p2, err := sem.TryAcquire(ctx)
	testutil.AssertNoError(t, err)
	if p2 != nil {
		t.Fatal("fallback capacity is 1, second permit granted")
	}

	testutil.AssertNoError(t, sem.Release(ctx, p1))
	testutil.AssertEqual(t, local.Available(), 1)
}
