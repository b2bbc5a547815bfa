// Package distributed provides a Redis-backed counting semaphore that
// bounds concurrency across multiple application instances.
//
// Permit holders are tracked in a Redis sorted set scored by permit
// expiry, and every state transition runs as an atomic Lua script, so
// instances never over-admit even under contention. Each permit
// carries a TTL: if a holder crashes without releasing, its permit
// expires and the capacity recovers on the next acquire.
//
// An optional in-process fallback semaphore keeps admission control
// working, per instance, when Redis is unreachable.
package distributed
