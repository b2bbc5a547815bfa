// Package scheduler submits tasks into a worker pool on a schedule.
//
// An entry names a payload factory and a trigger: a point in time, a
// repeat interval, or a cron expression (with a seconds field). When
// the trigger fires, the scheduler builds a fresh task from the
// factory and submits it to the pool, so every firing gets its own
// task ID and timestamp.
//
// The scheduler ticks rather than sleeping per entry, which keeps
// thousands of entries cheap at the cost of tick-interval granularity.
package scheduler
