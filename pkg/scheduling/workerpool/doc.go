// Package workerpool provides bounded concurrent execution of tasks.
//
// A pool runs a fixed number of workers, each consuming tasks from the
// input channel, invoking the pool handler, and delivering the outcome
// on the results channel. A task's error or panic is captured into its
// Result; it never stops sibling workers or the pool.
//
// Shutdown closes the input channel; workers drain it and exit, and the
// results channel is closed only after every worker has finished, so
// observing the results channel close means all submitted work is done
// and no Result was dropped.
package workerpool
