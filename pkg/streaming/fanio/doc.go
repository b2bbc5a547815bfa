// Package fanio distributes work across channels and merges it back.
//
// FanOut spreads items from one input channel across a set of worker
// output channels: each item is consumed by exactly one worker, with
// assignment decided by availability rather than round robin. FanIn
// merges several input channels into one, closing the merged channel
// only after every source has closed and drained, so no item is lost
// at either boundary.
package fanio
