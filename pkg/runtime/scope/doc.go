// Package scope provides hierarchical, monotonic cancellation for the
// taskflow runtime.
//
// A Scope is cancelled when Cancel is called, when its deadline passes,
// or when any ancestor is cancelled. Cancellation never un-happens. A
// Scope implements context.Context, so it can be passed directly to any
// blocking taskflow operation (channel Send/Receive, pool Submit,
// counter Wait) as well as to third-party code expecting a context.
//
// Child scopes register with their parent and are cancelled by push
// notification; the effective deadline of a scope is the minimum of its
// own deadline and those of all ancestors.
package scope
