// Package channel provides the typed, closable handoff queue connecting
// taskflow's concurrent units.
//
// A Channel with capacity > 0 buffers up to capacity values; a Channel
// with capacity 0 is a rendezvous channel where Send completes only when
// a Receive takes the value, giving a strict happens-before relationship
// between the paired operations.
//
// Channels are the only sanctioned mechanism for passing mutable data
// between concurrent units in taskflow: every value is delivered to
// exactly one receiver, transferring ownership on delivery.
//
// Blocking operations accept a context.Context (a *scope.Scope works
// directly) and unblock promptly when it is cancelled.
package channel
