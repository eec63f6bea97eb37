// Package scanning provides the concurrency-bounded TCP connect scan engine.
//
// # Overview
//
// An Engine takes a resolved target.ScanTarget, a ports.Spec and a
// ScanConfig, and performs one TCP connect per port. Each attempt ends in
// exactly one PortResult:
//
//   - open: the connection was accepted and closed immediately
//   - closed: the host refused or reset the connection, or was unreachable
//   - timeout: no answer within ScanConfig.Timeout
//   - error: anything else, with the error text in PortResult.Detail
//
// # Concurrency
//
// Attempts run in their own goroutines, gated by a Limiter sized to
// ScanConfig.Concurrency. A slot is taken before dispatch and returned when
// the attempt ends, so the number of open sockets never exceeds the limit and
// a freed slot is reused at once. An optional rate limit paces dispatch.
//
// Results flow through one channel to one delivery goroutine, which is the
// only caller of the onResult callback. Consumers therefore never see
// concurrent callbacks.
//
// # Cancellation and faults
//
// Cancelling the context stops dispatch. Attempts already in flight finish
// on their own timeout and their sockets are closed, but their results are
// dropped. If the local host runs out of descriptors or buffers the engine
// stops dispatching, drains in-flight attempts and reports an ENGINE_FAULT.
//
// # Usage
//
//	engine := scanning.NewEngine()
//	err := engine.Scan(ctx, tgt, spec, scanning.DefaultConfig(), func(r scanning.PortResult) {
//		fmt.Printf("%5d %-8s %s\n", r.Port, r.Status, r.Service)
//	})
package scanning
