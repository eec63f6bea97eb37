// Package metrics provides interfaces for metrics collection and monitoring.
package metrics

import "time"

// Recorder receives scan engine and run lifecycle events.
// This interface allows for easy mocking and testing of metrics functionality.
type Recorder interface {
	// AttemptStarted is called when a connection attempt is dispatched.
	AttemptStarted()

	// AttemptFinished is called once per attempt with its final status.
	AttemptFinished(status string, elapsed time.Duration)

	// EngineFault is called when the engine stops on a resource fault.
	EngineFault(kind string)

	// RunStarted is called when a scan run begins.
	RunStarted()

	// RunFinished is called when a scan run reaches a final state.
	RunFinished(state string, duration time.Duration)
}

// Noop is a Recorder that discards everything.
type Noop struct{}

func (Noop) AttemptStarted()                       {}
func (Noop) AttemptFinished(string, time.Duration) {}
func (Noop) EngineFault(string)                    {}
func (Noop) RunStarted()                           {}
func (Noop) RunFinished(string, time.Duration)     {}

// Ensure that both implementations satisfy Recorder.
var (
	_ Recorder = Noop{}
	_ Recorder = (*PrometheusMetrics)(nil)
)
