// Package mocks holds generated test doubles for portsweep interfaces.
package mocks

//go:generate mockgen -destination=mock_dialer.go -package=mocks github.com/anstrom/portsweep/internal/scanning Dialer
//go:generate mockgen -destination=mock_recorder.go -package=mocks github.com/anstrom/portsweep/internal/metrics Recorder
