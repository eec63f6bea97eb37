package scanning

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/anstrom/portsweep/internal/errors"
)

const (
	// MaxConcurrency is the largest accepted ScanConfig.Concurrency.
	MaxConcurrency = 10000

	DefaultConcurrency = 500
	DefaultTimeout     = time.Second
)

// Status is the reachability state of a single port.
type Status string

const (
	StatusOpen    Status = "open"
	StatusClosed  Status = "closed"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusOpen, StatusClosed, StatusTimeout, StatusError}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusTimeout, StatusError:
		return true
	}
	return false
}

// PortResult is the outcome of one connection attempt.
type PortResult struct {
	Port    uint16        `json:"port"`
	Status  Status        `json:"status"`
	Elapsed time.Duration `json:"elapsed"`
	Service string        `json:"service"`
	// Detail holds the error text for StatusError results.
	Detail string `json:"detail,omitempty"`
}

// ScanConfig holds the tunables of a single scan.
type ScanConfig struct {
	// Concurrency is the maximum number of attempts in flight.
	Concurrency int `json:"concurrency" validate:"min=1,max=10000"`
	// Timeout bounds each connection attempt.
	Timeout time.Duration `json:"timeout" validate:"gt=0"`
	// RateLimit caps attempts per second. Zero means unlimited.
	RateLimit float64 `json:"rate_limit,omitempty" validate:"gte=0"`
}

// DefaultConfig returns the default scan configuration.
func DefaultConfig() ScanConfig {
	return ScanConfig{
		Concurrency: DefaultConcurrency,
		Timeout:     DefaultTimeout,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks if the scan configuration is valid.
func (c ScanConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if stderrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return errors.NewScanError(errors.CodeValidation, describeViolation(fe)).
			WithContext("field", fe.Field()).
			WithContext("value", fe.Value())
	}
	return errors.WrapScanError(errors.CodeValidation, "invalid scan configuration", err)
}

func describeViolation(fe validator.FieldError) string {
	switch fe.Field() {
	case "Concurrency":
		return fmt.Sprintf("concurrency must be between 1 and %d, got %v", MaxConcurrency, fe.Value())
	case "Timeout":
		return fmt.Sprintf("timeout must be positive, got %v", fe.Value())
	case "RateLimit":
		return fmt.Sprintf("rate limit must not be negative, got %v", fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
