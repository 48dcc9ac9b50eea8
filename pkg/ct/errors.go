package ct

import (
	"errors"
	"fmt"
)

// Causes carried by AggregatorError
var (
	ErrTransport        = errors.New("CT aggregator unreachable")
	ErrUnexpectedStatus = errors.New("CT aggregator returned unexpected status")
	ErrDecode           = errors.New("CT aggregator response is not valid JSON")
)

// AggregatorError is the only error that aborts a run. It wraps one of
// ErrTransport, ErrUnexpectedStatus or ErrDecode.
type AggregatorError struct {
	Target     string
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *AggregatorError) Error() string {
	if e.StatusCode != 0 && errors.Is(e.Err, ErrUnexpectedStatus) {
		return fmt.Sprintf("enumerate %s: %v (HTTP %d)", e.Target, e.Err, e.StatusCode)
	}
	return fmt.Sprintf("enumerate %s: %v", e.Target, e.Err)
}

func (e *AggregatorError) Unwrap() error {
	return e.Err
}
