// Package errs holds the error kinds shared across the build pipeline.
// Callers match them with errors.Is; producers wrap them with fmt.Errorf("%w: ...").
package errs

import "errors"

var (
	// ErrConfiguration marks an unknown algorithm name or an invalid option
	// combination. Fatal, never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrSequence marks a build operation invoked out of lifecycle order.
	ErrSequence = errors.New("sequence error")

	// ErrStale marks a merge input snapshot older than the lookback window
	// with no continuation watermark supplied.
	ErrStale = errors.New("stale snapshot")

	// ErrIntegrity marks a snapshot whose positional metadata lists are not parallel.
	ErrIntegrity = errors.New("snapshot integrity error")
)
