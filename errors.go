package boundedring

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCapacity is returned by New when capacity is not positive.
	ErrInvalidCapacity = errors.New("capacity must be > 0")

	// ErrCancelled is returned when a waiting Produce or Consume is aborted
	// by its context. The channel is left exactly as if the call never started.
	ErrCancelled = errors.New("operation cancelled")

	// ErrWouldBlock is returned by the timeout variants when no slot or item
	// became available in time. It also matches ErrCancelled.
	ErrWouldBlock = fmt.Errorf("would block: %w", ErrCancelled)
)
