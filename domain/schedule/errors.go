package schedule

import "errors"

// Domain errors for the job store.
var (
	// ErrJobExists is returned when a job key is already scheduled.
	ErrJobExists = errors.New("job already scheduled")

	// ErrJobNotFound is returned when cancelling an absent job.
	ErrJobNotFound = errors.New("scheduled job not found")
)
