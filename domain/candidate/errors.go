package candidate

import "errors"

// Domain errors for candidate data.
var (
	// ErrUnknownStatus indicates a status value outside the pipeline stages.
	ErrUnknownStatus = errors.New("unknown candidate status")

	// ErrCandidateNotFound indicates the candidate store has no such candidate.
	ErrCandidateNotFound = errors.New("candidate not found")
)
