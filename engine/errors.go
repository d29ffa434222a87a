package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrResultNotReady is returned when a full result is requested before the
// job reached a terminal state.
var ErrResultNotReady = errors.New("engine: result not ready")

// IncompleteInputError rejects a hire whose input is empty or is missing
// required fields from the agent's schema. The engine never synthesizes
// defaults; the caller must supply explicit values.
type IncompleteInputError struct {
	Missing []string
}

func (e *IncompleteInputError) Error() string {
	if len(e.Missing) == 0 {
		return "input data must be a non-empty object matching the agent's input schema"
	}
	return fmt.Sprintf("input data is missing required fields: %s", strings.Join(e.Missing, ", "))
}

// JobStartError wraps a start_job failure. Nothing was committed: no payment
// exists and no job is running.
type JobStartError struct {
	AgentIdentifier string
	Err             error
}

func (e *JobStartError) Error() string {
	return fmt.Sprintf("failed to start job on agent %s: %v", e.AgentIdentifier, e.Err)
}

func (e *JobStartError) Unwrap() error { return e.Err }

// PartialHireError reports the split-state outcome: the job started on the
// agent but the escrow payment could not be registered. The orphaned JobID
// is carried so the caller can keep polling it; the remote job cannot be
// cancelled through the available interface.
type PartialHireError struct {
	AgentIdentifier string
	JobID           string
	Err             error
}

func (e *PartialHireError) Error() string {
	return fmt.Sprintf("job %s was started on agent %s but payment registration failed: %v",
		e.JobID, e.AgentIdentifier, e.Err)
}

func (e *PartialHireError) Unwrap() error { return e.Err }

// AsPartialHire extracts a PartialHireError from an error chain.
func AsPartialHire(err error) (*PartialHireError, bool) {
	var phe *PartialHireError
	ok := errors.As(err, &phe)
	return phe, ok
}
