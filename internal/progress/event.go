package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart Stage = "RUN_START"
	StageStepDone Stage = "STEP_DONE"
	StageRunDone  Stage = "RUN_DONE"
)

// StepOutcome summarizes how a step ended.
type StepOutcome string

// Step outcomes reported on StageStepDone.
const (
	OutcomeSubmitted   StepOutcome = "submitted"
	OutcomeNoSubmit    StepOutcome = "no_submit_endpoint"
	OutcomeFetchFailed StepOutcome = "fetch_failed"
	OutcomeTooLarge    StepOutcome = "payload_too_large"
	OutcomeSubmitError StepOutcome = "submit_error"
)

// Event captures a single workflow milestone. It never carries the secret.
type Event struct {
	// RunID identifies the workflow run.
	RunID string
	// TS is the timestamp recorded by the emitter.
	TS time.Time
	Stage Stage
	// Step is the 1-based step index for StageStepDone.
	Step int
	// URL is the quiz page of the step, or the start URL for run events.
	URL     string
	Outcome StepOutcome
	// StatusCode is the submit endpoint's HTTP status, zero if nothing was sent.
	StatusCode int
	// Correct reports the endpoint verdict when one was returned.
	Correct *bool
	// Reason is the termination reason on StageRunDone.
	Reason string
	// Dur is the step or run duration.
	Dur time.Duration
	// Note carries low-volume context such as an error message.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart:
	case StageStepDone:
		if e.Step < 1 {
			return errors.New("step done requires a step index")
		}
		if e.Outcome == "" {
			return errors.New("step done requires an outcome")
		}
	case StageRunDone:
		if e.Reason == "" {
			return errors.New("run done requires a reason")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// Discard is an Emitter that drops every event.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(Event) {}
