// Package quiz defines the core types shared across the quiz workflow subsystems.
package quiz

import "time"

// TerminationReason records the single cause that ended a workflow run.
type TerminationReason string

// Termination reasons reported in WorkflowResult.
const (
	ReasonStepLimitReached   TerminationReason = "StepLimitReached"
	ReasonTimeBudgetExceeded TerminationReason = "TimeBudgetExceeded"
	ReasonFetchFailed        TerminationReason = "FetchFailed"
	ReasonNoSubmitEndpoint   TerminationReason = "NoSubmitEndpoint"
	ReasonNoNextURL          TerminationReason = "NoNextURL"
	ReasonPayloadTooLarge    TerminationReason = "PayloadTooLarge"
)

// WorkflowRequest starts one run. It is never mutated once the run begins.
type WorkflowRequest struct {
	StartURL string
	Email    string
	Secret   string
}

// Page is what the renderer hands back for a URL.
type Page struct {
	URL      string
	FinalURL string
	HTML     string
	Text     string
	Duration time.Duration
}

// StepError is the serialized form of a failure recorded on a step.
type StepError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// SubmitResponse holds the only fields consumed from a submission reply.
type SubmitResponse struct {
	Correct *bool  `json:"correct,omitempty"`
	URL     string `json:"url,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// StepRecord is appended once per loop iteration and never modified afterwards.
type StepRecord struct {
	Index                 int             `json:"step"`
	URL                   string          `json:"url"`
	FetchSucceeded        bool            `json:"fetched"`
	SubmitURL             string          `json:"submit_url,omitempty"`
	FileLink              string          `json:"file_link,omitempty"`
	FileParsed            bool            `json:"file_parsed,omitempty"`
	FileError             string          `json:"file_error,omitempty"`
	AnswerCandidate       Answer          `json:"answer_candidate,omitzero"`
	SubmitStatusCode      int             `json:"submit_status_code,omitempty"`
	SubmitResponseExcerpt string          `json:"submit_response_text,omitempty"`
	SubmitResponse        *SubmitResponse `json:"submit_json,omitempty"`
	Error                 *StepError      `json:"error,omitempty"`
	DurationMs            int64           `json:"duration_ms"`
}

// WorkflowResult is returned by the orchestrator for every run, successful or not.
type WorkflowResult struct {
	RunID             string            `json:"run_id,omitempty"`
	FinalAnswer       Answer            `json:"answer,omitzero"`
	Steps             []StepRecord      `json:"steps"`
	ElapsedSeconds    float64           `json:"elapsed_seconds"`
	TerminationReason TerminationReason `json:"termination_reason"`
}

// LastStep returns the most recent step, if any.
func (r WorkflowResult) LastStep() (StepRecord, bool) {
	if len(r.Steps) == 0 {
		return StepRecord{}, false
	}
	return r.Steps[len(r.Steps)-1], true
}

// Finite returns a copy whose answers are all JSON encodable.
func (r WorkflowResult) Finite() WorkflowResult {
	r.FinalAnswer = r.FinalAnswer.Finite()
	steps := make([]StepRecord, len(r.Steps))
	for i, st := range r.Steps {
		st.AnswerCandidate = st.AnswerCandidate.Finite()
		steps[i] = st
	}
	r.Steps = steps
	return r
}

// SubmissionPayload is the exact body posted to a submit endpoint. Only these
// four fields are ever sent.
type SubmissionPayload struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	URL    string `json:"url"`
	Answer Answer `json:"answer"`
}
