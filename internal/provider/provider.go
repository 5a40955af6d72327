// Package provider talks to the external voice-call provider. It defines a
// provider-agnostic contract so business logic never touches provider SDKs
// or wire formats directly.
package provider

import (
	"context"
)

// Call states reported by the provider. Done and Failed are terminal.
const (
	StateInitiated  = "initiated"
	StateInProgress = "in_progress"
	StateProcessing = "processing"
	StateDone       = "done"
	StateFailed     = "failed"
)

// Analysis verdicts from the provider's post-call evaluation.
const (
	AnalysisSuccess = "success"
	AnalysisFailure = "failure"
	AnalysisUnknown = "unknown"
)

// Client is the outbound provider contract: place a call, query a call.
// Both operations honor the caller's context deadline.
type Client interface {
	// PlaceCall asks the provider to dial. Returns the provider-assigned
	// conversation id on acceptance.
	PlaceCall(ctx context.Context, req PlaceCallRequest) (string, error)

	// GetCallStatus fetches the provider's current view of a conversation.
	GetCallStatus(ctx context.Context, conversationID string) (*CallStatus, error)
}

// PlaceCallRequest holds the parameters for an outbound call.
type PlaceCallRequest struct {
	AgentID      string            `json:"agent_id"`
	AgentPhoneID string            `json:"agent_phone_number_id,omitempty"`
	ToNumber     string            `json:"to_number"`
	Variables    map[string]string `json:"dynamic_variables,omitempty"`
}

// TranscriptEntry is one turn of the call transcript.
type TranscriptEntry struct {
	Role           string  `json:"role"`
	Message        string  `json:"message"`
	TimeInCallSecs float64 `json:"time_in_call_secs"`
}

// Analysis is the provider's post-call evaluation.
type Analysis struct {
	Outcome string `json:"outcome"`
	Summary string `json:"summary"`
}

// CallError describes a provider-side failure.
type CallError struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// CallStatus is the provider's view of a conversation, from the status API
// or from a webhook payload. Terminal metadata fields are populated only
// when State is done or failed.
type CallStatus struct {
	ConversationID    string            `json:"conversation_id"`
	State             string            `json:"state"`
	Transcript        []TranscriptEntry `json:"transcript,omitempty"`
	DurationSeconds   *int              `json:"call_duration_secs,omitempty"`
	TerminationReason string            `json:"termination_reason,omitempty"`
	Analysis          *Analysis         `json:"analysis,omitempty"`
	Error             *CallError        `json:"error,omitempty"`
}

// TerminalState reports whether a provider state is terminal.
func TerminalState(state string) bool {
	return state == StateDone || state == StateFailed
}
