package calls

import (
	"encoding/json"
	"fmt"

	"github.com/blakeyoder/alfred/internal/callstore"
	"github.com/blakeyoder/alfred/internal/models"
	"github.com/blakeyoder/alfred/internal/provider"
)

// ApplyTerminal writes a provider-reported terminal status to the call
// store. It is the single interpretation point for terminal payloads: the
// webhook receiver and the reconciliation poller both route through it, so
// the push and pull paths cannot diverge. The underlying store write is an
// idempotent overwrite; replaying the same status is a no-op in effect.
func ApplyTerminal(store *callstore.Store, status *provider.CallStatus) error {
	if status == nil {
		return fmt.Errorf("calls: terminal status is required")
	}
	if !provider.TerminalState(status.State) {
		return fmt.Errorf("calls: state %q is not terminal", status.State)
	}

	state := models.StateDone
	if status.State == provider.StateFailed {
		state = models.StateFailed
	}

	transcript := ""
	if len(status.Transcript) > 0 {
		data, err := json.Marshal(status.Transcript)
		if err != nil {
			return fmt.Errorf("calls: marshal transcript for %s: %w", status.ConversationID, err)
		}
		transcript = string(data)
	}

	summary := ""
	if status.Analysis != nil {
		summary = status.Analysis.Summary
	}
	errorCode, errorReason := "", ""
	if status.Error != nil {
		errorCode = status.Error.Code
		errorReason = status.Error.Reason
	}

	fields := callstore.TerminalFields{
		State:             state,
		Outcome:           ClassifyOutcome(status.TerminationReason, status.Analysis),
		Transcript:        transcript,
		Summary:           summary,
		DurationSeconds:   status.DurationSeconds,
		TerminationReason: status.TerminationReason,
		ErrorCode:         errorCode,
		ErrorReason:       errorReason,
	}
	if err := store.SetTerminal(status.ConversationID, fields); err != nil {
		return fmt.Errorf("calls: apply terminal %s: %w", status.ConversationID, err)
	}
	return nil
}
