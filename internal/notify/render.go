package notify

import (
	"fmt"
	"strings"

	"github.com/blakeyoder/alfred/internal/models"
)

// outcomeLabel returns a human-friendly label for a call outcome.
func outcomeLabel(outcome string) string {
	switch outcome {
	case models.OutcomeSuccess:
		return "completed"
	case models.OutcomeFailure:
		return "failed"
	case models.OutcomeVoicemail:
		return "reached voicemail"
	case models.OutcomeNoAnswer:
		return "went unanswered"
	case models.OutcomeUnknown:
		return "ended with unknown outcome"
	default:
		return "ended"
	}
}

// formatDuration renders seconds as "4m05s" or "45s".
func formatDuration(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm%02ds", seconds/60, seconds%60)
}

// RenderSummary builds the notification text for a terminal call record.
// Rendering is pure: a duplicate send under a dispatcher race produces
// byte-identical text.
func RenderSummary(rec *models.CallRecord) string {
	callee := rec.ToName
	if callee == "" {
		callee = rec.ToNumber
	}

	outcome := models.OutcomeUnknown
	if rec.Outcome != nil {
		outcome = *rec.Outcome
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Call to %s %s.", callee, outcomeLabel(outcome))
	if rec.DurationSeconds != nil && *rec.DurationSeconds > 0 {
		fmt.Fprintf(&b, " (%s)", formatDuration(*rec.DurationSeconds))
	}
	if rec.Purpose != "" {
		fmt.Fprintf(&b, "\nPurpose: %s", rec.Purpose)
	}
	if rec.Summary != "" {
		fmt.Fprintf(&b, "\nSummary: %s", rec.Summary)
	}
	if rec.State == models.StateFailed && rec.ErrorReason != "" {
		fmt.Fprintf(&b, "\nReason: %s", rec.ErrorReason)
	}
	if rec.RequestedBy != "" {
		fmt.Fprintf(&b, "\nRequested by %s", rec.RequestedBy)
	}
	return b.String()
}
