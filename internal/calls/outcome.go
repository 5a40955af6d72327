package calls

import (
	"strings"

	"github.com/blakeyoder/alfred/internal/models"
	"github.com/blakeyoder/alfred/internal/provider"
)

// Termination-reason fragments that identify voicemail and unanswered
// calls. Matched case-insensitively against the provider's free-text
// termination reason.
var (
	voicemailPatterns = []string{"voicemail", "voice mail", "answering machine"}
	noAnswerPatterns  = []string{"no_answer", "no-answer", "no answer", "unanswered", "ring timeout"}
)

// ClassifyOutcome maps provider termination metadata and the analysis
// verdict to a call outcome. The termination reason takes precedence over
// the analysis verdict: it is the more reliable signal for voicemail and
// no-answer, which the provider's success/failure heuristic sometimes
// reports as plain unknown.
func ClassifyOutcome(terminationReason string, analysis *provider.Analysis) string {
	reason := strings.ToLower(terminationReason)
	for _, p := range voicemailPatterns {
		if strings.Contains(reason, p) {
			return models.OutcomeVoicemail
		}
	}
	for _, p := range noAnswerPatterns {
		if strings.Contains(reason, p) {
			return models.OutcomeNoAnswer
		}
	}
	if analysis != nil {
		switch analysis.Outcome {
		case provider.AnalysisSuccess:
			return models.OutcomeSuccess
		case provider.AnalysisFailure:
			return models.OutcomeFailure
		case provider.AnalysisUnknown:
			return models.OutcomeUnknown
		}
	}
	return models.OutcomeUnknown
}
