package calls

import (
	"testing"

	"github.com/blakeyoder/alfred/internal/models"
	"github.com/blakeyoder/alfred/internal/provider"
)

func TestClassifyOutcome_VoicemailBeatsAnalysis(t *testing.T) {
	// The provider's own heuristic often calls a voicemail "unknown" or
	// even "success"; the termination reason wins.
	got := ClassifyOutcome("voicemail", &provider.Analysis{Outcome: provider.AnalysisSuccess})
	if got != models.OutcomeVoicemail {
		t.Errorf("outcome = %q, want voicemail", got)
	}
}

func TestClassifyOutcome_VoicemailVariants(t *testing.T) {
	for _, reason := range []string{"Voicemail detected", "reached answering machine", "VOICE MAIL"} {
		if got := ClassifyOutcome(reason, nil); got != models.OutcomeVoicemail {
			t.Errorf("ClassifyOutcome(%q) = %q, want voicemail", reason, got)
		}
	}
}

func TestClassifyOutcome_NoAnswer(t *testing.T) {
	for _, reason := range []string{"no_answer", "call unanswered", "ring timeout reached"} {
		if got := ClassifyOutcome(reason, &provider.Analysis{Outcome: provider.AnalysisUnknown}); got != models.OutcomeNoAnswer {
			t.Errorf("ClassifyOutcome(%q) = %q, want no_answer", reason, got)
		}
	}
}

func TestClassifyOutcome_FallsBackToAnalysis(t *testing.T) {
	cases := []struct {
		verdict string
		want    string
	}{
		{provider.AnalysisSuccess, models.OutcomeSuccess},
		{provider.AnalysisFailure, models.OutcomeFailure},
		{provider.AnalysisUnknown, models.OutcomeUnknown},
	}
	for _, tc := range cases {
		got := ClassifyOutcome("client hangup", &provider.Analysis{Outcome: tc.verdict})
		if got != tc.want {
			t.Errorf("verdict %q: outcome = %q, want %q", tc.verdict, got, tc.want)
		}
	}
}

func TestClassifyOutcome_NoSignals(t *testing.T) {
	if got := ClassifyOutcome("", nil); got != models.OutcomeUnknown {
		t.Errorf("outcome = %q, want unknown", got)
	}
}
