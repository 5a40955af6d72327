package models

import "time"

// CallRecord states. A record is created as StatePending, moves to
// StateInitiated once the provider accepts the call, and ends in StateDone
// or StateFailed. StateInProgress and StateProcessing are provider-reported
// mid-flight states seen by the reconciliation poller.
const (
	StatePending    = "pending"
	StateInitiated  = "initiated"
	StateInProgress = "in_progress"
	StateProcessing = "processing"
	StateDone       = "done"
	StateFailed     = "failed"
)

// Call outcomes, set only when a record reaches a terminal state.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeUnknown   = "unknown"
	OutcomeVoicemail = "voicemail"
	OutcomeNoAnswer  = "no_answer"
)

// CallRecord is one outbound call attempt and its evolving status. Records
// are never deleted; once terminal, the row is an append-only fact.
type CallRecord struct {
	ID             string  `gorm:"primaryKey;size:40"`
	ConversationID *string `gorm:"size:64;uniqueIndex"`
	State          string  `gorm:"size:16;default:pending;index"`

	// Immutable call parameters, set at creation.
	ToNumber     string `gorm:"size:20;not null"`
	ToName       string `gorm:"size:128"`
	Purpose      string `gorm:"type:text"`
	Instructions string `gorm:"type:text"`
	GroupID      string `gorm:"size:64;index"`
	RequestedBy  string `gorm:"size:64"`

	// Terminal metadata, written once by the idempotent terminal path.
	Outcome           *string `gorm:"size:16"`
	Transcript        string  `gorm:"type:text"`
	Summary           string  `gorm:"type:text"`
	DurationSeconds   *int
	TerminationReason string `gorm:"size:128"`
	ErrorCode         string `gorm:"size:64"`
	ErrorReason       string `gorm:"type:text"`

	StartedAt   *time.Time
	CompletedAt *time.Time
	NotifiedAt  *time.Time
	CreatedAt   time.Time
}

// Terminal reports whether the record has reached done or failed.
func (r *CallRecord) Terminal() bool {
	return r.State == StateDone || r.State == StateFailed
}

// InFlightStates are the states the reconciliation poller watches for
// stalls: the provider owns the call but has not reported a terminal state.
var InFlightStates = []string{StateInitiated, StateInProgress, StateProcessing}
