// Package callstore is the access layer for CallRecord persistence. All
// writes are single-row updates keyed by id or conversation id; terminal
// writes are last-write-wins overwrites so the webhook and poller paths can
// race harmlessly.
package callstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/blakeyoder/alfred/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store wraps the gorm handle with the call-record operations the engine
// needs. It is the only component that touches the call_records table.
type Store struct {
	db *gorm.DB
}

// New creates a Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreateParams holds the immutable parameters of a new call attempt.
type CreateParams struct {
	ToNumber     string
	ToName       string
	Purpose      string
	Instructions string
	GroupID      string
	RequestedBy  string
}

// TerminalFields is the full set of columns written when a record reaches
// done or failed. Applying the same fields twice yields the same row.
type TerminalFields struct {
	State             string // models.StateDone or models.StateFailed
	Outcome           string
	Transcript        string
	Summary           string
	DurationSeconds   *int
	TerminationReason string
	ErrorCode         string
	ErrorReason       string
}

// NewID returns a fresh call record id.
func NewID() string {
	return "call-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Create inserts a pending CallRecord and returns it.
func (s *Store) Create(params CreateParams) (*models.CallRecord, error) {
	rec := &models.CallRecord{
		ID:           NewID(),
		State:        models.StatePending,
		ToNumber:     params.ToNumber,
		ToName:       params.ToName,
		Purpose:      params.Purpose,
		Instructions: params.Instructions,
		GroupID:      params.GroupID,
		RequestedBy:  params.RequestedBy,
		CreatedAt:    time.Now(),
	}
	if err := s.db.Create(rec).Error; err != nil {
		return nil, fmt.Errorf("callstore: create: %w", err)
	}
	return rec, nil
}

// SetInitiated records the provider's conversation id and stamps StartedAt.
// The conversation id is write-once: a record that already carries one is
// left untouched and the call reports an error.
func (s *Store) SetInitiated(id, conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("callstore: conversation id is required")
	}
	res := s.db.Model(&models.CallRecord{}).
		Where("id = ? AND conversation_id IS NULL", id).
		Updates(map[string]interface{}{
			"conversation_id": conversationID,
			"state":           models.StateInitiated,
			"started_at":      time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("callstore: set initiated %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("callstore: set initiated %s: record missing or conversation id already set", id)
	}
	return nil
}

// SetFailedBeforeStart marks a pending record failed before any call leg
// existed (provider rejected the placement request).
func (s *Store) SetFailedBeforeStart(id, reason string) error {
	now := time.Now()
	res := s.db.Model(&models.CallRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"state":        models.StateFailed,
			"outcome":      models.OutcomeFailure,
			"error_reason": reason,
			"completed_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("callstore: set failed %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("callstore: set failed %s: record not found", id)
	}
	return nil
}

// GetByConversationID returns the record for a provider conversation id,
// or nil when no record matches.
func (s *Store) GetByConversationID(conversationID string) (*models.CallRecord, error) {
	var rec models.CallRecord
	err := s.db.Where("conversation_id = ?", conversationID).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("callstore: get by conversation %s: %w", conversationID, err)
	}
	return &rec, nil
}

// Get returns the record with the given id, or nil when not found.
func (s *Store) Get(id string) (*models.CallRecord, error) {
	var rec models.CallRecord
	err := s.db.Where("id = ?", id).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("callstore: get %s: %w", id, err)
	}
	return &rec, nil
}

// SetTerminal overwrites the terminal columns of the record for a
// conversation id. The write is idempotent: re-applying the same fields
// (a replayed webhook, or the poller racing the webhook) produces the same
// stored row. CompletedAt is stamped only on the first terminal write so a
// replay does not move it.
func (s *Store) SetTerminal(conversationID string, fields TerminalFields) error {
	if fields.State != models.StateDone && fields.State != models.StateFailed {
		return fmt.Errorf("callstore: set terminal: state %q is not terminal", fields.State)
	}
	updates := map[string]interface{}{
		"state":              fields.State,
		"outcome":            fields.Outcome,
		"transcript":         fields.Transcript,
		"summary":            fields.Summary,
		"duration_seconds":   fields.DurationSeconds,
		"termination_reason": fields.TerminationReason,
		"error_code":         fields.ErrorCode,
		"error_reason":       fields.ErrorReason,
	}
	res := s.db.Model(&models.CallRecord{}).
		Where("conversation_id = ?", conversationID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("callstore: set terminal %s: %w", conversationID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("callstore: set terminal %s: record not found", conversationID)
	}
	res = s.db.Model(&models.CallRecord{}).
		Where("conversation_id = ? AND completed_at IS NULL", conversationID).
		Update("completed_at", time.Now())
	if res.Error != nil {
		return fmt.Errorf("callstore: set terminal %s: stamp completed_at: %w", conversationID, res.Error)
	}
	return nil
}

// ListUnnotifiedTerminal returns terminal records whose completion has not
// yet been announced, oldest first.
func (s *Store) ListUnnotifiedTerminal() ([]models.CallRecord, error) {
	var recs []models.CallRecord
	err := s.db.
		Where("notified_at IS NULL").
		Where("state IN ?", []string{models.StateDone, models.StateFailed}).
		Where("completed_at IS NOT NULL").
		Order("completed_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("callstore: list unnotified: %w", err)
	}
	return recs, nil
}

// MarkNotified stamps NotifiedAt. Monotonic: an already-notified record is
// not re-stamped.
func (s *Store) MarkNotified(id string) error {
	res := s.db.Model(&models.CallRecord{}).
		Where("id = ? AND notified_at IS NULL", id).
		Update("notified_at", time.Now())
	if res.Error != nil {
		return fmt.Errorf("callstore: mark notified %s: %w", id, res.Error)
	}
	return nil
}

// ListStale returns records in the given states whose StartedAt is older
// than maxAge. Records without a StartedAt are skipped; staleness is
// measured from when the provider accepted the call.
func (s *Store) ListStale(states []string, maxAge time.Duration) ([]models.CallRecord, error) {
	cutoff := time.Now().Add(-maxAge)
	var recs []models.CallRecord
	err := s.db.
		Where("state IN ?", states).
		Where("started_at IS NOT NULL AND started_at < ?", cutoff).
		Order("started_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("callstore: list stale: %w", err)
	}
	return recs, nil
}

// ListRecent returns the most recent records, optionally filtered by state.
func (s *Store) ListRecent(state string, limit int) ([]models.CallRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	q := s.db.Order("created_at DESC").Limit(limit)
	if state != "" {
		q = q.Where("state = ?", state)
	}
	var recs []models.CallRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("callstore: list recent: %w", err)
	}
	return recs, nil
}
