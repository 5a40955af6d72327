package webhook

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/blakeyoder/alfred/internal/calls"
	"github.com/blakeyoder/alfred/internal/callstore"
	"github.com/blakeyoder/alfred/internal/provider"
	"github.com/gin-gonic/gin"
)

// Webhook event types sent by the provider.
const (
	EventCallCompleted        = "call_completed"
	EventCallInitiationFailed = "call_initiation_failed"
)

// maxBodyBytes caps the webhook request body (transcripts included).
const maxBodyBytes = 4 << 20

// SignatureHeader carries the provider's HMAC signature.
const SignatureHeader = "X-Signature"

// Event is the provider's webhook payload. Type discriminates the shape;
// terminal metadata fields mirror the status API.
type Event struct {
	Type              string                     `json:"type"`
	ConversationID    string                     `json:"conversation_id"`
	Transcript        []provider.TranscriptEntry `json:"transcript,omitempty"`
	Duration          *int                       `json:"call_duration_secs,omitempty"`
	TerminationReason string                     `json:"termination_reason,omitempty"`
	Analysis          *provider.Analysis         `json:"analysis,omitempty"`
	Error             *provider.CallError        `json:"error,omitempty"`
	Reason            string                     `json:"reason,omitempty"`
}

// handleCalls processes POST /webhook/calls. The raw body is captured
// before any JSON parsing because the signature is computed over the raw
// bytes. Signature failures return 401 and mutate nothing. Once the
// signature is valid, business lookups that fail (unknown conversation)
// still return 200 so the provider does not retry indefinitely; only store
// errors return 500.
func handleCalls(store *callstore.Store, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			c.String(http.StatusBadRequest, "read body")
			return
		}

		if err := VerifySignature(secret, c.GetHeader(SignatureHeader), body, time.Now()); err != nil {
			log.Printf("webhook: rejected request from %s: %v", c.ClientIP(), err)
			c.String(http.StatusUnauthorized, "invalid signature")
			return
		}

		var event Event
		if err := json.Unmarshal(body, &event); err != nil {
			log.Printf("webhook: signed payload is not valid JSON: %v", err)
			c.String(http.StatusBadRequest, "invalid payload")
			return
		}
		if event.ConversationID == "" {
			log.Printf("webhook: %s event without conversation id", event.Type)
			c.String(http.StatusBadRequest, "missing conversation_id")
			return
		}

		switch event.Type {
		case EventCallCompleted:
			applyEvent(c, store, completedStatus(&event))
		case EventCallInitiationFailed:
			applyEvent(c, store, initiationFailedStatus(&event))
		default:
			log.Printf("webhook: ignoring event type %q for %s", event.Type, event.ConversationID)
			c.String(http.StatusOK, "ignored")
		}
	}
}

// applyEvent looks up the record and applies the terminal status through
// the shared write path.
func applyEvent(c *gin.Context, store *callstore.Store, status *provider.CallStatus) {
	rec, err := store.GetByConversationID(status.ConversationID)
	if err != nil {
		log.Printf("webhook: lookup %s: %v", status.ConversationID, err)
		c.String(http.StatusInternalServerError, "store error")
		return
	}
	if rec == nil {
		// Calls placed outside this system's visibility land here; a 200
		// stops the provider's retry storm.
		log.Printf("webhook: no record for conversation %s, ignoring", status.ConversationID)
		c.String(http.StatusOK, "unknown conversation")
		return
	}

	if err := calls.ApplyTerminal(store, status); err != nil {
		log.Printf("webhook: apply terminal %s: %v", status.ConversationID, err)
		c.String(http.StatusInternalServerError, "store error")
		return
	}
	c.String(http.StatusOK, "ok")
}

// completedStatus maps a call_completed event to a terminal CallStatus.
// The call is done unless the provider attached an error.
func completedStatus(event *Event) *provider.CallStatus {
	state := provider.StateDone
	if event.Error != nil {
		state = provider.StateFailed
	}
	return &provider.CallStatus{
		ConversationID:    event.ConversationID,
		State:             state,
		Transcript:        event.Transcript,
		DurationSeconds:   event.Duration,
		TerminationReason: event.TerminationReason,
		Analysis:          event.Analysis,
		Error:             event.Error,
	}
}

// initiationFailedStatus maps an async placement rejection to a failed
// CallStatus carrying the provider's reason.
func initiationFailedStatus(event *Event) *provider.CallStatus {
	callErr := event.Error
	if callErr == nil {
		callErr = &provider.CallError{Reason: event.Reason}
	}
	if callErr.Reason == "" {
		callErr.Reason = "call initiation failed"
	}
	return &provider.CallStatus{
		ConversationID: event.ConversationID,
		State:          provider.StateFailed,
		Error:          callErr,
	}
}
