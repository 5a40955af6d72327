package webhook

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blakeyoder/alfred/internal/callstore"
	"github.com/blakeyoder/alfred/internal/models"
	"github.com/blakeyoder/alfred/internal/provider"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestStore opens an in-memory SQLite call store.
func openTestStore(t *testing.T) *callstore.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.CallRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return callstore.New(db)
}

// initiatedRecord creates a record already accepted by the provider.
func initiatedRecord(t *testing.T, store *callstore.Store, conversationID string) *models.CallRecord {
	t.Helper()
	rec, err := store.Create(callstore.CreateParams{
		ToNumber: "+15551234567",
		ToName:   "Dr. Smith",
		GroupID:  "family",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.SetInitiated(rec.ID, conversationID); err != nil {
		t.Fatalf("set initiated: %v", err)
	}
	return rec
}

// postWebhook sends body to the router with a signature for it.
func postWebhook(t *testing.T, store *callstore.Store, body []byte, header string) *httptest.ResponseRecorder {
	t.Helper()
	router := Router(store, testSecret)
	req := httptest.NewRequest(http.MethodPost, "/webhook/calls", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, header)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func completedEvent(conversationID, terminationReason string) []byte {
	dur := 125
	event := Event{
		Type:           EventCallCompleted,
		ConversationID: conversationID,
		Transcript: []provider.TranscriptEntry{
			{Role: "agent", Message: "Hello, this is Alfred.", TimeInCallSecs: 1.0},
		},
		Duration:          &dur,
		TerminationReason: terminationReason,
	}
	data, _ := json.Marshal(event)
	return data
}

func TestHandleCalls_BadSignatureNoMutation(t *testing.T) {
	store := openTestStore(t)
	rec := initiatedRecord(t, store, "conv-1")

	body := completedEvent("conv-1", "voicemail")
	w := postWebhook(t, store, body, "t=123,v0=deadbeef")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	got, _ := store.Get(rec.ID)
	if got.State != models.StateInitiated {
		t.Errorf("state = %q, record mutated despite bad signature", got.State)
	}
}

func TestHandleCalls_StaleTimestampNoMutation(t *testing.T) {
	store := openTestStore(t)
	rec := initiatedRecord(t, store, "conv-1")

	body := completedEvent("conv-1", "voicemail")
	stale := signBody(testSecret, body, time.Now().Add(-ReplayWindow-time.Minute))
	w := postWebhook(t, store, body, stale)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	got, _ := store.Get(rec.ID)
	if got.State != models.StateInitiated {
		t.Errorf("state = %q, record mutated despite stale signature", got.State)
	}
}

func TestHandleCalls_CompletedVoicemail(t *testing.T) {
	store := openTestStore(t)
	rec := initiatedRecord(t, store, "conv-1")

	body := completedEvent("conv-1", "voicemail")
	w := postWebhook(t, store, body, signBody(testSecret, body, time.Now()))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	got, _ := store.Get(rec.ID)
	if got.State != models.StateDone {
		t.Errorf("state = %q, want done", got.State)
	}
	if got.Outcome == nil || *got.Outcome != models.OutcomeVoicemail {
		t.Errorf("outcome = %v, want voicemail", got.Outcome)
	}
	if got.DurationSeconds == nil || *got.DurationSeconds != 125 {
		t.Errorf("duration = %v, want 125", got.DurationSeconds)
	}
	if got.CompletedAt == nil {
		t.Error("completed at not stamped")
	}
}

func TestHandleCalls_ReplayedWebhookIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	rec := initiatedRecord(t, store, "conv-1")

	body := completedEvent("conv-1", "voicemail")
	header := signBody(testSecret, body, time.Now())

	if w := postWebhook(t, store, body, header); w.Code != http.StatusOK {
		t.Fatalf("first delivery: status = %d", w.Code)
	}
	first, _ := store.Get(rec.ID)

	if w := postWebhook(t, store, body, header); w.Code != http.StatusOK {
		t.Fatalf("replay: status = %d", w.Code)
	}
	second, _ := store.Get(rec.ID)

	if second.State != first.State || *second.Outcome != *first.Outcome {
		t.Errorf("replay changed the record: %+v vs %+v", first, second)
	}
	if !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Errorf("replay moved completed at: %v -> %v", first.CompletedAt, second.CompletedAt)
	}
}

func TestHandleCalls_UnknownConversationReturns200(t *testing.T) {
	store := openTestStore(t)

	body := completedEvent("conv-ghost", "voicemail")
	w := postWebhook(t, store, body, signBody(testSecret, body, time.Now()))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (prevents provider retry storms)", w.Code)
	}
}

func TestHandleCalls_InitiationFailed(t *testing.T) {
	store := openTestStore(t)
	rec := initiatedRecord(t, store, "conv-1")

	body := []byte(`{"type":"call_initiation_failed","conversation_id":"conv-1","reason":"destination rejected the call"}`)
	w := postWebhook(t, store, body, signBody(testSecret, body, time.Now()))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	got, _ := store.Get(rec.ID)
	if got.State != models.StateFailed {
		t.Errorf("state = %q, want failed", got.State)
	}
	if got.ErrorReason != "destination rejected the call" {
		t.Errorf("error reason = %q", got.ErrorReason)
	}
}

func TestHandleCalls_SignedGarbageReturns400(t *testing.T) {
	store := openTestStore(t)

	body := []byte(`not json`)
	w := postWebhook(t, store, body, signBody(testSecret, body, time.Now()))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleCalls_UnknownEventTypeReturns200(t *testing.T) {
	store := openTestStore(t)

	body := []byte(`{"type":"call_transferred","conversation_id":"conv-1"}`)
	w := postWebhook(t, store, body, signBody(testSecret, body, time.Now()))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
