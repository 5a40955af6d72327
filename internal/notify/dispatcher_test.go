package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/blakeyoder/alfred/internal/callstore"
	"github.com/blakeyoder/alfred/internal/config"
	"github.com/blakeyoder/alfred/internal/models"
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

// terminalRecord creates a done record awaiting notification.
func terminalRecord(t *testing.T, store *callstore.Store, conversationID, groupID string) *models.CallRecord {
	t.Helper()
	rec, err := store.Create(callstore.CreateParams{
		ToNumber:    "+15551234567",
		ToName:      "Dr. Smith",
		Purpose:     "confirm appointment",
		GroupID:     groupID,
		RequestedBy: "dave",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.SetInitiated(rec.ID, conversationID); err != nil {
		t.Fatalf("set initiated: %v", err)
	}
	dur := 125
	err = store.SetTerminal(conversationID, callstore.TerminalFields{
		State:             models.StateDone,
		Outcome:           models.OutcomeVoicemail,
		Summary:           "Left a voicemail.",
		DurationSeconds:   &dur,
		TerminationReason: "voicemail",
	})
	if err != nil {
		t.Fatalf("set terminal: %v", err)
	}
	return rec
}

// sentMessage records one Send call.
type sentMessage struct {
	Channel string
	Text    string
}

// mockSink implements Sink, optionally failing the first N sends.
type mockSink struct {
	failFirst int
	sent      []sentMessage
}

func (m *mockSink) Send(ctx context.Context, channelID, text string) error {
	if m.failFirst > 0 {
		m.failFirst--
		return errors.New("chat platform unavailable")
	}
	m.sent = append(m.sent, sentMessage{Channel: channelID, Text: text})
	return nil
}

func testRouting() config.NotifyConfig {
	return config.NotifyConfig{
		DefaultChannel: "C-general",
		Channels:       map[string]string{"family": "C-family"},
	}
}

func newDispatcher(t *testing.T, store *callstore.Store, sink Sink, routing config.NotifyConfig) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(DispatcherOpts{Store: store, Sink: sink, Routing: routing})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d
}

func TestRunOnce_DeliversOnceAndMarks(t *testing.T) {
	store := openTestStore(t)
	rec := terminalRecord(t, store, "conv-1", "family")
	sink := &mockSink{}
	d := newDispatcher(t, store, sink, testRouting())

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(sink.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sink.sent))
	}
	if sink.sent[0].Channel != "C-family" {
		t.Errorf("channel = %q, want C-family", sink.sent[0].Channel)
	}

	got, _ := store.Get(rec.ID)
	if got.NotifiedAt == nil {
		t.Fatal("notified at not stamped")
	}

	// Second cycle: nothing new to send.
	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(sink.sent) != 1 {
		t.Errorf("sent %d messages after second cycle, want still 1", len(sink.sent))
	}
}

func TestRunOnce_FailedDeliveryRetriesNextCycle(t *testing.T) {
	store := openTestStore(t)
	rec := terminalRecord(t, store, "conv-1", "family")
	sink := &mockSink{failFirst: 1}
	d := newDispatcher(t, store, sink, testRouting())

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	got, _ := store.Get(rec.ID)
	if got.NotifiedAt != nil {
		t.Fatal("notified at stamped despite failed delivery")
	}

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	got, _ = store.Get(rec.ID)
	if got.NotifiedAt == nil {
		t.Fatal("notified at not stamped after successful retry")
	}
	if len(sink.sent) != 1 {
		t.Errorf("sent %d messages, want 1", len(sink.sent))
	}
}

func TestRunOnce_NoChannelSkipsWithoutMarking(t *testing.T) {
	store := openTestStore(t)
	rec := terminalRecord(t, store, "conv-1", "unrouted-group")
	sink := &mockSink{}
	// No default channel, no mapping: nowhere to deliver.
	d := newDispatcher(t, store, sink, config.NotifyConfig{})

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(sink.sent) != 0 {
		t.Errorf("sent %d messages with no destination", len(sink.sent))
	}
	got, _ := store.Get(rec.ID)
	if got.NotifiedAt != nil {
		t.Error("record marked notified without a delivery")
	}
}

func TestRunOnce_FallsBackToDefaultChannel(t *testing.T) {
	store := openTestStore(t)
	terminalRecord(t, store, "conv-1", "unmapped")
	sink := &mockSink{}
	d := newDispatcher(t, store, sink, testRouting())

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(sink.sent) != 1 || sink.sent[0].Channel != "C-general" {
		t.Errorf("sent = %+v, want one message to C-general", sink.sent)
	}
}

func TestRunOnce_SummaryContent(t *testing.T) {
	store := openTestStore(t)
	terminalRecord(t, store, "conv-1", "family")
	sink := &mockSink{}
	d := newDispatcher(t, store, sink, testRouting())

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	text := sink.sent[0].Text
	for _, want := range []string{"Dr. Smith", "voicemail", "2m05s", "Left a voicemail.", "dave"} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
}
