package slack

import (
	"context"
	"errors"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"
)

// mockSlackClient implements slackClient for tests.
type mockSlackClient struct {
	failures int // rate-limit errors to return before succeeding
	calls    int
	channels []string
}

func (m *mockSlackClient) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.calls++
	m.channels = append(m.channels, channelID)
	if m.failures > 0 {
		m.failures--
		return "", "", &slackapi.RateLimitedError{RetryAfter: time.Millisecond}
	}
	return channelID, "123.456", nil
}

func TestSend_PostsToChannel(t *testing.T) {
	client := &mockSlackClient{}
	s := &Sink{client: client}

	if err := s.Send(context.Background(), "C-family", "Call done."); err != nil {
		t.Fatalf("send: %v", err)
	}
	if client.calls != 1 || client.channels[0] != "C-family" {
		t.Errorf("calls = %d, channels = %v", client.calls, client.channels)
	}
}

func TestSend_RequiresChannel(t *testing.T) {
	s := &Sink{client: &mockSlackClient{}}
	if err := s.Send(context.Background(), "", "text"); err == nil {
		t.Fatal("expected error for empty channel")
	}
}

func TestSend_RetriesOnRateLimit(t *testing.T) {
	client := &mockSlackClient{failures: 2}
	s := &Sink{client: client}

	if err := s.Send(context.Background(), "C-family", "text"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if client.calls != 3 {
		t.Errorf("calls = %d, want 3 (2 rate-limited + 1 success)", client.calls)
	}
}

func TestSend_GivesUpAfterMaxRetries(t *testing.T) {
	client := &mockSlackClient{failures: maxRetries + 5}
	s := &Sink{client: client}

	err := s.Send(context.Background(), "C-family", "text")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	var rle *slackapi.RateLimitedError
	if !errors.As(err, &rle) {
		t.Errorf("err = %v, want wrapped rate-limit error", err)
	}
	if client.calls != maxRetries+1 {
		t.Errorf("calls = %d, want %d", client.calls, maxRetries+1)
	}
}
