package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/blakeyoder/alfred/internal/config"
)

// HTTPClient implements Client against the provider's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient creates an HTTPClient from provider configuration.
func NewHTTPClient(cfg config.ProviderConfig) *HTTPClient {
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// placeCallResponse is the provider's acceptance envelope.
type placeCallResponse struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message,omitempty"`
}

// PlaceCall POSTs an outbound call request. A non-2xx response or an empty
// conversation id is a placement rejection.
func (c *HTTPClient) PlaceCall(ctx context.Context, req PlaceCallRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("provider: marshal place call: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/calls", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("provider: build place call request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("provider: place call: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("provider: read place call response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("provider: place call rejected: status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var out placeCallResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("provider: decode place call response: %w", err)
	}
	if out.ConversationID == "" {
		return "", fmt.Errorf("provider: place call accepted without conversation id")
	}
	return out.ConversationID, nil
}

// GetCallStatus GETs the provider's current view of a conversation.
func (c *HTTPClient) GetCallStatus(ctx context.Context, conversationID string) (*CallStatus, error) {
	endpoint := c.baseURL + "/v1/calls/" + url.PathEscape(conversationID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("provider: build status request: %w", err)
	}
	httpReq.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider: get status %s: %w", conversationID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("provider: read status response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider: get status %s: status %d: %s", conversationID, resp.StatusCode, truncate(string(data), 200))
	}

	var status CallStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("provider: decode status response: %w", err)
	}
	if status.ConversationID == "" {
		status.ConversationID = conversationID
	}
	return &status, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
