// Package calls holds the call lifecycle logic: initiating calls,
// classifying outcomes, and applying terminal provider statuses.
package calls

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/blakeyoder/alfred/internal/callstore"
	"github.com/blakeyoder/alfred/internal/config"
	"github.com/blakeyoder/alfred/internal/models"
	"github.com/blakeyoder/alfred/internal/provider"
)

// ErrInvalidNumber is returned when the destination is not a valid E.164
// phone number. No record is created in that case.
var ErrInvalidNumber = errors.New("calls: destination is not a valid E.164 number")

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// ValidNumber reports whether s is a valid E.164 phone number.
func ValidNumber(s string) bool {
	return e164Pattern.MatchString(s)
}

// Initiator places outbound calls. It is the only component that creates
// CallRecords.
type Initiator struct {
	store  *callstore.Store
	client provider.Client
	cfg    config.ProviderConfig
}

// NewInitiator creates an Initiator.
func NewInitiator(store *callstore.Store, client provider.Client, cfg config.ProviderConfig) *Initiator {
	return &Initiator{store: store, client: client, cfg: cfg}
}

// PlaceParams holds the caller-supplied parameters for a new call.
type PlaceParams struct {
	ToNumber     string
	ToName       string
	Purpose      string
	Instructions string
	GroupID      string
	RequestedBy  string
	Variables    map[string]string
}

// Place validates the destination, creates a pending record, and asks the
// provider to dial. On provider rejection the record is marked failed and
// the error is returned; no retry is attempted here, since re-dialing a
// phone number is a side effect the caller must decide on. On acceptance
// the record moves to initiated with the provider's conversation id.
func (i *Initiator) Place(ctx context.Context, params PlaceParams) (*models.CallRecord, error) {
	if !ValidNumber(params.ToNumber) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, params.ToNumber)
	}

	rec, err := i.store.Create(callstore.CreateParams{
		ToNumber:     params.ToNumber,
		ToName:       params.ToName,
		Purpose:      params.Purpose,
		Instructions: params.Instructions,
		GroupID:      params.GroupID,
		RequestedBy:  params.RequestedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("calls: create record: %w", err)
	}

	variables := map[string]string{}
	for k, v := range params.Variables {
		variables[k] = v
	}
	if params.ToName != "" {
		variables["callee_name"] = params.ToName
	}
	if params.Purpose != "" {
		variables["call_purpose"] = params.Purpose
	}
	if params.Instructions != "" {
		variables["instructions"] = params.Instructions
	}

	conversationID, err := i.client.PlaceCall(ctx, provider.PlaceCallRequest{
		AgentID:      i.cfg.AgentID,
		AgentPhoneID: i.cfg.AgentPhoneID,
		ToNumber:     params.ToNumber,
		Variables:    variables,
	})
	if err != nil {
		if ferr := i.store.SetFailedBeforeStart(rec.ID, err.Error()); ferr != nil {
			return nil, fmt.Errorf("calls: place failed (%v) and record %s not updated: %w", err, rec.ID, ferr)
		}
		failed, gerr := i.store.Get(rec.ID)
		if gerr == nil && failed != nil {
			rec = failed
		}
		return rec, fmt.Errorf("calls: place call: %w", err)
	}

	if err := i.store.SetInitiated(rec.ID, conversationID); err != nil {
		return nil, fmt.Errorf("calls: record initiated %s: %w", rec.ID, err)
	}
	initiated, err := i.store.Get(rec.ID)
	if err != nil {
		return nil, err
	}
	return initiated, nil
}
