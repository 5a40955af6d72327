// Package reconcile heals calls whose provider webhook never arrived. It
// periodically pulls the provider's ground truth for records stuck
// mid-flight and applies terminal statuses through the same write path the
// webhook uses.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/blakeyoder/alfred/internal/calls"
	"github.com/blakeyoder/alfred/internal/callstore"
	"github.com/blakeyoder/alfred/internal/models"
	"github.com/blakeyoder/alfred/internal/provider"
)

// Default poller settings.
const (
	DefaultInterval   = 5 * time.Minute
	DefaultStaleAfter = 30 * time.Minute
)

// Poller checks stalled calls against the provider's status API.
type Poller struct {
	store      *callstore.Store
	client     provider.Client
	staleAfter time.Duration
	timeout    time.Duration
}

// PollerOpts holds parameters for creating a Poller.
type PollerOpts struct {
	Store      *callstore.Store
	Client     provider.Client
	StaleAfter time.Duration // defaults to DefaultStaleAfter
	Timeout    time.Duration // per provider lookup; defaults to 30s
}

// NewPoller creates a Poller.
func NewPoller(opts PollerOpts) (*Poller, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("reconcile: store is required")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("reconcile: provider client is required")
	}
	staleAfter := opts.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Poller{
		store:      opts.Store,
		client:     opts.Client,
		staleAfter: staleAfter,
		timeout:    timeout,
	}, nil
}

// RunOnce performs one reconciliation cycle. Staleness only triggers an
// active status check, never an assumption of failure: a slow but
// legitimate call stays in flight until the provider says otherwise.
// Lookup failures are logged and skipped; the record is revisited next
// cycle.
func (p *Poller) RunOnce(ctx context.Context) error {
	stale, err := p.store.ListStale(models.InFlightStates, p.staleAfter)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}
	log.Printf("reconcile: checking %d stalled call(s)", len(stale))

	for _, rec := range stale {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if rec.ConversationID == nil {
			continue
		}
		cid := *rec.ConversationID

		lookupCtx, cancel := context.WithTimeout(ctx, p.timeout)
		status, err := p.client.GetCallStatus(lookupCtx, cid)
		cancel()
		if err != nil {
			log.Printf("reconcile: status lookup %s: %v", cid, err)
			continue
		}
		if !provider.TerminalState(status.State) {
			continue
		}

		if err := calls.ApplyTerminal(p.store, status); err != nil {
			log.Printf("reconcile: apply terminal %s: %v", cid, err)
			continue
		}
		log.Printf("reconcile: healed %s: %s -> %s", rec.ID, rec.State, status.State)
	}
	return nil
}
