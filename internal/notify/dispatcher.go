package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/blakeyoder/alfred/internal/callstore"
	"github.com/blakeyoder/alfred/internal/config"
)

// DefaultInterval is how often the dispatcher scans for unnotified calls.
const DefaultInterval = 30 * time.Second

// Dispatcher announces terminal calls that have not been notified yet.
type Dispatcher struct {
	store   *callstore.Store
	sink    Sink
	routing config.NotifyConfig
	timeout time.Duration
}

// DispatcherOpts holds parameters for creating a Dispatcher.
type DispatcherOpts struct {
	Store   *callstore.Store
	Sink    Sink
	Routing config.NotifyConfig
	Timeout time.Duration // per delivery; defaults to 30s
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts DispatcherOpts) (*Dispatcher, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("notify: store is required")
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("notify: sink is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		store:   opts.Store,
		sink:    opts.Sink,
		routing: opts.Routing,
		timeout: timeout,
	}, nil
}

// RunOnce performs one dispatch cycle. NotifiedAt is stamped only after a
// confirmed delivery, so a failed send is retried next cycle
// (at-least-once). A record whose group has no configured channel is
// skipped without being marked; it will be retried until routing exists,
// which beats silently dropping it.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	recs, err := d.store.ListUnnotifiedTerminal()
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	for i := range recs {
		rec := &recs[i]
		if ctx.Err() != nil {
			return ctx.Err()
		}

		channel := d.routing.ChannelFor(rec.GroupID)
		if channel == "" {
			log.Printf("notify: no channel for group %q (call %s), skipping", rec.GroupID, rec.ID)
			continue
		}

		text := RenderSummary(rec)
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := d.sink.Send(sendCtx, channel, text)
		cancel()
		if err != nil {
			log.Printf("notify: deliver %s to %s: %v", rec.ID, channel, err)
			continue
		}

		if err := d.store.MarkNotified(rec.ID); err != nil {
			// The message went out but the stamp failed; the next cycle
			// may send a duplicate, which at-least-once tolerates.
			log.Printf("notify: mark notified %s: %v", rec.ID, err)
		}
	}
	return nil
}
