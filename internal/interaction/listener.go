// ABOUTME: Ready-made listeners for runs without an interactive front end
// ABOUTME: Discard drops updates and rejects every query

package interaction

import (
	"context"

	"github.com/2389/coven-link/internal/wire"
)

// Discard ignores updates and rejects queries with Reason.
type Discard struct {
	Reason string
}

// SendUpdate implements Listener.
func (Discard) SendUpdate(context.Context, wire.UpdateEvent) error { return nil }

// Query implements Listener.
func (d Discard) Query(context.Context, Query) (Response, error) {
	reason := d.Reason
	if reason == "" {
		reason = "no interactive session"
	}
	return Reject(reason), nil
}
