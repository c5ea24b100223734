package destination

import (
	"context"
	"sync"

	"github.com/ruteri/message-relay-backend/interfaces"
)

// MockDestination is an in-memory destination handler for tests. It records
// delivered messages and can be scripted to fail.
type MockDestination struct {
	mu        sync.Mutex
	delivered []*interfaces.Message

	// Err, when set, is returned by Deliver without recording the message.
	Err error

	// OnDeliver, when set, is invoked before recording. It can be used to
	// trigger reentrant calls into the registry from within a delivery.
	OnDeliver func(ctx context.Context, msg *interfaces.Message) error
}

// NewMockDestination creates an empty recording destination.
func NewMockDestination() *MockDestination {
	return &MockDestination{}
}

// Deliver records the message, or fails according to the scripted behavior.
func (d *MockDestination) Deliver(ctx context.Context, msg *interfaces.Message) error {
	if d.OnDeliver != nil {
		if err := d.OnDeliver(ctx, msg); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.Err != nil {
		return d.Err
	}

	d.delivered = append(d.delivered, msg)
	return nil
}

// Delivered returns the messages delivered so far.
func (d *MockDestination) Delivered() []*interfaces.Message {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*interfaces.Message, len(d.delivered))
	copy(out, d.delivered)
	return out
}
