package review

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Skryldev/reviewkit/models"
)

// Observer receives the diagnostics of every update that reached the store
// successfully.
type Observer interface {
	Observe(ctx context.Context, identity models.Identity, targetID string, d Diagnostics)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, identity models.Identity, targetID string, d Diagnostics)

func (f ObserverFunc) Observe(ctx context.Context, identity models.Identity, targetID string, d Diagnostics) {
	f(ctx, identity, targetID, d)
}

// Observers fans out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	return ObserverFunc(func(ctx context.Context, identity models.Identity, targetID string, d Diagnostics) {
		for _, o := range obs {
			if o != nil {
				o.Observe(ctx, identity, targetID, d)
			}
		}
	})
}

// LogObserver logs raised diagnostics at error level; clean outcomes are
// not logged.
type LogObserver struct {
	Log *zap.Logger
}

func (o LogObserver) Observe(_ context.Context, identity models.Identity, targetID string, d Diagnostics) {
	if !d.Any() || o.Log == nil {
		return
	}
	o.Log.Error("review update invariant violated",
		zap.String("author", identity.Email),
		zap.String("review_id", targetID),
		zap.Bool("multi_match", d.MultiMatchDetected),
		zap.Bool("ownership_mismatch", d.OwnershipMismatchDetected),
	)
}

// CountingObserver keeps running totals, suitable for a health endpoint or
// for asserting in tests that no diagnostic ever fired.
type CountingObserver struct {
	updates           atomic.Int64
	multiMatch        atomic.Int64
	ownershipMismatch atomic.Int64
}

func (c *CountingObserver) Observe(_ context.Context, _ models.Identity, _ string, d Diagnostics) {
	c.updates.Add(1)
	if d.MultiMatchDetected {
		c.multiMatch.Add(1)
	}
	if d.OwnershipMismatchDetected {
		c.ownershipMismatch.Add(1)
	}
}

// Counts returns the number of observed updates and of each raised flag.
func (c *CountingObserver) Counts() (updates, multiMatch, ownershipMismatch int64) {
	return c.updates.Load(), c.multiMatch.Load(), c.ownershipMismatch.Load()
}
