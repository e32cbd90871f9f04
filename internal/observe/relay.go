package observe

import (
	"context"
	"time"
)

// Relay is the single producer of the persistence queue: it drains the
// bounded multi-producer ingress channel into a single-producer-
// single-consumer ring (here, a buffered Go channel, which already
// gives FIFO ordering and blocking backpressure), preserving per-pane
// order and closing the ring on shutdown (spec §4.1 step 3).
type Relay struct {
	In  <-chan IngressSegment
	Out chan<- IngressSegment
}

// Run drains In into Out until ctx is cancelled or In is closed, per
// spec §5's "Relay: MPSC receive with a 25ms timeout (to observe
// shutdown), SPSC send."
func (r *Relay) Run(ctx context.Context) error {
	defer close(r.Out)
	const recvTimeout = 25 * time.Millisecond

	for {
		timer := time.NewTimer(recvTimeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case seg, ok := <-r.In:
			timer.Stop()
			if !ok {
				return nil
			}
			select {
			case r.Out <- seg:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-timer.C:
			// Shutdown-responsive slice; loop to re-check ctx.Done().
		}
	}
}
