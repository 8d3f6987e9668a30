package notify

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Fanout delivers each event to every notifier concurrently and returns the
// first delivery error.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, e Event) error {
	var g errgroup.Group
	for _, n := range f {
		g.Go(func() error {
			return n.Notify(ctx, e)
		})
	}
	return g.Wait()
}
