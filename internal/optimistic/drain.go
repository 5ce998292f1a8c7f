package optimistic

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Drain runs a headless event loop until no commit is pending: ready commits are sent
// concurrently (one per lane) and their results are resolved on the calling goroutine.
//
// The returned error joins the failures of commits that were rolled back during the drain.
func (c *Controller) Drain(ctx context.Context) error {
	results := make(chan Result)
	inflight := 0

	var g errgroup.Group
	launch := func(batch []*Commit) {
		for _, cm := range batch {
			inflight++
			g.Go(func() error {
				results <- c.Send(ctx, cm)
				return nil
			})
		}
	}

	var errs []error
	launch(c.Dispatch())
	for inflight > 0 {
		res := <-results
		inflight--
		launch(c.Resolve(res))
		if cm, ok := c.commits[res.CommitID]; ok && cm.State == StateRolledBack {
			errs = append(errs, cm.Err)
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}
