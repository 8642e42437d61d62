package authority

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/rzbill/gdid/internal/location"
	"github.com/rzbill/gdid/pkg/instrument"
	logpkg "github.com/rzbill/gdid/pkg/log"
)

// callWithTimeout runs fn under a deadline and stops waiting once it passes,
// even for backends that ignore ctx. A write abandoned this way may still
// land later and overwrite a newer state on that Location, so AllocateBlock
// never allocates below the sequence's committed floor.
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// readBest reads every Location concurrently and returns the highest state
// seen. It fails only when no Location could be read.
func (a *Authority) readBest(ctx context.Context, scope, seq string) (location.State, error) {
	states := make([]location.State, len(a.locs))
	errs := make([]error, len(a.locs))

	var g errgroup.Group
	for i, loc := range a.locs {
		g.Go(func() error {
			states[i], errs[i] = callWithTimeout(ctx, a.callTimeout, func(ctx context.Context) (location.State, error) {
				return loc.ReadCounter(ctx, scope, seq)
			})
			return nil
		})
	}
	_ = g.Wait()

	var (
		best location.State
		ok   int
		merr *multierror.Error
	)
	for i, err := range errs {
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", a.locs[i].Name(), err))
			a.rec.Emit(instrument.AuthLocationReadFailure, scope, seq,
				logpkg.Str("location", a.locs[i].Name()), logpkg.Err(err))
			continue
		}
		if ok == 0 || best.Less(states[i]) {
			best = states[i]
		}
		ok++
	}
	if ok == 0 {
		return location.State{}, merr.ErrorOrNil()
	}
	return best, nil
}

// writeAll writes st to every Location concurrently. It fails only when no
// Location accepted the write.
func (a *Authority) writeAll(ctx context.Context, scope, seq string, st location.State) error {
	errs := make([]error, len(a.locs))

	var g errgroup.Group
	for i, loc := range a.locs {
		g.Go(func() error {
			_, errs[i] = callWithTimeout(ctx, a.callTimeout, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, loc.WriteCounter(ctx, scope, seq, st)
			})
			return nil
		})
	}
	_ = g.Wait()

	var (
		ok   int
		merr *multierror.Error
	)
	for i, err := range errs {
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", a.locs[i].Name(), err))
			a.rec.Emit(instrument.AuthLocationWriteFailure, scope, seq,
				logpkg.Str("location", a.locs[i].Name()), logpkg.Err(err))
			continue
		}
		ok++
	}
	if ok == 0 {
		return merr.ErrorOrNil()
	}
	return nil
}
