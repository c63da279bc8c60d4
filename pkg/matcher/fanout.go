package matcher

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/xfhg/intercept/pkg/policy"
	"github.com/xfhg/intercept/pkg/walker"
)

// artifactFunc evaluates one artifact. A returned error aborts the rule.
type artifactFunc func(ctx context.Context, a walker.Artifact) ([]policy.Violation, error)

// forEachArtifact walks src with filter and runs fn on every artifact, at
// most limit at a time. Violations are merged under a mutex and sorted
// before returning.
func forEachArtifact(ctx context.Context, src Source, filter walker.Filter, limit int, fn artifactFunc) (Result, error) {
	var (
		mu  sync.Mutex
		res Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for artifact, err := range src.Walk(gctx, filter) {
		if err != nil {
			var we *walker.WalkError
			if errors.As(err, &we) {
				res.Skipped = append(res.Skipped, we)
				continue
			}
			// Context cancellation ends the walk.
			break
		}

		res.Artifacts++
		g.Go(func() error {
			violations, err := fn(gctx, artifact)
			if err != nil {
				return err
			}
			if len(violations) > 0 {
				mu.Lock()
				res.Violations = append(res.Violations, violations...)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res.sort()
	return res, nil
}
