// Package adaptive stitches differently configured evolution engines into
// one continuous result stream, choosing the engine for each round from the
// previous round's result.
package adaptive

import (
	"context"

	"github.com/evolvekit/evolvekit/internal/evolution"
)

// Policy chooses the engine for the next round of evolution. The previous
// result is nil for the first round. Policies may keep state between calls
// (the variance-hysteresis policy does); a policy instance must not be
// shared between concurrently pulled streams.
type Policy interface {
	Engine(prev *evolution.Result) (evolution.Streamer, error)
}

// PolicyFunc adapts a plain function to the Policy interface.
type PolicyFunc func(prev *evolution.Result) (evolution.Streamer, error)

// Engine implements Policy.
func (f PolicyFunc) Engine(prev *evolution.Result) (evolution.Streamer, error) {
	return f(prev)
}

// Option configures an AdaptiveEngine.
type Option func(*AdaptiveEngine)

// WithRoundLength sets how many generations are pulled from the chosen
// engine before the policy is consulted again. The engine's own Limit may
// end a round earlier. The default is 1: the policy sees every result.
func WithRoundLength(n int) Option {
	return func(a *AdaptiveEngine) {
		a.roundLength = n
	}
}

// AdaptiveEngine produces a single, logically unbounded stream of evolution
// results in which each round's engine is chosen by a Policy evaluated on
// the previous result. The engine itself holds no algorithm knowledge; it
// only threads state from one round into the selection of the next.
type AdaptiveEngine struct {
	policy      Policy
	roundLength int
}

// New creates an adaptive engine with the given policy. The policy is
// required; options tune the round granularity.
func New(policy Policy, opts ...Option) (*AdaptiveEngine, error) {
	if policy == nil {
		return nil, evolution.NewError("policy is required").WithComponent("adaptive")
	}

	a := &AdaptiveEngine{policy: policy, roundLength: 1}
	for _, opt := range opts {
		opt(a)
	}
	if a.roundLength < 1 {
		return nil, evolution.NewError("round length must be >= 1").WithComponent("adaptive")
	}
	return a, nil
}

// Stream returns the adaptive result stream. The supplier produces a fresh
// start state for the first round; every later round continues from the
// previous result. Nothing is built before the first pull, not even the
// first engine.
func (a *AdaptiveEngine) Stream(supplier func() evolution.Start) *evolution.Stream {
	return a.stream(supplier)
}

// StreamFrom returns the adaptive result stream starting from a fixed
// initial state. The state is consumed by the first round only.
func (a *AdaptiveEngine) StreamFrom(start evolution.Start) *evolution.Stream {
	return a.stream(func() evolution.Start { return start })
}

// stream is the generator loop: one pull produces one result, consulting the
// policy at round boundaries. The only state retained between pulls is the
// previous result, the current inner stream and the round budget.
func (a *AdaptiveEngine) stream(supplier func() evolution.Start) *evolution.Stream {
	var (
		prev      *evolution.Result
		inner     *evolution.Stream
		remaining int
	)

	return evolution.NewStream(func(ctx context.Context) (*evolution.Result, error) {
		for {
			if inner == nil {
				streamer, err := a.policy.Engine(prev)
				if err != nil {
					return nil, err
				}

				var start evolution.Start
				if prev == nil {
					start = supplier()
				} else {
					start = prev.ToStart()
				}
				inner = streamer.Stream(start)
				remaining = a.roundLength
			}

			r, err := inner.Next(ctx)
			if err != nil {
				return nil, err
			}
			if r == nil {
				// Inner stream exhausted before yielding: a fresh round
				// produced nothing, which would loop forever.
				if remaining == a.roundLength {
					return nil, evolution.NewError("engine produced no results").
						WithComponent("adaptive").
						WithOperation("stream")
				}
				inner = nil
				continue
			}

			prev = r
			remaining--
			if remaining == 0 {
				inner = nil
			}
			return r, nil
		}
	})
}
