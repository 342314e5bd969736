package adaptive

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolvekit/evolvekit/internal/evolution"
)

// streamerFunc adapts a function to evolution.Streamer.
type streamerFunc func(evolution.Start) *evolution.Stream

func (f streamerFunc) Stream(start evolution.Start) *evolution.Stream {
	return f(start)
}

// steppingStreamer yields results that advance the start state one
// generation per pull, optionally bounded per stream.
func steppingStreamer(limit int) streamerFunc {
	return func(start evolution.Start) *evolution.Stream {
		gen := start.Generation
		produced := 0
		return evolution.NewStream(func(context.Context) (*evolution.Result, error) {
			if limit > 0 && produced >= limit {
				return nil, nil
			}
			gen++
			produced++
			return &evolution.Result{
				Generation: gen,
				Population: start.Population.Clone(),
			}, nil
		})
	}
}

func testStart() evolution.Start {
	return evolution.Start{
		Population: evolution.Population{{Genes: evolution.Genotype{0}, Fitness: 1}},
	}
}

func TestNewRequiresPolicy(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy is required")
}

func TestNewRejectsBadRoundLength(t *testing.T) {
	policy := PolicyFunc(func(*evolution.Result) (evolution.Streamer, error) {
		return steppingStreamer(0), nil
	})

	_, err := New(policy, WithRoundLength(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "round length must be >= 1")
}

func TestStreamIsLazy(t *testing.T) {
	policyCalls := 0
	supplierCalls := 0

	policy := PolicyFunc(func(*evolution.Result) (evolution.Streamer, error) {
		policyCalls++
		return steppingStreamer(0), nil
	})

	a, err := New(policy)
	require.NoError(t, err)

	stream := a.Stream(func() evolution.Start {
		supplierCalls++
		return testStart()
	})

	assert.Equal(t, 0, policyCalls, "no policy evaluation before the first pull")
	assert.Equal(t, 0, supplierCalls, "no start state before the first pull")

	_, err = stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, policyCalls)
	assert.Equal(t, 1, supplierCalls)
}

func TestStreamCausalOrdering(t *testing.T) {
	var observed []*evolution.Result

	policy := PolicyFunc(func(prev *evolution.Result) (evolution.Streamer, error) {
		observed = append(observed, prev)
		return steppingStreamer(0), nil
	})

	a, err := New(policy)
	require.NoError(t, err)

	ctx := context.Background()
	stream := a.StreamFrom(testStart())

	var results []*evolution.Result
	for i := 0; i < 5; i++ {
		r, err := stream.Next(ctx)
		require.NoError(t, err)
		results = append(results, r)
	}

	// The policy's input for round i is exactly the result of round i-1.
	require.Len(t, observed, 5)
	assert.Nil(t, observed[0])
	for i := 1; i < 5; i++ {
		assert.Same(t, results[i-1], observed[i], "round %d", i)
	}

	for i, r := range results {
		assert.Equal(t, i+1, r.Generation)
	}
}

func TestStreamSupplierUsedOnlyForFirstRound(t *testing.T) {
	supplierCalls := 0

	policy := PolicyFunc(func(*evolution.Result) (evolution.Streamer, error) {
		return steppingStreamer(0), nil
	})
	a, err := New(policy)
	require.NoError(t, err)

	stream := a.Stream(func() evolution.Start {
		supplierCalls++
		return testStart()
	})

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := stream.Next(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, supplierCalls)
}

func TestStreamPolicyErrorIsTerminal(t *testing.T) {
	calls := 0
	policy := PolicyFunc(func(*evolution.Result) (evolution.Streamer, error) {
		calls++
		if calls > 1 {
			return nil, evolution.NewError("no engine available")
		}
		return steppingStreamer(0), nil
	})

	a, err := New(policy)
	require.NoError(t, err)

	ctx := context.Background()
	stream := a.StreamFrom(testStart())

	_, err = stream.Next(ctx)
	require.NoError(t, err)

	_, err = stream.Next(ctx)
	require.Error(t, err)

	_, err2 := stream.Next(ctx)
	require.Error(t, err2)
	assert.Equal(t, err, err2, "errors terminate the sequence")
	assert.Equal(t, 2, calls, "no retry after a failed round")
}

func TestStreamRoundLength(t *testing.T) {
	policyCalls := 0
	policy := PolicyFunc(func(*evolution.Result) (evolution.Streamer, error) {
		policyCalls++
		return steppingStreamer(0), nil
	})

	a, err := New(policy, WithRoundLength(3))
	require.NoError(t, err)

	ctx := context.Background()
	stream := a.StreamFrom(testStart())

	for i := 0; i < 9; i++ {
		r, err := stream.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, i+1, r.Generation)
	}
	assert.Equal(t, 3, policyCalls, "policy consulted once per 3-generation round")
}

func TestStreamBoundedEngineEndsRoundEarly(t *testing.T) {
	policyCalls := 0
	policy := PolicyFunc(func(*evolution.Result) (evolution.Streamer, error) {
		policyCalls++
		return steppingStreamer(2), nil
	})

	// Each round allows 5 generations but the engine exhausts after 2.
	a, err := New(policy, WithRoundLength(5))
	require.NoError(t, err)

	ctx := context.Background()
	stream := a.StreamFrom(testStart())

	for i := 0; i < 6; i++ {
		r, err := stream.Next(ctx)
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, i+1, r.Generation, "the outer stream stays continuous")
	}
	assert.Equal(t, 3, policyCalls)
}

func TestStreamEmptyEngineFails(t *testing.T) {
	policy := PolicyFunc(func(*evolution.Result) (evolution.Streamer, error) {
		return streamerFunc(func(evolution.Start) *evolution.Stream {
			return evolution.NewStream(func(context.Context) (*evolution.Result, error) {
				return nil, nil
			})
		}), nil
	})

	a, err := New(policy)
	require.NoError(t, err)

	_, err = a.StreamFrom(testStart()).Next(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine produced no results")
}

// End-to-end: a real engine pair driven through the adaptive stream.
func TestStreamWithRealEngines(t *testing.T) {
	base := evolution.Config{
		Fitness:        evolution.Minimizing(evolution.Sphere),
		Bounds:         [][2]float64{{-5, 5}, {-5, 5}},
		PopulationSize: 20,
		EliteCount:     1,
		Seed:           7,
	}

	narrow := base
	narrow.Mutator = evolution.NewGaussianMutator(0.1, 0.1)
	enlarge := base
	enlarge.Mutator = evolution.NewGaussianMutator(0.6, 1.5)

	vr, err := NewVarianceRange(0.05, 5.0)
	require.NoError(t, err)

	policy, err := ByFitnessVariance(vr, narrow, enlarge)
	require.NoError(t, err)

	a, err := New(policy)
	require.NoError(t, err)

	ctx := context.Background()
	stream := a.StreamFrom(evolution.NewRandomStart(
		rand.New(rand.NewSource(11)), base.Bounds, base.PopulationSize))

	var last *evolution.Result
	for i := 0; i < 30; i++ {
		r, err := stream.Next(ctx)
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, i+1, r.Generation)
		last = r
	}

	assert.NotNil(t, last.Best())
	assert.GreaterOrEqual(t, policy.Rebuilds(), 1)
}
