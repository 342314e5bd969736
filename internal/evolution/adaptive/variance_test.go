package adaptive

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolvekit/evolvekit/internal/evolution"
)

func policyConfigs() (narrow, enlarge evolution.Config) {
	base := evolution.Config{
		Fitness:        evolution.Minimizing(evolution.Sphere),
		Bounds:         [][2]float64{{-5, 5}},
		PopulationSize: 10,
		EliteCount:     1,
		Seed:           1,
	}
	narrow = base
	narrow.Mutator = evolution.NewGaussianMutator(0.1, 0.1)
	enlarge = base
	enlarge.Mutator = evolution.NewGaussianMutator(0.6, 1.5)
	return narrow, enlarge
}

// resultWithVariance builds a two-phenotype result whose sample fitness
// variance is exactly v: the fitness values +-d around zero have sample
// variance 2*d*d.
func resultWithVariance(v float64) *evolution.Result {
	d := math.Sqrt(v / 2)
	return &evolution.Result{
		Generation: 1,
		Population: evolution.Population{
			{Genes: evolution.Genotype{0}, Fitness: d},
			{Genes: evolution.Genotype{0}, Fitness: -d},
		},
	}
}

func TestNewVarianceRange(t *testing.T) {
	tests := []struct {
		name     string
		min, max float64
		errMsg   string
	}{
		{name: "valid", min: 0.2, max: 0.8},
		{name: "degenerate", min: 0.5, max: 0.5},
		{name: "inverted", min: 0.9, max: 0.1, errMsg: "min 0.9 > max 0.1"},
		{name: "negative min", min: -0.1, max: 0.5, errMsg: "must be >= 0"},
		{name: "nan", min: math.NaN(), max: 1, errMsg: "must be finite"},
		{name: "infinite max", min: 0, max: math.Inf(1), errMsg: "must be finite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewVarianceRange(tt.min, tt.max)
			if tt.errMsg == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.min, r.Min)
				assert.Equal(t, tt.max, r.Max)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestByFitnessVarianceValidation(t *testing.T) {
	narrow, enlarge := policyConfigs()

	// Invalid range fails at construction (scenario: min=0.9, max=0.1).
	_, err := ByFitnessVariance(VarianceRange{Min: 0.9, Max: 0.1}, narrow, enlarge)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min 0.9 > max 0.1")

	// Invalid configs also fail at construction, never at round time.
	broken := narrow
	broken.Fitness = nil
	_, err = ByFitnessVariance(VarianceRange{Min: 0.2, Max: 0.8}, broken, enlarge)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "narrow config")

	broken = enlarge
	broken.Mutator = nil
	_, err = ByFitnessVariance(VarianceRange{Min: 0.2, Max: 0.8}, narrow, broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enlarge config")
}

func TestFirstRoundBuildsNarrow(t *testing.T) {
	narrow, enlarge := policyConfigs()
	p, err := ByFitnessVariance(VarianceRange{Min: 0.2, Max: 0.8}, narrow, enlarge)
	require.NoError(t, err)

	assert.Equal(t, 0, p.Rebuilds(), "nothing is built before the first round")

	eng, err := p.Engine(nil)
	require.NoError(t, err)
	require.NotNil(t, eng)
	assert.Equal(t, "narrow", p.Mode())
	assert.Equal(t, 1, p.Rebuilds())
}

func TestHysteresisTransitions(t *testing.T) {
	// Variance readings against range [0.2, 0.8], starting from NARROW
	// after the initial build.
	steps := []struct {
		variance     float64
		wantMode     string
		wantRebuilds int
	}{
		{variance: 0.1, wantMode: "enlarge", wantRebuilds: 2}, // crossing: rebuild
		{variance: 0.1, wantMode: "enlarge", wantRebuilds: 2}, // confirming: reuse
		{variance: 0.9, wantMode: "narrow", wantRebuilds: 3},  // crossing back: rebuild
		{variance: 0.9, wantMode: "narrow", wantRebuilds: 3},  // confirming: reuse
		{variance: 0.5, wantMode: "narrow", wantRebuilds: 3},  // in range: reuse
	}

	narrow, enlarge := policyConfigs()
	p, err := ByFitnessVariance(VarianceRange{Min: 0.2, Max: 0.8}, narrow, enlarge)
	require.NoError(t, err)

	_, err = p.Engine(nil)
	require.NoError(t, err)
	require.Equal(t, 1, p.Rebuilds())

	for i, step := range steps {
		_, err := p.Engine(resultWithVariance(step.variance))
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, step.wantMode, p.Mode(), "step %d", i)
		assert.Equal(t, step.wantRebuilds, p.Rebuilds(), "step %d", i)
	}
}

func TestHysteresisNoThrashInRange(t *testing.T) {
	narrow, enlarge := policyConfigs()
	p, err := ByFitnessVariance(VarianceRange{Min: 0.2, Max: 0.8}, narrow, enlarge)
	require.NoError(t, err)

	first, err := p.Engine(nil)
	require.NoError(t, err)

	// Any sequence of in-range readings leaves state and cached engine
	// untouched.
	for _, v := range []float64{0.2, 0.35, 0.5, 0.65, 0.8} {
		eng, err := p.Engine(resultWithVariance(v))
		require.NoError(t, err)
		assert.Same(t, first, eng, "in-range reading must reuse the cached engine")
	}
	assert.Equal(t, 1, p.Rebuilds())
}

func TestHysteresisWrongDirectionNoRebuild(t *testing.T) {
	narrow, enlarge := policyConfigs()
	p, err := ByFitnessVariance(VarianceRange{Min: 0.2, Max: 0.8}, narrow, enlarge)
	require.NoError(t, err)

	narrowEng, err := p.Engine(nil)
	require.NoError(t, err)

	// Deep out-of-range above max while already NARROW: confirming signal,
	// no rebuild.
	eng, err := p.Engine(resultWithVariance(100))
	require.NoError(t, err)
	assert.Same(t, narrowEng, eng)
	assert.Equal(t, "narrow", p.Mode())

	// Switch to ENLARGE, then deep below min: again confirming.
	enlargeEng, err := p.Engine(resultWithVariance(0.01))
	require.NoError(t, err)
	assert.NotSame(t, narrowEng, enlargeEng)
	require.Equal(t, "enlarge", p.Mode())

	eng, err = p.Engine(resultWithVariance(0.0001))
	require.NoError(t, err)
	assert.Same(t, enlargeEng, eng)
	assert.Equal(t, 2, p.Rebuilds())
}

func TestEmptyPopulationSeeksEnlarge(t *testing.T) {
	narrow, enlarge := policyConfigs()
	p, err := ByFitnessVariance(VarianceRange{Min: 0.2, Max: 0.8}, narrow, enlarge)
	require.NoError(t, err)

	_, err = p.Engine(nil)
	require.NoError(t, err)

	// Empty population: variance is conventionally zero, below min.
	_, err = p.Engine(&evolution.Result{Generation: 1})
	require.NoError(t, err)
	assert.Equal(t, "enlarge", p.Mode())
}

func TestVarianceBoundaryIsInclusive(t *testing.T) {
	narrow, enlarge := policyConfigs()
	p, err := ByFitnessVariance(VarianceRange{Min: 0.2, Max: 0.8}, narrow, enlarge)
	require.NoError(t, err)

	_, err = p.Engine(nil)
	require.NoError(t, err)

	// v == min and v == max are in range: no switch in either mode.
	for _, v := range []float64{0.2, 0.8} {
		_, err := p.Engine(resultWithVariance(v))
		require.NoError(t, err)
		assert.Equal(t, "narrow", p.Mode())
	}
	assert.Equal(t, 1, p.Rebuilds())
}
