package adaptive

import (
	"math"

	"go.uber.org/zap"

	"github.com/evolvekit/evolvekit/internal/evolution"
)

// VarianceRange is the target band for the population's fitness variance.
type VarianceRange struct {
	Min float64
	Max float64
}

// NewVarianceRange validates and creates a variance range. Both bounds must
// be finite, non-negative and ordered.
func NewVarianceRange(min, max float64) (VarianceRange, error) {
	if math.IsNaN(min) || math.IsInf(min, 0) || math.IsNaN(max) || math.IsInf(max, 0) {
		return VarianceRange{}, evolution.NewErrorf("variance range must be finite, got [%v, %v]", min, max).
			WithComponent("adaptive")
	}
	if min < 0 {
		return VarianceRange{}, evolution.NewErrorf("variance range min must be >= 0, got %v", min).
			WithComponent("adaptive")
	}
	if min > max {
		return VarianceRange{}, evolution.NewErrorf("invalid variance range: min %v > max %v", min, max).
			WithComponent("adaptive")
	}
	return VarianceRange{Min: min, Max: max}, nil
}

// mode is the hysteresis regime the policy is currently in.
type mode int

const (
	// modeNarrow runs the exploitative configuration.
	modeNarrow mode = iota
	// modeEnlarge runs the explorative configuration.
	modeEnlarge
)

func (m mode) String() string {
	if m == modeEnlarge {
		return "enlarge"
	}
	return "narrow"
}

// VariancePolicy keeps the population's fitness variance inside a target
// range by toggling between a narrow (exploitative) and an enlarge
// (explorative) engine configuration.
//
// The policy is hysteretic: an engine is only rebuilt on a threshold
// crossing in the direction that requires the other configuration. Readings
// that merely confirm the current regime, including in-range readings and
// out-of-range readings on the regime's own side, reuse the cached engine.
// This suppresses oscillation on a noisy variance signal and keeps the
// expensive engine build to at most one per actual switch.
//
// A VariancePolicy owns its state exclusively and must not drive more than
// one stream.
type VariancePolicy struct {
	variance VarianceRange
	narrow   evolution.Config
	enlarge  evolution.Config
	logger   *zap.Logger

	mode     mode
	cached   *evolution.Engine
	rebuilds int
}

// ByFitnessVariance creates a variance-hysteresis policy from the target
// range and the two engine configurations. Both configurations are validated
// here so that engine building can only fail for environmental reasons, not
// bad arguments; no engine is built until the first round.
func ByFitnessVariance(variance VarianceRange, narrow, enlarge evolution.Config) (*VariancePolicy, error) {
	if _, err := NewVarianceRange(variance.Min, variance.Max); err != nil {
		return nil, err
	}
	if err := narrow.Validate(); err != nil {
		return nil, evolution.WrapError(err, "narrow config").WithComponent("adaptive")
	}
	if err := enlarge.Validate(); err != nil {
		return nil, evolution.WrapError(err, "enlarge config").WithComponent("adaptive")
	}

	logger := narrow.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &VariancePolicy{
		variance: variance,
		narrow:   narrow,
		enlarge:  enlarge,
		logger:   logger,
	}, nil
}

// Engine implements Policy. The first call builds and caches the narrow
// engine. Later calls compute the previous population's fitness variance in
// one streaming pass and either reuse the cached engine or switch regimes.
func (p *VariancePolicy) Engine(prev *evolution.Result) (evolution.Streamer, error) {
	if prev == nil {
		return p.rebuild(modeNarrow)
	}

	// An empty population carries no dispersion signal; by convention its
	// variance is zero, which reads as collapsed diversity and pushes
	// toward the explorative regime.
	moments := prev.FitnessMoments()
	v := moments.Variance()

	switch {
	case v < p.variance.Min:
		if p.mode == modeNarrow {
			return p.rebuild(modeEnlarge)
		}
	case v > p.variance.Max:
		if p.mode == modeEnlarge {
			return p.rebuild(modeNarrow)
		}
	}
	return p.cached, nil
}

// Rebuilds returns how many times the policy has built an engine, including
// the initial build.
func (p *VariancePolicy) Rebuilds() int {
	return p.rebuilds
}

// Mode returns the current regime as "narrow" or "enlarge".
func (p *VariancePolicy) Mode() string {
	return p.mode.String()
}

// rebuild builds the engine for the given regime and caches it. The cached
// engine always reflects the current mode; the previously cached engine
// becomes collectable once nothing else references it.
func (p *VariancePolicy) rebuild(m mode) (*evolution.Engine, error) {
	cfg := p.narrow
	if m == modeEnlarge {
		cfg = p.enlarge
	}

	eng, err := evolution.New(cfg)
	if err != nil {
		return nil, err
	}

	p.mode = m
	p.cached = eng
	p.rebuilds++

	p.logger.Info("engine regime switched",
		zap.String("mode", m.String()),
		zap.Int("rebuilds", p.rebuilds),
	)
	return eng, nil
}
