package evolution

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/evolvekit/evolvekit/internal/intbuf"
)

// Mutator perturbs a genotype in place. Implementations must keep genes
// within the given bounds.
type Mutator interface {
	Mutate(rng *rand.Rand, genes Genotype, bounds [][2]float64)
}

// Crossover recombines two parent genotypes into one child genotype.
type Crossover interface {
	Cross(rng *rand.Rand, a, b Genotype) Genotype
}

// Selector picks one parent from an evaluated population. The population is
// sorted by descending fitness when the selector is invoked.
type Selector interface {
	Pick(rng *rand.Rand, pop Population) *Phenotype
}

// GaussianMutator perturbs each gene with the given probability by a normal
// step. A small sigma gives a narrow, exploitative search; a large sigma an
// explorative one.
type GaussianMutator struct {
	// Rate is the per-gene mutation probability in [0, 1].
	Rate float64
	// Sigma is the standard deviation of the mutation step.
	Sigma float64
}

// NewGaussianMutator creates a Gaussian mutator with the given per-gene rate
// and step deviation.
func NewGaussianMutator(rate, sigma float64) *GaussianMutator {
	if rate < 0 || rate > 1 {
		panic(fmt.Sprintf("mutation rate must be in [0, 1], got %v", rate))
	}
	if sigma <= 0 {
		panic(fmt.Sprintf("sigma must be positive, got %v", sigma))
	}
	return &GaussianMutator{Rate: rate, Sigma: sigma}
}

// Mutate implements Mutator.
func (m *GaussianMutator) Mutate(rng *rand.Rand, genes Genotype, bounds [][2]float64) {
	normal := distuv.Normal{Mu: 0, Sigma: m.Sigma}
	for j := range genes {
		if rng.Float64() >= m.Rate {
			continue
		}

		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		genes[j] += normal.Quantile(u)

		if j < len(bounds) {
			genes[j] = math.Max(bounds[j][0], math.Min(genes[j], bounds[j][1]))
		}
	}
}

// BlendCrossover implements BLX-alpha recombination: each child gene is drawn
// uniformly from the parents' gene interval extended by Alpha on both sides.
type BlendCrossover struct {
	// Alpha controls how far outside the parents' interval a child gene may
	// fall. Zero restricts children to the interval itself.
	Alpha float64
}

// NewBlendCrossover creates a blend crossover with the given extension factor.
func NewBlendCrossover(alpha float64) *BlendCrossover {
	if alpha < 0 {
		panic(fmt.Sprintf("alpha must be non-negative, got %v", alpha))
	}
	return &BlendCrossover{Alpha: alpha}
}

// Cross implements Crossover.
func (c *BlendCrossover) Cross(rng *rand.Rand, a, b Genotype) Genotype {
	child := make(Genotype, len(a))
	for j := range a {
		lo := math.Min(a[j], b[j])
		hi := math.Max(a[j], b[j])
		d := (hi - lo) * c.Alpha
		lo -= d
		hi += d
		child[j] = lo + rng.Float64()*(hi-lo)
	}
	return child
}

// TournamentSelector picks the fittest of Size randomly drawn contenders.
type TournamentSelector struct {
	// Size is the number of contenders per tournament.
	Size int
}

// NewTournamentSelector creates a tournament selector with the given
// tournament size.
func NewTournamentSelector(size int) *TournamentSelector {
	if size < 1 {
		panic(fmt.Sprintf("tournament size must be >= 1, got %d", size))
	}
	return &TournamentSelector{Size: size}
}

// Pick implements Selector.
func (s *TournamentSelector) Pick(rng *rand.Rand, pop Population) *Phenotype {
	contenders := intbuf.NewListCap(s.Size)
	for i := 0; i < s.Size; i++ {
		contenders.Add(rng.Intn(len(pop)))
	}

	best := contenders.Get(0)
	contenders.ForEach(func(idx int) {
		if pop[idx].Fitness > pop[best].Fitness {
			best = idx
		}
	})
	return &pop[best]
}

// RouletteWheelSelector picks a parent with probability proportional to its
// fitness. Fitness values are shifted so the smallest weight is positive,
// which keeps the wheel well-defined for non-positive fitness.
type RouletteWheelSelector struct{}

// Pick implements Selector.
func (RouletteWheelSelector) Pick(rng *rand.Rand, pop Population) *Phenotype {
	minFitness := pop[0].Fitness
	for _, pt := range pop {
		if pt.Fitness < minFitness {
			minFitness = pt.Fitness
		}
	}

	shift := 0.0
	if minFitness <= 0 {
		shift = -minFitness + 1e-9
	}

	total := 0.0
	for _, pt := range pop {
		total += pt.Fitness + shift
	}

	pick := rng.Float64() * total
	acc := 0.0
	for i := range pop {
		acc += pop[i].Fitness + shift
		if pick <= acc {
			return &pop[i]
		}
	}
	return &pop[len(pop)-1]
}
