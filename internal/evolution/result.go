package evolution

import (
	"math/rand"

	"github.com/evolvekit/evolvekit/internal/stats"
)

// Start describes where an evolution stream begins: a population and the
// generation index it belongs to. A fresh run starts at generation 0; a
// continuation carries both forward from a previous result, while any
// engine-internal bookkeeping from the previous configuration is dropped.
type Start struct {
	Population Population
	Generation int
}

// Result is the immutable record of one evolved generation: the population
// produced and its generation index. Derived statistics are computed on
// demand, not stored.
type Result struct {
	Generation int
	Population Population
}

// ToStart derives the continuation start state for the next round from this
// result.
func (r *Result) ToStart() Start {
	return Start{
		Population: r.Population.Clone(),
		Generation: r.Generation,
	}
}

// Best returns the fittest phenotype of this generation, or nil if the
// population is empty.
func (r *Result) Best() *Phenotype {
	return r.Population.Best()
}

// FitnessMoments computes the generation's fitness statistics.
func (r *Result) FitnessMoments() stats.Moments {
	return r.Population.FitnessMoments()
}

// NewRandomStart builds a generation-0 start state with size genotypes drawn
// uniformly from the given bounds. The phenotypes are unevaluated; the first
// engine pull evaluates them.
func NewRandomStart(rng *rand.Rand, bounds [][2]float64, size int) Start {
	pop := make(Population, size)
	for i := range pop {
		genes := make(Genotype, len(bounds))
		for j, b := range bounds {
			genes[j] = b[0] + rng.Float64()*(b[1]-b[0])
		}
		pop[i] = Phenotype{Genes: genes}
	}
	return Start{Population: pop, Generation: 0}
}
