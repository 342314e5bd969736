package evolution

import (
	"github.com/evolvekit/evolvekit/internal/stats"
)

// Genotype is the real-vector encoding of one candidate solution.
type Genotype []float64

// Clone returns an independent copy of the genotype.
func (g Genotype) Clone() Genotype {
	return append(Genotype(nil), g...)
}

// Phenotype pairs a genotype with its evaluated fitness. The engine
// maximizes fitness; minimization problems wrap their cost function with
// Minimizing.
type Phenotype struct {
	Genes   Genotype
	Fitness float64
}

// Population is an ordered collection of evaluated phenotypes. Engines keep
// populations sorted by descending fitness.
type Population []Phenotype

// Clone returns a deep copy of the population.
func (p Population) Clone() Population {
	out := make(Population, len(p))
	for i, pt := range p {
		out[i] = Phenotype{Genes: pt.Genes.Clone(), Fitness: pt.Fitness}
	}
	return out
}

// FitnessMoments accumulates the population's fitness values into a
// streaming moments accumulator. The statistics are computed on demand and
// never cached on the population.
func (p Population) FitnessMoments() stats.Moments {
	var m stats.Moments
	for _, pt := range p {
		m.Add(pt.Fitness)
	}
	return m
}

// Best returns the phenotype with the highest fitness, or nil for an empty
// population.
func (p Population) Best() *Phenotype {
	if len(p) == 0 {
		return nil
	}
	best := &p[0]
	for i := 1; i < len(p); i++ {
		if p[i].Fitness > best.Fitness {
			best = &p[i]
		}
	}
	return best
}

// FitnessFunc evaluates the fitness of a genotype. Higher values are better.
type FitnessFunc func(Genotype) (float64, error)

// Minimizing adapts a cost function (lower is better) into a FitnessFunc.
func Minimizing(cost FitnessFunc) FitnessFunc {
	return func(g Genotype) (float64, error) {
		v, err := cost(g)
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
}
