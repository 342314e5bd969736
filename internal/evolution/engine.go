// Package evolution implements a pull-driven evolutionary optimization
// engine over real-vector genotypes, along with the operators and stream
// abstractions the adaptive control layer builds on.
package evolution

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config describes one evolutionary algorithm variant. A Config is a cheap,
// immutable description; New compiles it into a runnable Engine, which is the
// expensive step callers should avoid repeating.
type Config struct {
	// Fitness is the function to maximize.
	Fitness FitnessFunc

	// Bounds limit each gene to [min, max].
	Bounds [][2]float64

	// PopulationSize is the number of phenotypes per generation.
	PopulationSize int

	// EliteCount is the number of top phenotypes copied unchanged into the
	// next generation.
	EliteCount int

	// Mutator perturbs offspring genotypes.
	Mutator Mutator

	// Crossover recombines parents into offspring. Optional; when nil,
	// offspring are mutated clones of a single parent.
	Crossover Crossover

	// Selector picks parents from the ranked population. Defaults to a
	// size-3 tournament.
	Selector Selector

	// Limit bounds the number of generations each stream of this engine
	// produces. Zero means unbounded.
	Limit int

	// Workers is the number of goroutines evaluating fitness in parallel.
	Workers int

	// Seed for the engine's random number generator. Zero seeds from the
	// wall clock.
	Seed int64

	// Logger for per-generation diagnostics. Defaults to a nop logger.
	Logger *zap.Logger
}

// Validate checks that the configuration can be built. It is called by New
// and by policy constructors that need to fail fast before any engine is
// built.
func (c *Config) Validate() error {
	if c.Fitness == nil {
		return NewError("fitness function is required").WithComponent("engine")
	}
	if len(c.Bounds) == 0 {
		return NewError("bounds are required").WithComponent("engine")
	}
	for i, b := range c.Bounds {
		if b[0] > b[1] {
			return NewErrorf("bound %d: min %v > max %v", i, b[0], b[1]).WithComponent("engine")
		}
	}
	if c.PopulationSize <= 0 {
		return NewError("population size must be > 0").WithComponent("engine")
	}
	if c.EliteCount < 0 || c.EliteCount >= c.PopulationSize {
		return NewError("elite count must be in [0, population size)").WithComponent("engine")
	}
	if c.Mutator == nil {
		return NewError("mutator is required").WithComponent("engine")
	}
	if c.Limit < 0 {
		return NewError("limit must be >= 0").WithComponent("engine")
	}
	return nil
}

// Engine runs one evolutionary algorithm variant as a sequence of
// generations. Engines are built once and reused; each Stream call starts an
// independent generation sequence. Streams of a single engine share its
// random number generator and must not be pulled concurrently.
type Engine struct {
	cfg    Config
	rng    *rand.Rand
	logger *zap.Logger
}

// New validates the configuration and builds an engine from it.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Selector == nil {
		cfg.Selector = NewTournamentSelector(3)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger,
	}, nil
}

// Stream returns the lazy generation sequence starting from the given start
// state. No evaluation happens until the first pull. The start population is
// evaluated once on the first pull; each pull then breeds and evaluates
// exactly one generation.
func (e *Engine) Stream(start Start) *Stream {
	cur := start.Population.Clone()
	gen := start.Generation
	evaluated := false
	produced := 0

	return NewStream(func(ctx context.Context) (*Result, error) {
		if e.cfg.Limit > 0 && produced >= e.cfg.Limit {
			return nil, nil
		}
		if len(cur) == 0 {
			return nil, NewError("start population is empty").
				WithComponent("engine").
				WithOperation("stream")
		}

		if !evaluated {
			if err := e.evaluate(ctx, cur); err != nil {
				return nil, err
			}
			sortByFitness(cur)
			evaluated = true
		}

		next, err := e.evolve(ctx, cur)
		if err != nil {
			return nil, err
		}
		cur = next
		gen++
		produced++

		e.logger.Debug("generation evolved",
			zap.Int("generation", gen),
			zap.Float64("best_fitness", cur[0].Fitness),
		)

		return &Result{Generation: gen, Population: cur.Clone()}, nil
	})
}

// evolve breeds and evaluates one generation from the ranked population.
func (e *Engine) evolve(ctx context.Context, pop Population) (Population, error) {
	next := make(Population, 0, e.cfg.PopulationSize)
	for i := 0; i < e.cfg.EliteCount && i < len(pop); i++ {
		next = append(next, Phenotype{
			Genes:   pop[i].Genes.Clone(),
			Fitness: pop[i].Fitness,
		})
	}

	offspring := make([]Genotype, 0, e.cfg.PopulationSize-len(next))
	for len(next)+len(offspring) < e.cfg.PopulationSize {
		parent := e.cfg.Selector.Pick(e.rng, pop)

		var genes Genotype
		if e.cfg.Crossover != nil {
			mate := e.cfg.Selector.Pick(e.rng, pop)
			genes = e.cfg.Crossover.Cross(e.rng, parent.Genes, mate.Genes)
		} else {
			genes = parent.Genes.Clone()
		}
		e.cfg.Mutator.Mutate(e.rng, genes, e.cfg.Bounds)
		offspring = append(offspring, genes)
	}

	scored, err := e.evaluateGenotypes(ctx, offspring)
	if err != nil {
		return nil, err
	}
	next = append(next, scored...)
	sortByFitness(next)
	return next, nil
}

// evaluate scores every phenotype of the population in place.
func (e *Engine) evaluate(ctx context.Context, pop Population) error {
	genotypes := make([]Genotype, len(pop))
	for i := range pop {
		genotypes[i] = pop[i].Genes
	}

	scored, err := e.evaluateGenotypes(ctx, genotypes)
	if err != nil {
		return err
	}
	for i := range pop {
		pop[i].Fitness = scored[i].Fitness
	}
	return nil
}

// evaluateGenotypes scores genotypes with a bounded worker pool, preserving
// input order.
func (e *Engine) evaluateGenotypes(ctx context.Context, genotypes []Genotype) (Population, error) {
	type job struct {
		idx   int
		genes Genotype
	}
	type result struct {
		idx     int
		fitness float64
		err     error
	}

	jobs := make(chan job)
	results := make(chan result, len(genotypes))

	workerCount := e.cfg.Workers
	if workerCount > len(genotypes) {
		workerCount = len(genotypes)
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}

				fitness, err := e.cfg.Fitness(j.genes)
				results <- result{idx: j.idx, fitness: fitness, err: err}
			}
		}()
	}

	for i := range genotypes {
		jobs <- job{idx: i, genes: genotypes[i]}
	}
	close(jobs)

	wg.Wait()
	close(results)

	scored := make(Population, len(genotypes))
	for res := range results {
		if res.err != nil {
			return nil, WrapError(res.err, "fitness evaluation failed").
				WithComponent("engine").
				WithOperation("evaluate")
		}
		scored[res.idx] = Phenotype{Genes: genotypes[res.idx], Fitness: res.fitness}
	}
	return scored, nil
}

func sortByFitness(pop Population) {
	sort.SliceStable(pop, func(i, j int) bool {
		return pop[i].Fitness > pop[j].Fitness
	})
}
