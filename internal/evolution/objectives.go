package evolution

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Sphere is the classic convex benchmark cost: the squared distance from the
// origin. Lower is better; wrap with Minimizing when handing it to an engine.
func Sphere(g Genotype) (float64, error) {
	return floats.Dot(g, g), nil
}

// Rastrigin is the standard multimodal benchmark cost with a global minimum
// of 0 at the origin. Lower is better.
func Rastrigin(g Genotype) (float64, error) {
	sum := 10.0 * float64(len(g))
	for _, x := range g {
		sum += x*x - 10*math.Cos(2*math.Pi*x)
	}
	return sum, nil
}
