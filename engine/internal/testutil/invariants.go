// Package testutil provides shared test infrastructure for the placement engine.
// It works on plain slices so engine/ tests can import it without a cycle.
package testutil

import (
	"math/rand"
	"testing"
)

// CapacityEpsilon is the tolerance of the capacity invariant.
const CapacityEpsilon = 1e-9

// AssertRowsSumToOne fails the test if any row of m does not hold exactly one 1.
func AssertRowsSumToOne(t *testing.T, m [][]int) {
	t.Helper()
	for s, row := range m {
		sum := 0
		for _, v := range row {
			if v != 0 && v != 1 {
				t.Errorf("row %d: non-binary entry %d", s, v)
			}
			sum += v
		}
		if sum != 1 {
			t.Errorf("row %d sums to %d, want 1", s, sum)
		}
	}
}

// AssertWithinCapacity fails the test if Σ_s m[s][e]·demand[s] exceeds capacity[e].
func AssertWithinCapacity(t *testing.T, m [][]int, demands, capacities []float64) {
	t.Helper()
	usage := make([]float64, len(capacities))
	for s, row := range m {
		for e, v := range row {
			usage[e] += float64(v) * demands[s]
		}
	}
	for e, u := range usage {
		if u > capacities[e]+CapacityEpsilon {
			t.Errorf("cluster %d over capacity: %.4f > %.4f", e, u, capacities[e])
		}
	}
}

// AssertAccelerationMet fails the test if a service needing acceleration sits
// on a cluster without it.
func AssertAccelerationMet(t *testing.T, m [][]int, needs, has []bool) {
	t.Helper()
	for s, row := range m {
		for e, v := range row {
			if v == 1 && needs[s] && !has[e] {
				t.Errorf("service %d needs acceleration but cluster %d has none", s, e)
			}
		}
	}
}

// Instance is a randomly generated placement input in parallel-list form.
type Instance struct {
	Capacities   []float64
	ClusterAccel []bool
	CarbonCosts  []float64
	CPULimits    []float64
	Accel        []bool
	Replicas     []int
}

// Demands returns cpu·replicas per service.
func (in Instance) Demands() []float64 {
	d := make([]float64, len(in.CPULimits))
	for s := range d {
		d[s] = in.CPULimits[s] * float64(in.Replicas[s])
	}
	return d
}

// RandomInstance draws a small instance from a seeded source. CPU limits come
// from the light/small/medium/large classes; cluster 0 always has acceleration.
func RandomInstance(seed int64, services, clusters int) Instance {
	rng := rand.New(rand.NewSource(seed))
	classes := []float64{0.5, 1, 4, 8}
	in := Instance{
		Capacities:   make([]float64, clusters),
		ClusterAccel: make([]bool, clusters),
		CarbonCosts:  make([]float64, clusters),
		CPULimits:    make([]float64, services),
		Accel:        make([]bool, services),
		Replicas:     make([]int, services),
	}
	for e := 0; e < clusters; e++ {
		in.Capacities[e] = float64(8 + rng.Intn(25))
		in.ClusterAccel[e] = e == 0 || rng.Intn(3) == 0
		in.CarbonCosts[e] = float64(rng.Intn(5)) / 4
	}
	for s := 0; s < services; s++ {
		in.CPULimits[s] = classes[rng.Intn(len(classes)-1)]
		in.Replicas[s] = 1 + rng.Intn(2)
		in.Accel[s] = rng.Intn(5) == 0
	}
	return in
}
