package engine

import "fmt"

// Cluster is one member of the federated fabric. Its position in a slice is
// its column in a PlacementMatrix.
type Cluster struct {
	Name            string  `yaml:"name"`
	Capacity        float64 `yaml:"capacity"` // CPU cores
	HasAcceleration bool    `yaml:"acceleration"`
	CarbonCost      float64 `yaml:"carbon_cost"` // only read by carbon-aware strategies
}

// Service is one workload of an application graph. Its position in a slice is
// its row in a PlacementMatrix.
type Service struct {
	ID                string  `yaml:"id"`
	CPULimit          float64 `yaml:"cpu"` // per-replica cores
	Replicas          int     `yaml:"replicas"`
	NeedsAcceleration bool    `yaml:"acceleration"`
}

// Demand is the total CPU the service occupies on its cluster.
func (s Service) Demand() float64 {
	return s.CPULimit * float64(s.Replicas)
}

// PlacementMatrix is a numServices × numClusters binary matrix: m[s][e] == 1
// places service s on cluster e. In a valid placement every row sums to 1.
type PlacementMatrix [][]int

// NewPlacementMatrix returns an all-zero matrix.
func NewPlacementMatrix(services, clusters int) PlacementMatrix {
	m := make(PlacementMatrix, services)
	for s := range m {
		m[s] = make([]int, clusters)
	}
	return m
}

// Dims returns (rows, columns). Columns is 0 for an empty matrix.
func (m PlacementMatrix) Dims() (int, int) {
	if len(m) == 0 {
		return 0, 0
	}
	return len(m), len(m[0])
}

// Clone returns a deep copy.
func (m PlacementMatrix) Clone() PlacementMatrix {
	if m == nil {
		return nil
	}
	out := make(PlacementMatrix, len(m))
	for s, row := range m {
		out[s] = append([]int(nil), row...)
	}
	return out
}

// RowSum returns the number of clusters service s is placed on.
func (m PlacementMatrix) RowSum(s int) int {
	sum := 0
	for _, v := range m[s] {
		sum += v
	}
	return sum
}

// ClusterOf returns the column holding a 1 in row s, or -1.
func (m PlacementMatrix) ClusterOf(s int) int {
	for e, v := range m[s] {
		if v == 1 {
			return e
		}
	}
	return -1
}

// ClusterUsage returns the CPU demand placed on each of numClusters clusters.
func (m PlacementMatrix) ClusterUsage(services []Service, numClusters int) []float64 {
	usage := make([]float64, numClusters)
	for s, row := range m {
		for e, v := range row {
			if v == 1 && e < numClusters && s < len(services) {
				usage[e] += services[s].Demand()
			}
		}
	}
	return usage
}

// PlacementRequest is the per-call input to a PlacementStrategy. Current is
// only read by re-optimization strategies and is never modified.
type PlacementRequest struct {
	Clusters []Cluster
	Services []Service
	Current  PlacementMatrix
}

// ServiceIDs returns service IDs in row order.
func (r *PlacementRequest) ServiceIDs() []string {
	ids := make([]string, len(r.Services))
	for i, s := range r.Services {
		ids[i] = s.ID
	}
	return ids
}

// ClusterNames returns cluster names in column order.
func (r *PlacementRequest) ClusterNames() []string {
	names := make([]string, len(r.Clusters))
	for i, c := range r.Clusters {
		names[i] = c.Name
	}
	return names
}

// NewPlacementRequest assembles a request from the parallel lists the
// inventory and workload collaborators supply. All per-cluster lists must have
// the same length, as must all per-service lists; carbonCosts may be nil.
func NewPlacementRequest(capacities []float64, clusterAccel []bool, carbonCosts []float64,
	cpuLimits []float64, accel []bool, replicas []int, current PlacementMatrix) (*PlacementRequest, error) {
	if len(clusterAccel) != len(capacities) {
		return nil, fmt.Errorf("%w: %d cluster acceleration flags for %d clusters", ErrInvalidInput, len(clusterAccel), len(capacities))
	}
	if carbonCosts != nil && len(carbonCosts) != len(capacities) {
		return nil, fmt.Errorf("%w: %d carbon costs for %d clusters", ErrInvalidInput, len(carbonCosts), len(capacities))
	}
	if len(accel) != len(cpuLimits) || len(replicas) != len(cpuLimits) {
		return nil, fmt.Errorf("%w: service lists differ in length (cpu=%d, acceleration=%d, replicas=%d)",
			ErrInvalidInput, len(cpuLimits), len(accel), len(replicas))
	}
	req := &PlacementRequest{
		Clusters: make([]Cluster, len(capacities)),
		Services: make([]Service, len(cpuLimits)),
		Current:  current,
	}
	for e := range capacities {
		req.Clusters[e] = Cluster{Name: fmt.Sprintf("cluster-%d", e), Capacity: capacities[e], HasAcceleration: clusterAccel[e]}
		if carbonCosts != nil {
			req.Clusters[e].CarbonCost = carbonCosts[e]
		}
	}
	for s := range cpuLimits {
		req.Services[s] = Service{ID: fmt.Sprintf("service-%d", s), CPULimit: cpuLimits[s], Replicas: replicas[s], NeedsAcceleration: accel[s]}
	}
	return req, nil
}
