package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// capacityEpsilon absorbs float rounding in capacity checks.
const capacityEpsilon = 1e-9

// Assignment places one service on one cluster.
type Assignment struct {
	ServiceID string `yaml:"service"`
	Cluster   string `yaml:"cluster"`
}

// ServiceAssignments is a service→cluster mapping in matrix row order. It is
// derived from a PlacementMatrix and never authoritative.
type ServiceAssignments []Assignment

// Map returns the assignments keyed by service ID.
func (a ServiceAssignments) Map() map[string]string {
	out := make(map[string]string, len(a))
	for _, as := range a {
		out[as.ServiceID] = as.Cluster
	}
	return out
}

// ClusterOf returns the cluster a service is assigned to.
func (a ServiceAssignments) ClusterOf(serviceID string) (string, bool) {
	for _, as := range a {
		if as.ServiceID == serviceID {
			return as.Cluster, true
		}
	}
	return "", false
}

// ToAssignmentMap converts a placement matrix into service→cluster
// assignments using ordered service IDs (rows) and cluster names (columns).
// Rows without a 1 are logged and omitted.
func ToAssignmentMap(m PlacementMatrix, serviceIDs, clusterNames []string) (ServiceAssignments, error) {
	if len(m) != len(serviceIDs) {
		return nil, fmt.Errorf("%w: placement has %d rows for %d services", ErrInvalidInput, len(m), len(serviceIDs))
	}
	out := make(ServiceAssignments, 0, len(m))
	for s, row := range m {
		if len(row) != len(clusterNames) {
			return nil, fmt.Errorf("%w: placement row %d has %d columns for %d clusters", ErrInvalidInput, s, len(row), len(clusterNames))
		}
		e := m.ClusterOf(s)
		if e < 0 {
			logrus.Warnf("service %q was not placed on any cluster", serviceIDs[s])
			continue
		}
		out = append(out, Assignment{ServiceID: serviceIDs[s], Cluster: clusterNames[e]})
	}
	return out, nil
}

// Invert groups assignments by cluster. Services keep their relative order
// within each cluster.
func Invert(assignments ServiceAssignments) map[string][]string {
	out := make(map[string][]string)
	for _, as := range assignments {
		out[as.Cluster] = append(out[as.Cluster], as.ServiceID)
	}
	return out
}

// VerifyPlacement checks a matrix against the request it answers: every row
// sums to 1, no cluster exceeds its capacity, and acceleration needs are met.
func VerifyPlacement(req *PlacementRequest, m PlacementMatrix) error {
	if len(m) != len(req.Services) {
		return fmt.Errorf("%w: placement has %d rows for %d services", ErrInvalidInput, len(m), len(req.Services))
	}
	for s, row := range m {
		if len(row) != len(req.Clusters) {
			return fmt.Errorf("%w: placement row %d has %d columns for %d clusters", ErrInvalidInput, s, len(row), len(req.Clusters))
		}
		if sum := m.RowSum(s); sum != 1 {
			return fmt.Errorf("service %d (%s) is placed on %d clusters", s, req.Services[s].ID, sum)
		}
		e := m.ClusterOf(s)
		if req.Services[s].NeedsAcceleration && !req.Clusters[e].HasAcceleration {
			return fmt.Errorf("service %d (%s) needs acceleration but cluster %s has none", s, req.Services[s].ID, req.Clusters[e].Name)
		}
	}
	for e, used := range m.ClusterUsage(req.Services, len(req.Clusters)) {
		if used > req.Clusters[e].Capacity+capacityEpsilon {
			return fmt.Errorf("cluster %s over capacity: %.2f > %.2f", req.Clusters[e].Name, used, req.Clusters[e].Capacity)
		}
	}
	return nil
}
