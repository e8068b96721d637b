// Package milp models small mixed-integer linear programs and solves them by
// depth-first branch-and-bound over gonum's Simplex LP solver.
// This package has no dependencies on engine/; it works on plain indices.
package milp

import (
	"fmt"
	"math"
)

// Sense is the relation between a constraint's left-hand side and its RHS.
type Sense int

const (
	// LE is Σ a·x <= rhs.
	LE Sense = iota
	// GE is Σ a·x >= rhs.
	GE
	// EQ is Σ a·x == rhs.
	EQ
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	case EQ:
		return "=="
	default:
		return fmt.Sprintf("Sense(%d)", int(s))
	}
}

// Var is a decision variable. Lower must be finite; Upper may be +Inf.
type Var struct {
	Name    string
	Lower   float64
	Upper   float64
	Integer bool
	Cost    float64 // objective coefficient (minimized)
}

// Constraint is a single linear row keyed by variable index.
type Constraint struct {
	Name   string
	Coeffs map[int]float64
	Sense  Sense
	RHS    float64
}

// Problem is a minimization MILP: min Σ cost·x + Offset subject to Constraints
// and per-variable bounds.
//
// Start, when set, is a known feasible point. Solve uses it as the first
// incumbent, so only strictly better nodes are explored.
type Problem struct {
	Vars        []Var
	Constraints []Constraint
	Offset      float64
	Start       []float64
}

// AddVar appends a variable and returns its index.
func (p *Problem) AddVar(v Var) int {
	p.Vars = append(p.Vars, v)
	return len(p.Vars) - 1
}

// AddBinary appends a {0,1} integer variable with the given cost.
func (p *Problem) AddBinary(name string, cost float64) int {
	return p.AddVar(Var{Name: name, Lower: 0, Upper: 1, Integer: true, Cost: cost})
}

// AddConstraint appends a row. Zero coefficients are dropped.
func (p *Problem) AddConstraint(name string, coeffs map[int]float64, sense Sense, rhs float64) {
	row := make(map[int]float64, len(coeffs))
	for j, a := range coeffs {
		if a != 0 {
			row[j] = a
		}
	}
	p.Constraints = append(p.Constraints, Constraint{Name: name, Coeffs: row, Sense: sense, RHS: rhs})
}

// Validate checks variable bounds and constraint indices.
func (p *Problem) Validate() error {
	for j, v := range p.Vars {
		if math.IsInf(v.Lower, 0) || math.IsNaN(v.Lower) {
			return fmt.Errorf("variable %d (%s): lower bound must be finite, got %v", j, v.Name, v.Lower)
		}
		if math.IsNaN(v.Upper) || v.Upper < v.Lower {
			return fmt.Errorf("variable %d (%s): upper bound %v below lower bound %v", j, v.Name, v.Upper, v.Lower)
		}
		if math.IsNaN(v.Cost) || math.IsInf(v.Cost, 0) {
			return fmt.Errorf("variable %d (%s): cost must be finite, got %v", j, v.Name, v.Cost)
		}
	}
	for i, c := range p.Constraints {
		for j, a := range c.Coeffs {
			if j < 0 || j >= len(p.Vars) {
				return fmt.Errorf("constraint %d (%s): unknown variable index %d", i, c.Name, j)
			}
			if math.IsNaN(a) || math.IsInf(a, 0) {
				return fmt.Errorf("constraint %d (%s): coefficient for %d must be finite", i, c.Name, j)
			}
		}
		if math.IsNaN(c.RHS) || math.IsInf(c.RHS, 0) {
			return fmt.Errorf("constraint %d (%s): rhs must be finite", i, c.Name)
		}
	}
	return nil
}

// Evaluate returns the objective value of x, including Offset.
func (p *Problem) Evaluate(x []float64) float64 {
	obj := p.Offset
	for j, v := range p.Vars {
		obj += v.Cost * x[j]
	}
	return obj
}

// Feasible reports whether x satisfies every bound and row within tol.
func (p *Problem) Feasible(x []float64, tol float64) bool {
	if len(x) != len(p.Vars) {
		return false
	}
	for j, v := range p.Vars {
		if x[j] < v.Lower-tol || x[j] > v.Upper+tol {
			return false
		}
	}
	for _, c := range p.Constraints {
		lhs := 0.0
		for j, a := range c.Coeffs {
			lhs += a * x[j]
		}
		if !satisfied(lhs, c.Sense, c.RHS, tol) {
			return false
		}
	}
	return true
}

func satisfied(lhs float64, sense Sense, rhs, tol float64) bool {
	switch sense {
	case LE:
		return lhs <= rhs+tol
	case GE:
		return lhs >= rhs-tol
	default:
		return math.Abs(lhs-rhs) <= tol
	}
}
