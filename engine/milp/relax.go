package milp

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

type row struct {
	coeffs map[int]float64
	sense  Sense
	rhs    float64
}

// relaxation solves the LP relaxation of p with variable bounds overridden by
// lo/hi. Variables are shifted to y = x - lo so the LP is in gonum's standard
// form (A y = b, y >= 0); inequality rows and finite upper bounds get one
// slack column each.
func relaxation(p *Problem, lo, hi []float64, tol float64) ([]float64, Status) {
	n := len(p.Vars)
	for j := 0; j < n; j++ {
		if hi[j] < lo[j]-tol {
			return nil, StatusInfeasible
		}
	}

	rows := make([]row, 0, len(p.Constraints)+n)
	used := make([]bool, n)

	for _, c := range p.Constraints {
		rhs := c.RHS
		coeffs := make(map[int]float64, len(c.Coeffs))
		for j, a := range c.Coeffs {
			rhs -= a * lo[j]
			if hi[j]-lo[j] <= tol {
				// Fixed variable: fold into the RHS.
				rhs -= a * (hi[j] - lo[j])
				continue
			}
			coeffs[j] = a
		}
		if len(coeffs) == 0 {
			if !satisfied(0, c.Sense, rhs, tol) {
				return nil, StatusInfeasible
			}
			continue
		}
		for j := range coeffs {
			used[j] = true
		}
		rows = append(rows, row{coeffs: coeffs, sense: c.Sense, rhs: rhs})
	}
	implied := impliedBounds(rows, n)
	for j := 0; j < n; j++ {
		width := hi[j] - lo[j]
		if width <= tol || math.IsInf(hi[j], 1) || !used[j] || implied[j] <= width+tol {
			continue
		}
		rows = append(rows, row{coeffs: map[int]float64{j: 1}, sense: LE, rhs: width})
	}

	// Columns that appear in no row sit at a bound chosen by the sign of their cost.
	x := make([]float64, n)
	cols := make([]int, 0, n) // LP column -> variable index
	colOf := make([]int, n)
	for j := 0; j < n; j++ {
		colOf[j] = -1
		switch {
		case hi[j]-lo[j] <= tol:
			x[j] = hi[j]
		case used[j]:
			colOf[j] = len(cols)
			cols = append(cols, j)
		case p.Vars[j].Cost < 0:
			if math.IsInf(hi[j], 1) {
				return nil, StatusUnbounded
			}
			x[j] = hi[j]
		default:
			x[j] = lo[j]
		}
	}
	if len(rows) == 0 {
		return x, StatusOptimal
	}

	slacks := 0
	for _, r := range rows {
		if r.sense != EQ {
			slacks++
		}
	}
	m, width := len(rows), len(cols)+slacks
	if m > width {
		return nil, StatusNumerical
	}

	a := mat.NewDense(m, width, nil)
	b := make([]float64, m)
	slack := len(cols)
	for i, r := range rows {
		sign := 1.0
		if r.rhs < 0 {
			sign = -1
		}
		for j, v := range r.coeffs {
			a.Set(i, colOf[j], sign*v)
		}
		switch r.sense {
		case LE:
			a.Set(i, slack, sign)
			slack++
		case GE:
			a.Set(i, slack, -sign)
			slack++
		}
		b[i] = sign * r.rhs
	}
	c := make([]float64, width)
	for k, j := range cols {
		c[k] = p.Vars[j].Cost
	}

	_, y, err := lp.Simplex(c, a, b, tol, nil)
	if err != nil {
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return nil, StatusInfeasible
		case errors.Is(err, lp.ErrUnbounded):
			return nil, StatusUnbounded
		default:
			return nil, StatusNumerical
		}
	}
	for k, j := range cols {
		x[j] = lo[j] + y[k]
	}
	return x, StatusOptimal
}

// impliedBounds returns, per shifted variable, the tightest upper bound some
// row already enforces. A LE or EQ row whose coefficients are all positive
// caps each of its non-negative variables at rhs/a, so assignment rows make
// explicit 0/1 bound rows redundant.
func impliedBounds(rows []row, n int) []float64 {
	implied := make([]float64, n)
	for j := range implied {
		implied[j] = math.Inf(1)
	}
	for _, r := range rows {
		if r.sense == GE || !allPositive(r.coeffs) {
			continue
		}
		for j, a := range r.coeffs {
			implied[j] = math.Min(implied[j], r.rhs/a)
		}
	}
	return implied
}

func allPositive(coeffs map[int]float64) bool {
	for _, a := range coeffs {
		if a <= 0 {
			return false
		}
	}
	return true
}
