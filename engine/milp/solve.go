package milp

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// Status is the termination state of a solve.
type Status string

const (
	// StatusOptimal means the returned point is proven optimal within tolerance.
	StatusOptimal Status = "optimal"
	// StatusInfeasible means no point satisfies the constraints.
	StatusInfeasible Status = "infeasible"
	// StatusUnbounded means the objective decreases without limit.
	StatusUnbounded Status = "unbounded"
	// StatusNodeLimit means the branch-and-bound node budget ran out.
	StatusNodeLimit Status = "node_limit"
	// StatusTimeLimit means the wall-clock budget ran out.
	StatusTimeLimit Status = "time_limit"
	// StatusNumerical means the LP solver failed on an ill-conditioned basis.
	StatusNumerical Status = "numerical_failure"
	// StatusInvalid means the problem failed Validate.
	StatusInvalid Status = "invalid"
)

// Options bounds the solver's work. Zero limits mean unlimited.
type Options struct {
	TimeLimit      time.Duration
	NodeLimit      int
	Tolerance      float64 // simplex reduced-cost and feasibility tolerance
	IntegralityTol float64 // distance from an integer still treated as integral
}

// DefaultTimeLimit bounds a solve built from DefaultOptions.
const DefaultTimeLimit = 30 * time.Second

// DefaultOptions returns the tolerances used when Options fields are zero,
// with finite node and time budgets.
func DefaultOptions() Options {
	return Options{
		TimeLimit:      DefaultTimeLimit,
		NodeLimit:      100000,
		Tolerance:      1e-10,
		IntegralityTol: 1e-6,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.IntegralityTol <= 0 {
		o.IntegralityTol = d.IntegralityTol
	}
	return o
}

// Result is the outcome of Solve. X and Objective are only meaningful when
// Status is StatusOptimal; on a limit they hold the best incumbent, if any.
type Result struct {
	Status    Status
	X         []float64
	Objective float64
	Nodes     int
}

type node struct {
	lo, hi []float64
}

// Solve minimizes p by depth-first branch-and-bound. Each node solves an LP
// relaxation; the most fractional integer variable is split into a floor and a
// ceiling child and nodes whose relaxation cannot beat the incumbent are pruned.
func Solve(p *Problem, opts Options) Result {
	if err := p.Validate(); err != nil {
		logrus.Debugf("milp: invalid problem: %v", err)
		return Result{Status: StatusInvalid}
	}
	opts = opts.withDefaults()
	n := len(p.Vars)

	root := node{lo: make([]float64, n), hi: make([]float64, n)}
	for j, v := range p.Vars {
		root.lo[j], root.hi[j] = v.Lower, v.Upper
		if v.Integer {
			root.lo[j] = math.Ceil(v.Lower - opts.IntegralityTol)
			if !math.IsInf(v.Upper, 1) {
				root.hi[j] = math.Floor(v.Upper + opts.IntegralityTol)
			}
		}
	}

	start := time.Now()
	stack := []node{root}
	best := math.Inf(1)
	var incumbent []float64
	if start := feasibleStart(p, opts); start != nil {
		best, incumbent = p.Evaluate(start), start
	}
	nodes := 0
	limit := Status("")

	for len(stack) > 0 {
		if opts.NodeLimit > 0 && nodes >= opts.NodeLimit {
			limit = StatusNodeLimit
			break
		}
		if opts.TimeLimit > 0 && time.Since(start) > opts.TimeLimit {
			limit = StatusTimeLimit
			break
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		x, st := relaxation(p, nd.lo, nd.hi, opts.Tolerance)
		switch st {
		case StatusInfeasible:
			continue
		case StatusUnbounded, StatusNumerical:
			logrus.Debugf("milp: relaxation at node %d returned %s", nodes, st)
			return Result{Status: st, Nodes: nodes}
		}
		obj := p.Evaluate(x)
		if obj >= best-pruneGap(best) {
			continue
		}

		j := mostFractional(p, x, opts.IntegralityTol)
		if j < 0 {
			best = obj
			incumbent = x
			continue
		}

		down := node{lo: clone(nd.lo), hi: clone(nd.hi)}
		down.hi[j] = math.Floor(x[j])
		up := node{lo: clone(nd.lo), hi: clone(nd.hi)}
		up.lo[j] = math.Ceil(x[j])
		// The child nearer to the relaxed value is explored first.
		if x[j]-math.Floor(x[j]) >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	if incumbent != nil {
		for j, v := range p.Vars {
			if v.Integer {
				incumbent[j] = math.Round(incumbent[j])
			}
		}
	}
	if limit != "" {
		logrus.Debugf("milp: stopped after %d nodes (%s)", nodes, limit)
		res := Result{Status: limit, Nodes: nodes, X: incumbent}
		if incumbent != nil {
			res.Objective = p.Evaluate(incumbent)
		}
		return res
	}
	if incumbent == nil {
		return Result{Status: StatusInfeasible, Nodes: nodes}
	}
	return Result{Status: StatusOptimal, X: incumbent, Objective: p.Evaluate(incumbent), Nodes: nodes}
}

// feasibleStart returns a copy of p.Start when it is integral on integer
// variables and satisfies every bound and row; otherwise nil.
func feasibleStart(p *Problem, opts Options) []float64 {
	if p.Start == nil {
		return nil
	}
	if !p.Feasible(p.Start, opts.Tolerance*1e3) {
		logrus.Debugf("milp: ignoring infeasible start point")
		return nil
	}
	for j, v := range p.Vars {
		if v.Integer && math.Abs(p.Start[j]-math.Round(p.Start[j])) > opts.IntegralityTol {
			logrus.Debugf("milp: ignoring fractional start point")
			return nil
		}
	}
	return clone(p.Start)
}

func pruneGap(best float64) float64 {
	if math.IsInf(best, 1) {
		return 0
	}
	return 1e-9 * math.Max(1, math.Abs(best))
}

// mostFractional returns the integer variable furthest from an integer value,
// or -1 when x is integral.
func mostFractional(p *Problem, x []float64, tol float64) int {
	idx, worst := -1, tol
	for j, v := range p.Vars {
		if !v.Integer {
			continue
		}
		f := x[j] - math.Floor(x[j])
		d := math.Min(f, 1-f)
		if d > worst {
			idx, worst = j, d
		}
	}
	return idx
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
