package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// tau replaces a non-positive curvature in the two-variable sub-problem
const tau = 1e-12

// SolverOptions bounds the SMO optimisation
type SolverOptions struct {
	Tolerance     float64
	MaxIterations int
}

// SVR is a fitted epsilon-support vector regressor
type SVR struct {
	Params     Params
	gamma      float64
	support    [][]float64
	coef       []float64
	rho        float64
	Iterations int
	Converged  bool
}

// FitSVR trains an epsilon-SVR on X (one sample per row) and y using
// sequential minimal optimisation over the 2n dual variables.
func FitSVR(X *mat.Dense, y []float64, p Params, opts SolverOptions) (*SVR, error) {
	if X == nil {
		return nil, fmt.Errorf("%w: empty training set", ErrDegenerateInput)
	}
	l, _ := X.Dims()
	if l == 0 || l != len(y) {
		return nil, fmt.Errorf("%w: %d samples, %d targets", ErrDegenerateInput, l, len(y))
	}
	if err := validateParams("params", p); err != nil {
		return nil, err
	}
	if !allFinite(y) {
		return nil, fmt.Errorf("%w: non-finite target", ErrDegenerateInput)
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-3
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 100000
	}

	m := &SVR{Params: p, gamma: resolveGamma(p.Gamma, X)}
	rows := make([][]float64, l)
	for i := range rows {
		rows[i] = X.RawRowView(i)
		if !allFinite(rows[i]) {
			return nil, fmt.Errorf("%w: non-finite feature in row %d", ErrDegenerateInput, i)
		}
	}

	K := mat.NewSymDense(l, nil)
	for i := 0; i < l; i++ {
		for j := i; j < l; j++ {
			K.SetSym(i, j, m.kernel(rows[i], rows[j]))
		}
	}

	n := 2 * l
	alpha := make([]float64, n)
	sign := make([]float64, n)
	grad := make([]float64, n)
	for i := 0; i < l; i++ {
		sign[i], sign[i+l] = 1, -1
		grad[i] = p.Epsilon - y[i]
		grad[i+l] = p.Epsilon + y[i]
	}
	sample := func(t int) int {
		if t < l {
			return t
		}
		return t - l
	}
	q := func(s, t int) float64 {
		return sign[s] * sign[t] * K.At(sample(s), sample(t))
	}
	C := p.C

	for m.Iterations = 0; m.Iterations < opts.MaxIterations; m.Iterations++ {
		i, j, ok := selectWorkingSet(alpha, sign, grad, C, opts.Tolerance)
		if !ok {
			m.Converged = true
			break
		}
		oldI, oldJ := alpha[i], alpha[j]
		qii, qjj, qij := q(i, i), q(j, j), q(i, j)

		if sign[i] != sign[j] {
			quad := qii + qjj + 2*qij
			if quad <= 0 {
				quad = tau
			}
			delta := (-grad[i] - grad[j]) / quad
			diff := alpha[i] - alpha[j]
			alpha[i] += delta
			alpha[j] += delta
			if diff > 0 {
				if alpha[j] < 0 {
					alpha[j] = 0
					alpha[i] = diff
				}
				if alpha[i] > C {
					alpha[i] = C
					alpha[j] = C - diff
				}
			} else {
				if alpha[i] < 0 {
					alpha[i] = 0
					alpha[j] = -diff
				}
				if alpha[j] > C {
					alpha[j] = C
					alpha[i] = C + diff
				}
			}
		} else {
			quad := qii + qjj - 2*qij
			if quad <= 0 {
				quad = tau
			}
			delta := (grad[i] - grad[j]) / quad
			sum := alpha[i] + alpha[j]
			alpha[i] -= delta
			alpha[j] += delta
			if sum > C {
				if alpha[i] > C {
					alpha[i] = C
					alpha[j] = sum - C
				}
				if alpha[j] > C {
					alpha[j] = C
					alpha[i] = sum - C
				}
			} else {
				if alpha[j] < 0 {
					alpha[j] = 0
					alpha[i] = sum
				}
				if alpha[i] < 0 {
					alpha[i] = 0
					alpha[j] = sum
				}
			}
		}

		dI, dJ := alpha[i]-oldI, alpha[j]-oldJ
		if dI == 0 && dJ == 0 {
			continue
		}
		for t := 0; t < n; t++ {
			grad[t] += q(t, i)*dI + q(t, j)*dJ
		}
	}

	m.rho = computeRho(alpha, sign, grad, C)
	for i := 0; i < l; i++ {
		c := alpha[i] - alpha[i+l]
		if c == 0 {
			continue
		}
		sv := make([]float64, len(rows[i]))
		copy(sv, rows[i])
		m.support = append(m.support, sv)
		m.coef = append(m.coef, c)
	}
	return m, nil
}

// Predict evaluates the decision function on one scaled feature vector
func (m *SVR) Predict(x []float64) float64 {
	var f float64
	for i, sv := range m.support {
		f += m.coef[i] * m.kernel(sv, x)
	}
	return f - m.rho
}

// PredictAll evaluates every row of X
func (m *SVR) PredictAll(X *mat.Dense) []float64 {
	r, _ := X.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		out[i] = m.Predict(X.RawRowView(i))
	}
	return out
}

// SupportVectors returns the number of samples with a non-zero dual coefficient
func (m *SVR) SupportVectors() int {
	return len(m.support)
}

// Gamma returns the resolved kernel coefficient
func (m *SVR) Gamma() float64 {
	return m.gamma
}

func (m *SVR) kernel(a, b []float64) float64 {
	if m.Params.Kernel == KernelLinear {
		return floats.Dot(a, b)
	}
	d := floats.Distance(a, b, 2)
	return math.Exp(-m.gamma * d * d)
}

// resolveGamma turns a Gamma into a coefficient. Scale uses the variance of
// every entry of X, falling back to 1 for constant data.
func resolveGamma(g Gamma, X *mat.Dense) float64 {
	if !g.Scale {
		return g.Value
	}
	r, c := X.Dims()
	values := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		values = append(values, X.RawRowView(i)...)
	}
	variance := 0.0
	if len(values) > 1 {
		_, v := stat.MeanVariance(values, nil)
		variance = v * float64(len(values)-1) / float64(len(values))
	}
	if variance <= 0 || math.IsNaN(variance) {
		return 1
	}
	return 1 / (float64(c) * variance)
}

// selectWorkingSet picks the maximal violating pair. ok is false once the
// KKT gap is below tol.
func selectWorkingSet(alpha, sign, grad []float64, C, tol float64) (int, int, bool) {
	gmax, gmin := math.Inf(-1), math.Inf(1)
	i, j := -1, -1
	for t := range alpha {
		yg := -sign[t] * grad[t]
		if inUpSet(alpha[t], sign[t], C) && yg > gmax {
			gmax, i = yg, t
		}
		if inLowSet(alpha[t], sign[t], C) && yg < gmin {
			gmin, j = yg, t
		}
	}
	if i < 0 || j < 0 || gmax-gmin < tol {
		return -1, -1, false
	}
	return i, j, true
}

func inUpSet(a, y, C float64) bool {
	return (y > 0 && a < C) || (y < 0 && a > 0)
}

func inLowSet(a, y, C float64) bool {
	return (y > 0 && a > 0) || (y < 0 && a < C)
}

func computeRho(alpha, sign, grad []float64, C float64) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	var free int
	var sumFree float64
	for t := range alpha {
		yg := sign[t] * grad[t]
		switch {
		case alpha[t] >= C:
			if sign[t] < 0 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		case alpha[t] <= 0:
			if sign[t] > 0 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		default:
			free++
			sumFree += yg
		}
	}
	if free > 0 {
		return sumFree / float64(free)
	}
	return (ub + lb) / 2
}
