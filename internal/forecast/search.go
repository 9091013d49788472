package forecast

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Fold is one expanding-window split. Training rows are [0, TrainEnd) and
// test rows are [TrainEnd, TestEnd).
type Fold struct {
	TrainEnd int
	TestEnd  int
}

// TimeSeriesSplit returns k forward-chaining folds over n ordered samples.
// Each test block has n/(k+1) samples and every training window precedes
// its test block.
func TimeSeriesSplit(n, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: need at least 2 folds, got %d", ErrDegenerateInput, k)
	}
	if k+1 > n {
		return nil, fmt.Errorf("%w: cannot split %d samples into %d folds", ErrDegenerateInput, n, k)
	}
	testSize := n / (k + 1)
	folds := make([]Fold, 0, k)
	for start := n - k*testSize; start < n; start += testSize {
		folds = append(folds, Fold{TrainEnd: start, TestEnd: start + testSize})
	}
	return folds, nil
}

// Grid enumerates the full cartesian product of the search space in a
// stable order.
func (s SearchConfig) Grid() []Params {
	grid := make([]Params, 0, len(s.Kernels)*len(s.C)*len(s.Gamma)*len(s.Epsilon))
	for _, k := range s.Kernels {
		for _, c := range s.C {
			for _, g := range s.Gamma {
				for _, e := range s.Epsilon {
					grid = append(grid, Params{Kernel: k, C: c, Gamma: g, Epsilon: e})
				}
			}
		}
	}
	return grid
}

// Candidates draws up to Trials distinct grid points using the seeded
// generator. The same seed always yields the same candidates.
func (s SearchConfig) Candidates() []Params {
	grid := s.Grid()
	rng := rand.New(rand.NewPCG(s.Seed, s.Seed))
	perm := rng.Perm(len(grid))
	n := min(s.Trials, len(grid))
	out := make([]Params, n)
	for i := 0; i < n; i++ {
		out[i] = grid[perm[i]]
	}
	return out
}

// Selection is the outcome of model selection for one segment
type Selection struct {
	Kind   SelectionKind
	Params Params
	Model  *SVR
	Score  float64 // mean negative MAE over folds, NaN for fallback
	Trials int
	Scored int    // candidates with a finite score
	Reason string // why the fallback was used
}

// Select runs the randomized search with time-series cross validation on
// scaled features X and log-scale targets y, then refits the best candidate
// on all rows. When the search cannot run or no candidate scores, it fits
// the fallback configuration instead.
func Select(ctx context.Context, X *mat.Dense, y []float64, cfg SearchConfig) (Selection, error) {
	opts := SolverOptions{Tolerance: cfg.Tolerance, MaxIterations: cfg.MaxIterations}
	n := len(y)

	folds, err := TimeSeriesSplit(n, cfg.Folds)
	if err != nil {
		return fitFallback(X, y, cfg, opts, err.Error())
	}

	candidates := cfg.Candidates()
	scores := make([]float64, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, p := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scores[i] = crossValidate(X, y, p, folds, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Selection{}, err
	}

	best, scored := -1, 0
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			continue
		}
		scored++
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	if best < 0 {
		return fitFallback(X, y, cfg, opts, ErrNoCandidate.Error())
	}

	model, err := FitSVR(X, y, candidates[best], opts)
	if err != nil {
		return fitFallback(X, y, cfg, opts, fmt.Sprintf("refit failed: %v", err))
	}
	return Selection{
		Kind:   SelectionTuned,
		Params: candidates[best],
		Model:  model,
		Score:  scores[best],
		Trials: len(candidates),
		Scored: scored,
	}, nil
}

// crossValidate returns the mean negative MAE of p over the folds, or NaN
// when any fold cannot be fitted.
func crossValidate(X *mat.Dense, y []float64, p Params, folds []Fold, opts SolverOptions) float64 {
	_, c := X.Dims()
	var total float64
	for _, f := range folds {
		train := X.Slice(0, f.TrainEnd, 0, c).(*mat.Dense)
		test := X.Slice(f.TrainEnd, f.TestEnd, 0, c).(*mat.Dense)
		model, err := FitSVR(train, y[:f.TrainEnd], p, opts)
		if err != nil {
			return math.NaN()
		}
		pred := model.PredictAll(test)
		var abs float64
		for i, v := range pred {
			abs += math.Abs(y[f.TrainEnd+i] - v)
		}
		total += -abs / float64(len(pred))
	}
	return total / float64(len(folds))
}

func fitFallback(X *mat.Dense, y []float64, cfg SearchConfig, opts SolverOptions, reason string) (Selection, error) {
	model, err := FitSVR(X, y, cfg.Fallback, opts)
	if err != nil {
		return Selection{}, fmt.Errorf("fit fallback regressor: %w", err)
	}
	return Selection{
		Kind:   SelectionFallback,
		Params: cfg.Fallback,
		Model:  model,
		Score:  math.NaN(),
		Reason: reason,
	}, nil
}
