package forecast

import (
	"fmt"
	"math"
)

// Config controls the per-segment pipeline
type Config struct {
	Horizon         int     // months to project
	MinObservations int     // segments with less history are skipped
	MinFeatureRows  int     // segments with fewer trainable rows are skipped
	FactorMin       float64 // lower clamp of the bias correction factor
	FactorMax       float64 // upper clamp of the bias correction factor
	Workers         int     // segments processed concurrently
	Search          SearchConfig
}

// SearchConfig controls the randomized hyperparameter search
type SearchConfig struct {
	Trials        int
	Folds         int
	Seed          uint64
	Workers       int // concurrent candidate evaluations per segment
	Kernels       []Kernel
	C             []float64
	Gamma         []Gamma
	Epsilon       []float64
	Tolerance     float64
	MaxIterations int
	Fallback      Params
}

// DefaultSearchConfig returns the search space used in production
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Trials:        10,
		Folds:         3,
		Seed:          42,
		Workers:       1,
		Kernels:       []Kernel{KernelRBF, KernelLinear},
		C:             []float64{0.1, 1, 10, 100},
		Gamma:         []Gamma{GammaScale, GammaValue(0.01), GammaValue(0.1)},
		Epsilon:       []float64{0.01, 0.1, 0.5},
		Tolerance:     1e-3,
		MaxIterations: 100000,
		Fallback:      DefaultFallbackParams(),
	}
}

// DefaultFallbackParams returns the regressor configuration used when the search cannot run
func DefaultFallbackParams() Params {
	return Params{Kernel: KernelRBF, C: 10, Gamma: GammaScale, Epsilon: 0.1}
}

// DefaultConfig returns the production pipeline configuration
func DefaultConfig() Config {
	return Config{
		Horizon:         6,
		MinObservations: 12,
		MinFeatureRows:  6,
		FactorMin:       0.5,
		FactorMax:       3.0,
		Workers:         4,
		Search:          DefaultSearchConfig(),
	}
}

// ValidationError describes one invalid configuration field
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// Validate checks the configuration and returns the first problem found
func (c Config) Validate() error {
	if c.Horizon < 1 {
		return ValidationError{Field: "Horizon", Message: "must be at least 1", Value: c.Horizon}
	}
	if c.MinObservations < 4 {
		return ValidationError{Field: "MinObservations", Message: "must be at least 4", Value: c.MinObservations}
	}
	if c.MinFeatureRows < 1 {
		return ValidationError{Field: "MinFeatureRows", Message: "must be at least 1", Value: c.MinFeatureRows}
	}
	if c.FactorMin <= 0 || math.IsNaN(c.FactorMin) {
		return ValidationError{Field: "FactorMin", Message: "must be positive", Value: c.FactorMin}
	}
	if c.FactorMax < c.FactorMin {
		return ValidationError{Field: "FactorMax", Message: "must not be below FactorMin", Value: c.FactorMax}
	}
	if c.Workers < 1 {
		return ValidationError{Field: "Workers", Message: "must be at least 1", Value: c.Workers}
	}
	return c.Search.Validate()
}

// Validate checks the search space
func (s SearchConfig) Validate() error {
	if s.Trials < 1 {
		return ValidationError{Field: "Search.Trials", Message: "must be at least 1", Value: s.Trials}
	}
	if s.Folds < 2 {
		return ValidationError{Field: "Search.Folds", Message: "must be at least 2", Value: s.Folds}
	}
	if s.Workers < 1 {
		return ValidationError{Field: "Search.Workers", Message: "must be at least 1", Value: s.Workers}
	}
	if len(s.Kernels) == 0 || len(s.C) == 0 || len(s.Gamma) == 0 || len(s.Epsilon) == 0 {
		return ValidationError{Field: "Search", Message: "every dimension of the search space needs a value", Value: nil}
	}
	for _, k := range s.Kernels {
		if k != KernelRBF && k != KernelLinear {
			return ValidationError{Field: "Search.Kernels", Message: "unsupported kernel", Value: k}
		}
	}
	for _, c := range s.C {
		if c <= 0 {
			return ValidationError{Field: "Search.C", Message: "must be positive", Value: c}
		}
	}
	for _, e := range s.Epsilon {
		if e < 0 {
			return ValidationError{Field: "Search.Epsilon", Message: "must not be negative", Value: e}
		}
	}
	if s.Tolerance <= 0 {
		return ValidationError{Field: "Search.Tolerance", Message: "must be positive", Value: s.Tolerance}
	}
	if s.MaxIterations < 1 {
		return ValidationError{Field: "Search.MaxIterations", Message: "must be at least 1", Value: s.MaxIterations}
	}
	return validateParams("Search.Fallback", s.Fallback)
}

func validateParams(field string, p Params) error {
	if p.Kernel != KernelRBF && p.Kernel != KernelLinear {
		return ValidationError{Field: field + ".Kernel", Message: "unsupported kernel", Value: p.Kernel}
	}
	if p.C <= 0 {
		return ValidationError{Field: field + ".C", Message: "must be positive", Value: p.C}
	}
	if !p.Gamma.Scale && p.Gamma.Value <= 0 {
		return ValidationError{Field: field + ".Gamma", Message: "must be positive or scale", Value: p.Gamma}
	}
	if p.Epsilon < 0 {
		return ValidationError{Field: field + ".Epsilon", Message: "must not be negative", Value: p.Epsilon}
	}
	return nil
}
