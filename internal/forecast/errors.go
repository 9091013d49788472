package forecast

import "errors"

var (
	// ErrInsufficientHistory is returned when a segment has fewer observations than MinObservations
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrInsufficientRows is returned when fewer feature rows than MinFeatureRows can be built
	ErrInsufficientRows = errors.New("insufficient feature rows")

	// ErrDegenerateInput is returned for empty, non-finite or mis-shaped training data
	ErrDegenerateInput = errors.New("degenerate input")

	// ErrUnorderedSeries is returned when observations are not strictly increasing by month
	ErrUnorderedSeries = errors.New("observations not strictly increasing by month")

	// ErrNoCandidate is returned when no search candidate produced a finite score
	ErrNoCandidate = errors.New("no candidate produced a finite score")
)
