// Package shared holds helpers used by more than one package of the
// forecaster. Only testutil lives here today: a buffered slog handler for
// asserting on log output and fixture builders for monthly sales series
// and raw transactions.
package shared
