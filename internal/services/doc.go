// Package services implements the application layer of the forecaster.
//
// ForecastService orchestrates one batch run: it reads transactions from
// the configured source, aggregates them into monthly segment series, runs
// the forecast engine, appends the projections to the sink and writes the
// metrics report. Source, sink and report failures abort a run; a segment
// that cannot be forecast is only counted.
//
// ProjectionService and HealthService back the read-only HTTP API. They
// translate sink errors into internal/errors application errors so the
// transport layer can render RFC 7807 responses.
package services
