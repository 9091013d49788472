// Package app wires configuration, observability, storage and services
// into the three binaries: the batch forecaster, the backtester and the
// read-only projections API.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, YAML and environment
//	2. Initialize logging and OpenTelemetry
//	3. Open the projection store
//	4. Build services and, for the API, the chi router
//	5. Run until the context is cancelled, then shut down gracefully
//
// # Usage
//
//	rt, err := app.Bootstrap(configPath)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(context.Background())
//
//	svc, closeFn, err := rt.ForecastService()
package app
