// Package config loads the forecaster configuration.
//
// # Configuration Sources
//
// Configuration is built from the following sources, later ones winning:
//
//	1. Built-in defaults (Default)
//	2. A YAML file (forecast.yaml, configs/forecast.yaml or an explicit path)
//	3. Environment variables prefixed with FORECAST_
//
// # Environment Variables
//
// Variables follow the section layout of Config:
//
//	FORECAST_ENGINE_HORIZON=6
//	FORECAST_ENGINE_RETURNS_POLICY=subtract
//	FORECAST_SEARCH_SEED=42
//	FORECAST_SEARCH_GAMMA=scale,0.01,0.1
//	FORECAST_SOURCE_TYPE=sql
//	FORECAST_SINK_DSN=postgres://forecast@localhost/forecast
//
// # Validation
//
// Struct tags are checked with go-playground/validator. Values that need
// parsing (gamma, since date) and the engine's own invariants are checked
// afterwards by converting to forecast.Config.
package config
