// Package http implements the read-only HTTP handlers for stored forecast
// runs. Handlers stay thin: they parse and validate query parameters,
// delegate to the services layer and render JSON.
//
// # Routes
//
//	GET /api/health
//	GET /api/projections/runs
//	GET /api/projections/totals
//	GET /api/projections/totals/{id}
//	GET /api/projections/detail
//	GET /api/projections/metrics
//
// List endpoints accept run (RFC 3339, defaults to the latest run), gender,
// category, subcategory, limit and offset.
//
// # Error Handling
//
// All errors are rendered as RFC 7807 Problem Details through
// errors.ErrorHandler:
//
//	{
//	    "type": "/errors/not-found",
//	    "title": "Resource Not Found",
//	    "status": 404,
//	    "detail": "projection run 2025-01-31T23:00:00Z not found",
//	    "instance": "/api/projections/totals"
//	}
package http
