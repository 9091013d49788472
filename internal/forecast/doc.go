// Package forecast projects monthly sales volume per product segment.
//
// Each segment is modelled on its own: calendar and lag features are built
// from the monthly series, a kernel support vector regressor is selected by
// randomized search under forward-chaining cross validation on log1p
// targets, a multiplicative bias factor re-aligns the in-sample level, and
// the corrected model is rolled forward month by month with its own
// predictions fed back as lags.
//
// Basic usage:
//
//	engine, err := forecast.NewEngine(forecast.DefaultConfig(), logger)
//	if err != nil {
//		return err
//	}
//	result, err := engine.Run(ctx, series)
//
// Runs are deterministic for a given Search.Seed.
package forecast
