package config

// Application constants
const (
	AppName    = "salesforecast"
	AppVersion = "1.0.0"

	// DefaultReportName is the metrics report file name without extension
	DefaultReportName = "metricas_modelos"

	// Table names of the projection sink
	TotalsTable  = "proyeccion_ventas_total"
	DetailTable  = "proyeccion_ventas_detalle"
	MetricsTable = "proyeccion_metricas"
)
