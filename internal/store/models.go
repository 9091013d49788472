package store

import (
	"time"

	"salesforecast/internal/config"
	"salesforecast/internal/forecast"
)

// ProjectionTotal is the horizon total of one segment in one run
type ProjectionTotal struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	LineID           string    `gorm:"column:id_linea;size:255;index" json:"id_linea"`
	Company          int       `gorm:"column:empresa" json:"empresa"`
	Color            int       `gorm:"column:color" json:"color"`
	Gender           string    `gorm:"column:genero;size:100" json:"genero"`
	Category         string    `gorm:"column:categoria;size:100" json:"categoria"`
	SubCategory      string    `gorm:"column:sub_categoria;size:100" json:"sub_categoria"`
	ItemCount        int       `gorm:"column:articulos_en_linea" json:"articulos_en_linea"`
	ProjectedTotal   int64     `gorm:"column:venta_prom_6m_estimada" json:"venta_prom_6m_estimada"`
	ProjectedPerItem int64     `gorm:"column:venta_prom_x_articulo_estimada" json:"venta_prom_x_articulo_estimada"`
	RunAt            time.Time `gorm:"column:fecha_proyeccion;index" json:"fecha_proyeccion"`
}

// TableName overrides the table name used by ProjectionTotal
func (ProjectionTotal) TableName() string { return config.TotalsTable }

// Segment returns the segment key of the row
func (p ProjectionTotal) Segment() forecast.SegmentKey {
	return forecast.SegmentKey{Gender: p.Gender, Category: p.Category, SubCategory: p.SubCategory}
}

// ProjectionDetail is one projected month of one segment in one run
type ProjectionDetail struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	LineID          string    `gorm:"column:id_linea;size:255;index" json:"id_linea"`
	Company         int       `gorm:"column:empresa" json:"empresa"`
	Color           int       `gorm:"column:color" json:"color"`
	Gender          string    `gorm:"column:genero;size:100" json:"genero"`
	Category        string    `gorm:"column:categoria;size:100" json:"categoria"`
	SubCategory     string    `gorm:"column:sub_categoria;size:100" json:"sub_categoria"`
	Month           string    `gorm:"column:mes;size:7" json:"mes"`
	ProjectedVolume float64   `gorm:"column:venta_mes_estimada" json:"venta_mes_estimada"`
	RunAt           time.Time `gorm:"column:fecha_proyeccion;index" json:"fecha_proyeccion"`
}

// TableName overrides the table name used by ProjectionDetail
func (ProjectionDetail) TableName() string { return config.DetailTable }

// Segment returns the segment key of the row
func (p ProjectionDetail) Segment() forecast.SegmentKey {
	return forecast.SegmentKey{Gender: p.Gender, Category: p.Category, SubCategory: p.SubCategory}
}

// ModelMetric holds the in-sample diagnostics of one segment model
type ModelMetric struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	LineID      string    `gorm:"column:id_linea;size:255;index" json:"id_linea"`
	Gender      string    `gorm:"column:genero;size:100" json:"genero"`
	Category    string    `gorm:"column:categoria;size:100" json:"categoria"`
	SubCategory string    `gorm:"column:sub_categoria;size:100" json:"sub_categoria"`
	MAE         float64   `gorm:"column:mae" json:"mae"`
	RMSE        float64   `gorm:"column:rmse" json:"rmse"`
	MAPE        *float64  `gorm:"column:mape" json:"mape"`
	R2          float64   `gorm:"column:r2" json:"r2"`
	HistoryRows int       `gorm:"column:datos_historicos" json:"datos_historicos"`
	Factor      float64   `gorm:"column:factor_ajuste" json:"factor_ajuste"`
	Selection   string    `gorm:"column:seleccion;size:20" json:"seleccion"`
	Params      string    `gorm:"column:parametros;size:255" json:"parametros"`
	RunAt       time.Time `gorm:"column:fecha_proyeccion;index" json:"fecha_proyeccion"`
}

// TableName overrides the table name used by ModelMetric
func (ModelMetric) TableName() string { return config.MetricsTable }

// Record converts the row back into a forecast.MetricsRecord
func (m ModelMetric) Record() forecast.MetricsRecord {
	return forecast.MetricsRecord{
		Key:         forecast.SegmentKey{Gender: m.Gender, Category: m.Category, SubCategory: m.SubCategory},
		Accuracy:    forecast.Accuracy{MAE: m.MAE, RMSE: m.RMSE, MAPE: m.MAPE, R2: m.R2, N: m.HistoryRows},
		HistoryRows: m.HistoryRows,
		Factor:      m.Factor,
		Selection:   forecast.SelectionKind(m.Selection),
		Params:      m.Params,
	}
}

// RunInfo summarizes one stored run
type RunInfo struct {
	RunAt    time.Time `gorm:"column:fecha_proyeccion" json:"run_at"`
	Segments int       `gorm:"column:segments" json:"segments"`
}
