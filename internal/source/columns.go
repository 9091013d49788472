package source

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"salesforecast/internal/aggregate"
)

type column int

const (
	colDate column = iota
	colDocType
	colItem
	colGender
	colCategory
	colSubCategory
	colQuantity
	colVoid
	numColumns
)

var columnNames = [numColumns]string{
	"Fecha", "TipoDocumento", "Codigo", "Genero", "Categoria", "SubCategoria", "Cantidad", "Nulas",
}

// headerAliases maps normalized header text to a column
var headerAliases = map[string]column{
	"fecha":         colDate,
	"date":          colDate,
	"tipodocumento": colDocType,
	"tipodoc":       colDocType,
	"doctype":       colDocType,
	"documenttype":  colDocType,
	"codigo":        colItem,
	"code":          colItem,
	"itemcode":      colItem,
	"sku":           colItem,
	"genero":        colGender,
	"gender":        colGender,
	"categoria":     colCategory,
	"category":      colCategory,
	"subcategoria":  colSubCategory,
	"subcategory":   colSubCategory,
	"cantidad":      colQuantity,
	"quantity":      colQuantity,
	"qty":           colQuantity,
	"nulas":         colVoid,
	"nula":          colVoid,
	"void":          colVoid,
	"voided":        colVoid,
}

// doc type and void flag may be absent
var requiredColumns = []column{colDate, colItem, colGender, colCategory, colSubCategory, colQuantity}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02/01/2006 15:04:05",
}

// rowDecoder maps a header row to column positions
type rowDecoder struct {
	index [numColumns]int
}

func newRowDecoder(header []string) (*rowDecoder, error) {
	d := &rowDecoder{}
	for i := range d.index {
		d.index[i] = -1
	}
	for i, h := range header {
		if c, ok := headerAliases[normalizeHeader(h)]; ok && d.index[c] < 0 {
			d.index[c] = i
		}
	}
	var missing []string
	for _, c := range requiredColumns {
		if d.index[c] < 0 {
			missing = append(missing, columnNames[c])
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return d, nil
}

func (d *rowDecoder) cell(row []string, c column) string {
	i := d.index[c]
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// decode never fails: unparseable dates become the zero time and
// unparseable numbers become 0, so the aggregator accounts for them.
func (d *rowDecoder) decode(row []string) aggregate.Transaction {
	return aggregate.Transaction{
		Date:        parseDate(d.cell(row, colDate)),
		DocType:     d.cell(row, colDocType),
		ItemCode:    d.cell(row, colItem),
		Gender:      d.cell(row, colGender),
		Category:    d.cell(row, colCategory),
		SubCategory: d.cell(row, colSubCategory),
		Quantity:    parseNumber(d.cell(row, colQuantity)),
		Void:        parseNumber(d.cell(row, colVoid)),
	}
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n",
	" ", "", "_", "", "-", "", "\ufeff", "",
)

func normalizeHeader(h string) string {
	return accentReplacer.Replace(strings.ToLower(strings.TrimSpace(h)))
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	// Excel serial dates from raw cell values
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseNumber(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}
