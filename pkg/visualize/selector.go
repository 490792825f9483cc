// Package visualize picks a chart type for a query result by inspecting
// the first row. Selection is deterministic: columns are classified in
// result-set order and the first candidate of each kind wins.
package visualize

import (
	"regexp"
	"time"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
)

// datePattern matches ISO (2024-01-31) and US (01/31/2024) date prefixes in
// string values. Timestamps rendered as text match via the ISO branch.
var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}|^\d{2}/\d{2}/\d{4}`)

// Select chooses how to render a result set.
//
// A date-like column paired with a numeric column yields a line chart; a
// plain categorical column paired with a numeric column yields a bar chart;
// anything else falls back to a table.
func Select(result *models.QueryResult) models.VisualizationConfig {
	if result == nil || result.RowCount == 0 || len(result.Columns) == 0 {
		return models.VisualizationConfig{Type: models.VisualizationTable}
	}

	first := result.Rows[0]

	var numericCols, categoricalCols, dateCols []string
	for _, col := range result.Columns {
		value, ok := first[col]
		if !ok {
			continue
		}
		switch {
		// NULLs classify as categorical; the column still labels a group.
		case value == nil:
			categoricalCols = append(categoricalCols, col)
		case isNumeric(value):
			numericCols = append(numericCols, col)
		case isDateLike(value):
			dateCols = append(dateCols, col)
			categoricalCols = append(categoricalCols, col)
		default:
			categoricalCols = append(categoricalCols, col)
		}
	}

	if len(numericCols) == 0 {
		return models.VisualizationConfig{Type: models.VisualizationTable}
	}

	if len(dateCols) > 0 {
		return models.VisualizationConfig{
			Type: models.VisualizationLine,
			XKey: dateCols[0],
			YKey: numericCols[0],
		}
	}

	if len(categoricalCols) > 0 {
		return models.VisualizationConfig{
			Type: models.VisualizationBar,
			XKey: categoricalCols[0],
			YKey: numericCols[0],
		}
	}

	return models.VisualizationConfig{Type: models.VisualizationTable}
}

func isNumeric(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

func isDateLike(value any) bool {
	switch v := value.(type) {
	case time.Time:
		return true
	case string:
		return datePattern.MatchString(v)
	default:
		return false
	}
}
