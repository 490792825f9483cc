package models

// QueryResult is the outcome of running a read query: rows as column-keyed
// maps plus the column order reported by the driver. Columns is populated
// from result-set metadata, so zero-row results still carry the full list.
type QueryResult struct {
	Rows     []map[string]any `json:"rows"`
	Columns  []string         `json:"columns"`
	RowCount int              `json:"rowCount"`
}

// VisualizationType is the chart kind chosen for a result set.
type VisualizationType string

const (
	VisualizationTable VisualizationType = "table"
	VisualizationBar   VisualizationType = "bar"
	VisualizationLine  VisualizationType = "line"
	// VisualizationPie is accepted by renderers but never auto-selected.
	VisualizationPie VisualizationType = "pie"
)

// VisualizationConfig tells the caller how to render a result. XKey and YKey
// are only set for bar and line charts.
type VisualizationConfig struct {
	Type VisualizationType `json:"type"`
	XKey string            `json:"xKey,omitempty"`
	YKey string            `json:"yKey,omitempty"`
}
