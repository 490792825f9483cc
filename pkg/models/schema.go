package models

// ForeignKeyRef records the target of an outbound foreign key on a column.
type ForeignKeyRef struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// ColumnInfo is a fully joined view of one column: catalog type plus key
// metadata merged from the primary-key and foreign-key catalog queries.
type ColumnInfo struct {
	Table        string         `json:"table"`
	Name         string         `json:"name"`
	DataType     string         `json:"data_type"`
	IsNullable   bool           `json:"is_nullable"`
	IsPrimaryKey bool           `json:"is_primary_key"`
	ForeignKey   *ForeignKeyRef `json:"foreign_key,omitempty"`
}

// TableInfo is a table name with its schema, as listed by introspection.
type TableInfo struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}
