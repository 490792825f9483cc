// Package introspect builds an in-memory schema snapshot of a target
// database from three catalog reads joined by table and column name.
// Introspection is atomic: if any catalog read fails, no partial snapshot
// is returned.
package introspect

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/apperrors"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
)

// Snapshot is a fully joined view of the target schema.
type Snapshot struct {
	Tables  []models.TableInfo
	Columns []models.ColumnInfo
}

// Introspector joins catalog reads into snapshots.
type Introspector struct {
	catalog Catalog
	logger  *zap.Logger
}

func New(catalog Catalog, logger *zap.Logger) *Introspector {
	return &Introspector{
		catalog: catalog,
		logger:  logger.Named("introspect"),
	}
}

// Snapshot runs all catalog reads and merges key metadata into columns.
// Any read failure aborts the whole snapshot with the failing step tagged.
func (i *Introspector) Snapshot(ctx context.Context) (*Snapshot, error) {
	tables, err := i.catalog.Tables(ctx)
	if err != nil {
		return nil, &apperrors.IntrospectionError{Step: apperrors.StepTables, Message: "failed to list tables", Cause: err}
	}

	columns, err := i.catalog.Columns(ctx)
	if err != nil {
		return nil, &apperrors.IntrospectionError{Step: apperrors.StepColumns, Message: "failed to list columns", Cause: err}
	}

	primaryKeys, err := i.catalog.PrimaryKeys(ctx)
	if err != nil {
		return nil, &apperrors.IntrospectionError{Step: apperrors.StepPrimaryKeys, Message: "failed to list primary keys", Cause: err}
	}

	foreignKeys, err := i.catalog.ForeignKeys(ctx)
	if err != nil {
		return nil, &apperrors.IntrospectionError{Step: apperrors.StepForeignKeys, Message: "failed to list foreign keys", Cause: err}
	}

	pkSet := make(map[string]bool, len(primaryKeys))
	for _, pk := range primaryKeys {
		pkSet[pk.Table+"."+pk.Column] = true
	}

	fkMap := make(map[string]*models.ForeignKeyRef, len(foreignKeys))
	for _, fk := range foreignKeys {
		fkMap[fk.Table+"."+fk.Column] = &models.ForeignKeyRef{Table: fk.TargetTable, Column: fk.TargetColumn}
	}

	merged := make([]models.ColumnInfo, 0, len(columns))
	for _, col := range columns {
		key := col.Table + "." + col.Name
		merged = append(merged, models.ColumnInfo{
			Table:        col.Table,
			Name:         col.Name,
			DataType:     col.DataType,
			IsNullable:   col.IsNullable,
			IsPrimaryKey: pkSet[key],
			ForeignKey:   fkMap[key],
		})
	}

	i.logger.Debug("schema snapshot built",
		zap.Int("tables", len(tables)),
		zap.Int("columns", len(merged)))

	return &Snapshot{Tables: tables, Columns: merged}, nil
}

// TableNames returns the snapshot's table names in catalog order.
func (s *Snapshot) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	return names
}

// ColumnsFor returns the columns of one table, preserving ordinal order.
func (s *Snapshot) ColumnsFor(table string) []models.ColumnInfo {
	var cols []models.ColumnInfo
	for _, c := range s.Columns {
		if c.Table == table {
			cols = append(cols, c)
		}
	}
	return cols
}

// Describe renders the snapshot as the compact text form handed to agents.
func (s *Snapshot) Describe() string {
	byTable := make(map[string][]models.ColumnInfo)
	for _, c := range s.Columns {
		byTable[c.Table] = append(byTable[c.Table], c)
	}

	tables := make([]string, 0, len(byTable))
	for t := range byTable {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	var b strings.Builder
	for _, t := range tables {
		fmt.Fprintf(&b, "Table %s:\n", t)
		for _, c := range byTable[t] {
			fmt.Fprintf(&b, "  %s %s", c.Name, c.DataType)
			if !c.IsNullable {
				b.WriteString(" not null")
			}
			if c.IsPrimaryKey {
				b.WriteString(" [pk]")
			}
			if c.ForeignKey != nil {
				fmt.Fprintf(&b, " [fk -> %s.%s]", c.ForeignKey.Table, c.ForeignKey.Column)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
