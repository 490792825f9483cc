package introspect

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
)

// ColumnRow is one row from the column catalog query, before key metadata
// is merged in.
type ColumnRow struct {
	Table      string
	Name       string
	DataType   string
	IsNullable bool
}

// KeyRow identifies one primary key column.
type KeyRow struct {
	Table  string
	Column string
}

// ForeignKeyRow is one outbound foreign key edge.
type ForeignKeyRow struct {
	Table        string
	Column       string
	TargetTable  string
	TargetColumn string
}

// Catalog reads raw schema metadata from a target database. The split from
// Introspector keeps the join-and-merge logic testable without a live
// database. Implementations scope all reads to a single schema so table
// names are unique across the four result sets.
type Catalog interface {
	Tables(ctx context.Context) ([]models.TableInfo, error)
	Columns(ctx context.Context) ([]ColumnRow, error)
	PrimaryKeys(ctx context.Context) ([]KeyRow, error)
	ForeignKeys(ctx context.Context) ([]ForeignKeyRow, error)
}

// pgxCatalog reads the public schema of the PostgreSQL information_schema.
// Primary keys come from pg_index so PKs created as unique indexes by ORMs
// are still detected.
type pgxCatalog struct {
	pool *pgxpool.Pool
}

var _ Catalog = (*pgxCatalog)(nil)

// NewPgxCatalog wraps an open target pool.
func NewPgxCatalog(pool *pgxpool.Pool) Catalog {
	return &pgxCatalog{pool: pool}
}

func (c *pgxCatalog) Tables(ctx context.Context) ([]models.TableInfo, error) {
	const query = `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND table_schema = 'public'
		ORDER BY table_name
	`

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []models.TableInfo
	for rows.Next() {
		var t models.TableInfo
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

func (c *pgxCatalog) Columns(ctx context.Context) ([]ColumnRow, error) {
	const query = `
		SELECT table_name, column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_schema = 'public'
		ORDER BY table_name, ordinal_position
	`

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var cols []ColumnRow
	for rows.Next() {
		var col ColumnRow
		if err := rows.Scan(&col.Table, &col.Name, &col.DataType, &col.IsNullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return cols, nil
}

func (c *pgxCatalog) PrimaryKeys(ctx context.Context) ([]KeyRow, error) {
	const query = `
		SELECT t.relname, a.attname
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE ix.indisprimary = true
		  AND n.nspname = 'public'
	`

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query primary keys: %w", err)
	}
	defer rows.Close()

	var keys []KeyRow
	for rows.Next() {
		var k KeyRow
		if err := rows.Scan(&k.Table, &k.Column); err != nil {
			return nil, fmt.Errorf("scan primary key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate primary keys: %w", err)
	}
	return keys, nil
}

func (c *pgxCatalog) ForeignKeys(ctx context.Context) ([]ForeignKeyRow, error) {
	const query = `
		SELECT
			kcu.table_name,
			kcu.column_name,
			ccu.table_name AS target_table,
			ccu.column_name AS target_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
			AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = 'public'
	`

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []ForeignKeyRow
	for rows.Next() {
		var fk ForeignKeyRow
		if err := rows.Scan(&fk.Table, &fk.Column, &fk.TargetTable, &fk.TargetColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}
	return fks, nil
}
