package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/execute"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/introspect"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/llm"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/sqlguard"
)

// ContextTools are the tools exposed to the schema exploration agent.
func ContextTools() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		llm.NewToolDefinition(
			"getTables",
			"Retrieve all table names from the PostgreSQL database",
			map[string]llm.ParameterProperty{},
			[]string{},
		),
		llm.NewToolDefinition(
			"getTableColumns",
			"Retrieve all columns and their types for a specific table. Returns column name, data type, nullability, primary key status, and foreign key relationships.",
			map[string]llm.ParameterProperty{
				"tableName": {
					Type:        "string",
					Description: "The name of the table to inspect",
				},
			},
			[]string{"tableName"},
		),
	}
}

// GeneratorTools are the tools exposed to the SQL generation agent.
func GeneratorTools() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		llm.NewToolDefinition(
			"getTables",
			"Retrieve all table names from the PostgreSQL database",
			map[string]llm.ParameterProperty{},
			[]string{},
		),
		llm.NewToolDefinition(
			"getColumns",
			"Retrieve all columns and their types for a specific table. Returns column name, data type, nullability, primary key status, and foreign key relationships.",
			map[string]llm.ParameterProperty{
				"tableName": {
					Type:        "string",
					Description: "The name of the table to inspect",
				},
			},
			[]string{"tableName"},
		),
		llm.NewToolDefinition(
			"getContext",
			"Delegate to a specialized context agent to explore the database schema in depth. Use this when you need additional schema information beyond the provided context, especially when dealing with errors or complex queries.",
			map[string]llm.ParameterProperty{
				"userQuery": {
					Type:        "string",
					Description: "The user query to gather context for",
				},
			},
			[]string{"userQuery"},
		),
		llm.NewToolDefinition(
			"testQuery",
			"Test a generated SQL query by executing it (with LIMIT 1 for safety). Returns whether the test passed and any error message if it failed. YOU MUST CALL THIS TOOL AND RECEIVE A PASSING RESULT BEFORE OUTPUTTING YOUR FINAL ANSWER.",
			map[string]llm.ParameterProperty{
				"query": {
					Type:        "string",
					Description: "The SQL query to test",
				},
			},
			[]string{"query"},
		),
	}
}

// Target bundles the per-request view of one target database: its schema
// introspector and a runner for trial queries.
type Target struct {
	Introspector *introspect.Introspector
	Runner       execute.Runner
}

// schemaToolExecutor serves the introspection tools shared by both agents.
// The snapshot is taken lazily on first use and reused for the rest of the
// request.
type schemaToolExecutor struct {
	target *Target
	logger *zap.Logger

	snapshot *introspect.Snapshot
}

func (e *schemaToolExecutor) ExecuteTool(ctx context.Context, name string, arguments string) (string, error) {
	e.logger.Debug("executing tool",
		zap.String("tool", name),
		zap.String("arguments", arguments))

	switch name {
	case "getTables":
		return e.getTables(ctx)
	case "getTableColumns", "getColumns":
		return e.getColumns(ctx, arguments)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

func (e *schemaToolExecutor) snap(ctx context.Context) (*introspect.Snapshot, error) {
	if e.snapshot != nil {
		return e.snapshot, nil
	}
	snap, err := e.target.Introspector.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	e.snapshot = snap
	return snap, nil
}

func (e *schemaToolExecutor) getTables(ctx context.Context) (string, error) {
	snap, err := e.snap(ctx)
	if err != nil {
		return "", err
	}
	return marshalToolResult(map[string]any{"tables": snap.TableNames()})
}

type getColumnsArgs struct {
	TableName string `json:"tableName"`
}

type columnResult struct {
	Name       string                `json:"name"`
	Type       string                `json:"type"`
	IsNullable bool                  `json:"isNullable"`
	IsPrimary  bool                  `json:"isPrimary"`
	ForeignKey *models.ForeignKeyRef `json:"foreignKey,omitempty"`
}

func (e *schemaToolExecutor) getColumns(ctx context.Context, arguments string) (string, error) {
	var args getColumnsArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.TableName == "" {
		return "", fmt.Errorf("tableName is required")
	}

	snap, err := e.snap(ctx)
	if err != nil {
		return "", err
	}

	cols := snap.ColumnsFor(args.TableName)
	if len(cols) == 0 {
		return "", fmt.Errorf("table %q not found", args.TableName)
	}

	results := make([]columnResult, len(cols))
	for i, c := range cols {
		results[i] = columnResult{
			Name:       c.Name,
			Type:       c.DataType,
			IsNullable: c.IsNullable,
			IsPrimary:  c.IsPrimaryKey,
			ForeignKey: c.ForeignKey,
		}
	}
	return marshalToolResult(map[string]any{"columns": results})
}

// ContextGatherer is the sub-agent seam the generator's getContext tool
// delegates to.
type ContextGatherer interface {
	Explore(ctx context.Context, target *Target, userQuery string) (string, error)
}

// generatorToolExecutor adds the getContext and testQuery tools on top of
// the shared schema tools.
type generatorToolExecutor struct {
	schemaToolExecutor
	subAgent ContextGatherer
}

func (e *generatorToolExecutor) ExecuteTool(ctx context.Context, name string, arguments string) (string, error) {
	switch name {
	case "getContext":
		return e.getContext(ctx, arguments)
	case "testQuery":
		return e.testQuery(ctx, arguments)
	default:
		return e.schemaToolExecutor.ExecuteTool(ctx, name, arguments)
	}
}

type getContextArgs struct {
	UserQuery string `json:"userQuery"`
}

func (e *generatorToolExecutor) getContext(ctx context.Context, arguments string) (string, error) {
	var args getContextArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.UserQuery == "" {
		return "", fmt.Errorf("userQuery is required")
	}

	context, err := e.subAgent.Explore(ctx, e.target, args.UserQuery)
	if err != nil {
		return "", err
	}
	return marshalToolResult(map[string]any{"context": context})
}

type testQueryArgs struct {
	Query string `json:"query"`
}

// testQuery runs a candidate statement capped at one row. Failures are
// reported in the tool result so the model can correct course; they never
// abort the loop.
func (e *generatorToolExecutor) testQuery(ctx context.Context, arguments string) (string, error) {
	var args testQueryArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Query == "" {
		return "", fmt.Errorf("query is required")
	}

	if err := sqlguard.Validate(args.Query); err != nil {
		return marshalToolResult(map[string]any{
			"testPassed": false,
			"error":      err.Error(),
			"query":      args.Query,
		})
	}

	if _, err := e.target.Runner.Run(ctx, sqlguard.ForTestRun(args.Query)); err != nil {
		return marshalToolResult(map[string]any{
			"testPassed": false,
			"error":      err.Error(),
			"query":      args.Query,
		})
	}

	return marshalToolResult(map[string]any{
		"testPassed": true,
		"query":      args.Query,
	})
}

func marshalToolResult(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal tool result: %w", err)
	}
	return string(data), nil
}
