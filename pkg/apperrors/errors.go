// Package apperrors defines the tagged error types surfaced by the engine.
// Each failure carries the pipeline step or workflow stage that produced it
// so callers can report where a request died without parsing messages.
package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound marks lookups that matched nothing. Wrap it so callers can
// test with errors.Is.
var ErrNotFound = errors.New("not found")

// ConnectionError is a connection-registry failure: a lookup, listing, or
// write against the stored connections. Wrap ErrNotFound as the cause when
// the registry simply had no match.
type ConnectionError struct {
	Message string
	Cause   error
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection registry: %s: %v", e.Message, e.Cause)
	}
	return "connection registry: " + e.Message
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// IntrospectionStep tags the catalog phase an introspection failure came from.
type IntrospectionStep string

const (
	StepCreateConnection IntrospectionStep = "createConnection"
	StepTables           IntrospectionStep = "tables"
	StepColumns          IntrospectionStep = "columns"
	StepPrimaryKeys      IntrospectionStep = "primaryKeys"
	StepForeignKeys      IntrospectionStep = "foreignKeys"
)

// IntrospectionError is an atomic schema-introspection failure. A failure in
// any catalog step fails the whole introspection; Step records which one.
type IntrospectionError struct {
	Step    IntrospectionStep
	Message string
	Cause   error
}

func (e *IntrospectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("introspection failed at %s: %s: %v", e.Step, e.Message, e.Cause)
	}
	return fmt.Sprintf("introspection failed at %s: %s", e.Step, e.Message)
}

func (e *IntrospectionError) Unwrap() error { return e.Cause }

// ExecutionStep tags whether a query execution failed acquiring a connection
// or running the statement.
type ExecutionStep string

const (
	ExecStepConnection ExecutionStep = "connection"
	ExecStepExecution  ExecutionStep = "execution"
)

// ExecutionError is a query execution failure against a target database.
type ExecutionError struct {
	Step    ExecutionStep
	Message string
	Cause   error
}

func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("execution failed at %s: %s: %v", e.Step, e.Message, e.Cause)
	}
	return fmt.Sprintf("execution failed at %s: %s", e.Step, e.Message)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// ValidationError rejects SQL that is not a plain read query. Keyword holds
// the blocked keyword when one triggered the rejection.
type ValidationError struct {
	Message string
	Keyword string
}

func (e *ValidationError) Error() string { return e.Message }

// ContextError is a context-gathering agent failure.
type ContextError struct {
	Message string
	Cause   error
}

func (e *ContextError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("context gathering failed: %s: %v", e.Message, e.Cause)
	}
	return "context gathering failed: " + e.Message
}

func (e *ContextError) Unwrap() error { return e.Cause }

// GenerationError is a SQL-generation agent failure.
type GenerationError struct {
	Message string
	Cause   error
}

func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("sql generation failed: %s: %v", e.Message, e.Cause)
	}
	return "sql generation failed: " + e.Message
}

func (e *GenerationError) Unwrap() error { return e.Cause }

// WorkflowStage tags which stage of a workflow a request failed in.
type WorkflowStage string

const (
	StageValidation      WorkflowStage = "validation"
	StageGetConnection   WorkflowStage = "getConnection"
	StageExecution       WorkflowStage = "execution"
	StageGenerateContext WorkflowStage = "generateContext"
	StageGenerateSQL     WorkflowStage = "generateSql"
)

// WorkflowError wraps any stage failure after retries are exhausted. It is
// the only error type workflows return to handlers.
type WorkflowError struct {
	Stage   WorkflowStage
	Message string
	Cause   error
}

func (e *WorkflowError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("workflow failed at %s: %s: %v", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("workflow failed at %s: %s", e.Stage, e.Message)
}

func (e *WorkflowError) Unwrap() error { return e.Cause }
