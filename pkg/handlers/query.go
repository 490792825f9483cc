package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/apperrors"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/workflows"
)

// QueryHandler exposes the generate and execute pipelines.
type QueryHandler struct {
	generate *workflows.GenerateWorkflow
	execute  *workflows.ExecuteWorkflow
	logger   *zap.Logger
}

func NewQueryHandler(generate *workflows.GenerateWorkflow, execute *workflows.ExecuteWorkflow, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		generate: generate,
		execute:  execute,
		logger:   logger,
	}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/generate", h.Generate)
	mux.HandleFunc("POST /api/execute", h.Execute)
}

// GenerateRequest is the POST /api/generate payload.
type GenerateRequest struct {
	UserID       string  `json:"userId"`
	UserPrompt   string  `json:"userPrompt"`
	ThreadID     string  `json:"threadId"`
	ConnectionID *string `json:"connectionId,omitempty"`
}

// Generate handles POST /api/generate requests.
func (h *QueryHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.UserPrompt == "" || req.ThreadID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "userPrompt and threadId are required")
		return
	}

	input := workflows.GenerateInput{
		UserPrompt: req.UserPrompt,
		ThreadID:   req.ThreadID,
	}
	var err error
	if input.UserID, err = parseUserID(req.UserID); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid userId")
		return
	}
	if input.ConnectionID, err = parseOptionalID(req.ConnectionID); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid connectionId")
		return
	}

	result, err := h.generate.Run(r.Context(), input)
	if err != nil {
		h.logger.Error("generate workflow failed",
			zap.String("thread_id", req.ThreadID),
			zap.Error(err))
		h.writeWorkflowError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ExecuteRequest is the POST /api/execute payload.
type ExecuteRequest struct {
	UserID       string  `json:"userId"`
	SQL          string  `json:"sql"`
	ConnectionID *string `json:"connectionId,omitempty"`
}

// Execute handles POST /api/execute requests. Pipeline failures still
// return the execute result shape with success set to false.
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.SQL == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "sql is required")
		return
	}

	input := workflows.ExecuteInput{SQL: req.SQL}
	var err error
	if input.UserID, err = parseUserID(req.UserID); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid userId")
		return
	}
	if input.ConnectionID, err = parseOptionalID(req.ConnectionID); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid connectionId")
		return
	}

	result, err := h.execute.Run(r.Context(), input)
	if err != nil {
		h.logger.Error("execute workflow failed", zap.Error(err))
		status := statusForError(err)
		failure := &workflows.ExecuteResult{
			Success: false,
			SQL:     req.SQL,
			Error:   &workflows.ExecuteError{Message: err.Error()},
		}
		if writeErr := WriteJSON(w, status, failure); writeErr != nil {
			h.logger.Error("Failed to write error response", zap.Error(writeErr))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *QueryHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func (h *QueryHandler) writeWorkflowError(w http.ResponseWriter, err error) {
	var wfErr *apperrors.WorkflowError
	if errors.As(err, &wfErr) {
		h.writeError(w, statusForError(err), string(wfErr.Stage), wfErr.Error())
		return
	}
	h.writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

func statusForError(err error) int {
	var wfErr *apperrors.WorkflowError
	if errors.As(err, &wfErr) && wfErr.Stage == apperrors.StageValidation {
		return http.StatusBadRequest
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func parseUserID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, errors.New("userId is required")
	}
	return uuid.Parse(raw)
}

func parseOptionalID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
