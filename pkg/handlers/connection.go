package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/apperrors"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/services"
)

// ConnectionHandler manages registered target databases.
type ConnectionHandler struct {
	connections services.ConnectionService
	logger      *zap.Logger
}

func NewConnectionHandler(connections services.ConnectionService, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		connections: connections,
		logger:      logger,
	}
}

// RegisterRoutes registers the connection handler's routes on the given mux.
func (h *ConnectionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/connections", h.Create)
	mux.HandleFunc("GET /api/connections", h.List)
	mux.HandleFunc("DELETE /api/connections/{id}", h.Delete)
}

// CreateConnectionRequest is the POST /api/connections payload.
type CreateConnectionRequest struct {
	UserID           string `json:"userId"`
	Name             string `json:"name"`
	ConnectionString string `json:"connectionString"`
}

// Create handles POST /api/connections requests. The target is dialed once
// before registration so broken connection strings are rejected up front.
func (h *ConnectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Name == "" || req.ConnectionString == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "name and connectionString are required")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid userId")
		return
	}

	conn, err := h.connections.Create(r.Context(), userID, req.Name, req.ConnectionString)
	if err != nil {
		h.logger.Error("failed to create connection",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		h.writeError(w, http.StatusBadGateway, "connection_failed", err.Error())
		return
	}

	if err := WriteJSON(w, http.StatusCreated, conn); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/connections?userId= requests.
func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("userId"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid userId")
		return
	}

	conns, err := h.connections.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list connections",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to list connections")
		return
	}

	if err := WriteJSON(w, http.StatusOK, conns); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/connections/{id} requests.
func (h *ConnectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid connection id")
		return
	}

	if err := h.connections.Delete(r.Context(), id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "connection not found")
			return
		}
		h.logger.Error("failed to delete connection",
			zap.String("connection_id", id.String()),
			zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete connection")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ConnectionHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
