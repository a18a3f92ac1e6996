package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-lightnode/internal/orchestrator"
	"github.com/nerrad567/gray-logic-lightnode/internal/protocol"
	"github.com/nerrad567/gray-logic-lightnode/internal/provisioning"
)

// Event listing bounds.
const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// handleStatus returns the latest published node status.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Status())
}

// handleEvents returns the most recent journal entries, newest first.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "event history is disabled")
		return
	}

	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}

	events, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing events failed", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// handleReconnect queues a forced link reconnect.
func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, orchestrator.Request{Kind: orchestrator.RequestReconnect})
}

// handleStartProvisioning queues opening the provisioning window.
func (s *Server) handleStartProvisioning(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, orchestrator.Request{Kind: orchestrator.RequestProvisioning})
}

// handleSessionReset queues re-arming the session retry budget.
func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, orchestrator.Request{Kind: orchestrator.RequestSessionReset})
}

// handleFactoryReset queues clearing the credentials and restarting.
func (s *Server) handleFactoryReset(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, orchestrator.Request{Kind: orchestrator.RequestFactoryReset})
}

// lightCommandRequest is the body of POST /light. Payload uses the same
// text encoding as the command topic ("on", "off", "<b>[#<m>]").
type lightCommandRequest struct {
	Payload string `json:"payload"`
}

// handleLightCommand decodes a command payload and queues it.
func (s *Server) handleLightCommand(w http.ResponseWriter, r *http.Request) {
	var req lightCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	cmd, ok := protocol.Decode([]byte(req.Payload))
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "payload is not a recognised command")
		return
	}

	s.submit(w, r, orchestrator.Request{Kind: orchestrator.RequestCommand, Command: cmd})
}

// handleProvisioningStatus returns the provisioning window state.
func (s *Server) handleProvisioningStatus(w http.ResponseWriter, _ *http.Request) {
	if s.provisioning == nil {
		writeUnavailable(w, "provisioning is disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.provisioning.Snapshot())
}

// credentialsRequest is the body of POST /provisioning/credentials.
type credentialsRequest struct {
	NetworkName string `json:"network_name"`
	Secret      string `json:"secret"`
}

// handleProvisioningCredentials hands network credentials to an open
// provisioning window. The control loop stores them and restarts.
func (s *Server) handleProvisioningCredentials(w http.ResponseWriter, r *http.Request) {
	if s.provisioning == nil {
		writeUnavailable(w, "provisioning is disabled")
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	err := s.provisioning.Submit(req.NetworkName, req.Secret)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]any{
			"accepted": true,
			"network":  req.NetworkName,
		})
	case errors.Is(err, provisioning.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, provisioning.ErrNotActive), errors.Is(err, provisioning.ErrAlreadyComplete):
		writeConflict(w, err.Error())
	default:
		s.logger.Error("credential submission failed", "error", err)
		writeInternalError(w, "failed to submit credentials")
	}
}

// submit queues req and writes 202, or 503 when the queue is full.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, req orchestrator.Request) {
	if err := s.orch.Submit(req); err != nil {
		if errors.Is(err, orchestrator.ErrBusy) {
			writeError(w, http.StatusServiceUnavailable, ErrCodeBusy, "request queue is full, retry shortly")
			return
		}
		s.logger.Error("submitting request failed", "request", req.Kind.String(), "error", err)
		writeInternalError(w, "failed to submit request")
		return
	}

	s.logger.Info("operator request queued", "request", req.Kind.String(), "operator", operator(r))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted": req.Kind.String(),
	})
}
