package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oceanbase/vira-go/pkg/core"
)

// maxBodyBytes bounds a chat request body.
const maxBodyBytes = 1 << 20

type chatRequest struct {
	UserID    string  `json:"user_id"`
	Message   *string `json:"message"`
	SessionID string  `json:"session_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// handleChat runs one turn. A missing user_id gets a fresh UUID. A turn that
// fails inside the workflow still answers 200 with the generic failure
// response.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body", Code: "BAD_REQUEST"})
		return
	}
	if req.Message == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required", Code: "BAD_REQUEST"})
		return
	}
	if req.UserID == "" {
		req.UserID = uuid.NewString()
	}

	result, err := s.assistant.Chat(r.Context(), req.UserID, *req.Message, core.WithSessionID(req.SessionID))
	if err != nil {
		log := s.logger.With(zap.String("user_id", req.UserID), zap.Error(err))
		if result == nil {
			status, code := http.StatusInternalServerError, "INTERNAL"
			if errors.Is(err, core.ErrInvalidInput) {
				status, code = http.StatusBadRequest, "BAD_REQUEST"
			}
			log.Warn("chat rejected")
			writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
			return
		}
		log.Error("chat turn failed")
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.assistant.Health(r.Context())
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
