package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"myride/pkg/domain"
)

type startConversationRequest struct {
	MemberID  string `json:"memberId"`
	VehicleID string `json:"vehicleId,omitempty"`
}

type sendMessageRequest struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request, memberID string) {
	switch r.Method {
	case http.MethodGet:
		convs, err := s.app.Conversations(r.Context(), memberID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, convs)
	case http.MethodPost:
		var req startConversationRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid JSON body", codeValidation)
			return
		}
		c, err := s.app.StartConversation(r.Context(), memberID, req.MemberID, req.VehicleID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	default:
		methodNotAllowed(w, r)
	}
}

// handleConversationByID serves /api/conversations/{id}/messages.
func (s *Server) handleConversationByID(w http.ResponseWriter, r *http.Request, memberID string) {
	parts := pathParts(r, "/api/conversations/")
	if len(parts) != 2 || parts[1] != "messages" {
		writeError(w, r, http.StatusNotFound, "not found", codeNotFound)
		return
	}
	conversationID := parts[0]

	switch r.Method {
	case http.MethodGet:
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			limit, _ = strconv.Atoi(v)
		}
		msgs, err := s.app.Messages(r.Context(), memberID, conversationID, limit)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	case http.MethodPost:
		var req sendMessageRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid JSON body", codeValidation)
			return
		}
		kind := domain.MessageKind(req.Kind)
		if req.Kind == "" {
			kind = domain.MessageText
		}
		msg, err := s.app.SendMessage(r.Context(), memberID, conversationID, kind, req.Content)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	default:
		methodNotAllowed(w, r)
	}
}
