package server

import (
	"encoding/json"
	"io"
	"net/http"

	"myride/internal/app"
)

type signupRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	DisplayName    string `json:"displayName"`
	InvitationCode string `json:"invitationCode"`
	InviterCode    string `json:"inviterCode,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token    string `json:"token"`
	MemberID string `json:"memberId"`
}

type rateRequest struct {
	Rating int `json:"rating"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		return
	}
	var req signupRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body", codeValidation)
		return
	}
	m, err := s.app.Signup(r.Context(), app.SignupInput{
		Email:          req.Email,
		Password:       req.Password,
		DisplayName:    req.DisplayName,
		InvitationCode: req.InvitationCode,
		InviterCode:    req.InviterCode,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body", codeValidation)
		return
	}
	sess, err := s.app.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: sess.Token, MemberID: sess.MemberID})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	token, _ := bearerToken(r)
	if err := s.app.Logout(r.Context(), token); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, memberID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	view, err := s.app.Me(r.Context(), memberID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleMyPhoto(w http.ResponseWriter, r *http.Request, memberID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	uploads, err := s.formUploads(r, "photo")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error(), codeValidation)
		return
	}
	if len(uploads) != 1 {
		writeError(w, r, http.StatusBadRequest, "exactly one photo is required (field: photo)", codeValidation)
		return
	}
	url, err := s.app.SetProfilePhoto(r.Context(), memberID, uploads[0])
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"photoUrl": url})
}

// handleMemberByID serves /api/members/{id} and /api/members/{id}/rating.
func (s *Server) handleMemberByID(w http.ResponseWriter, r *http.Request, memberID string) {
	parts := pathParts(r, "/api/members/")
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r)
			return
		}
		view, err := s.app.MemberProfile(r.Context(), parts[0])
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case len(parts) == 2 && parts[1] == "rating":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r)
			return
		}
		var req rateRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid JSON body", codeValidation)
			return
		}
		if err := s.app.RateMember(r.Context(), memberID, parts[0], req.Rating); err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "rated"})
	default:
		writeError(w, r, http.StatusNotFound, "not found", codeNotFound)
	}
}
