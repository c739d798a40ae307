package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"myride/internal/app"
	"myride/internal/ratelimit"
	"myride/internal/util"
	"myride/pkg/ai"
	"myride/pkg/store"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                      *app.App
	RedisAddr                string
	RedisPassword            string
	SignupRateLimitPerMinute int
	LoginRateLimitPerMinute  int
	MaxUploadBytes           int64
	TrustedProxyCIDRs        []string
}

// Server exposes the HTTP endpoints.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	maxUploadBytes int64
	trustedProxies *util.TrustedProxies
	signupLimiter  *ratelimit.FixedWindowLimiter
	loginLimiter   *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	signupLimit := cfg.SignupRateLimitPerMinute
	if signupLimit <= 0 {
		signupLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	rateWindow := time.Minute
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "myride:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	signupLimiter, err := newLimiter("signup", signupLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
		trustedProxies: trusted,
		signupLimiter:  signupLimiter,
		loginLimiter:   loginLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler wrapped in the middleware chain.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("myride", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.Handle("/api/auth/logout", s.withMember(s.handleLogout))

	// members
	s.mux.Handle("/api/members/me", s.withMember(s.handleMe))
	s.mux.Handle("/api/members/me/photo", s.withMember(s.handleMyPhoto))
	s.mux.Handle("/api/members/", s.withMember(s.handleMemberByID))

	// vehicles & the marketplace
	s.mux.Handle("/api/vehicles", s.withMember(s.handleVehicles))
	s.mux.Handle("/api/vehicles/", s.withMember(s.handleVehicleByID))
	s.mux.Handle("/api/market", s.withMember(s.handleMarket))

	// conversations
	s.mux.Handle("/api/conversations", s.withMember(s.handleConversations))
	s.mux.Handle("/api/conversations/", s.withMember(s.handleConversationByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type memberHandler func(http.ResponseWriter, *http.Request, string)

func (s *Server) withMember(next memberHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", codeUnauthorized)
			return
		}
		memberID, ok, err := s.app.Sessions().GetMemberIDByToken(token)
		if err != nil {
			slog.ErrorContext(r.Context(), "resolve session", slog.Any("error", err))
			writeError(w, r, http.StatusInternalServerError, "session lookup failed", codeInternal)
			return
		}
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", codeUnauthorized)
			return
		}
		next(w, r, memberID)
	})
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, r, http.StatusTooManyRequests, msg, codeRateLimited)
	return false
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed", codeMethodNotAllowed)
}

// Error codes surfaced alongside the message so clients can branch without
// string-matching.
const (
	codeValidation       = "VALIDATION"
	codeUnauthorized     = "UNAUTHORIZED"
	codeForbidden        = "FORBIDDEN"
	codeNotFound         = "NOT_FOUND"
	codeConflict         = "CONFLICT"
	codeRateLimited      = "RATE_LIMITED"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	codeAIUnparsable     = "AI_RESPONSE_UNPARSABLE"
	codeUpstream         = "UPSTREAM_UNAVAILABLE"
	codeInternal         = "INTERNAL"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg, code string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: util.RequestIDFromRequest(r),
	})
}

// writeAppError translates application errors into HTTP responses.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrValidation):
		writeError(w, r, http.StatusBadRequest, err.Error(), codeValidation)
	case errors.Is(err, app.ErrBadCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials", codeUnauthorized)
	case errors.Is(err, app.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden", codeForbidden)
	case errors.Is(err, app.ErrMemberNotFound),
		errors.Is(err, app.ErrVehicleNotFound),
		errors.Is(err, app.ErrReceiptNotFound),
		errors.Is(err, app.ErrConversationNotFound),
		errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error(), codeNotFound)
	case errors.Is(err, app.ErrEmailTaken),
		errors.Is(err, app.ErrInviteCodeTaken):
		writeError(w, r, http.StatusConflict, err.Error(), codeConflict)
	case errors.Is(err, app.ErrScheduleUninitialized):
		writeError(w, r, http.StatusConflict, "maintenance schedule not synced yet", codeConflict)
	case errors.Is(err, app.ErrScheduleStale), errors.Is(err, ai.ErrUnparsableResponse):
		writeError(w, r, http.StatusBadGateway, "ai response could not be parsed; previous state retained", codeAIUnparsable)
	default:
		slog.ErrorContext(r.Context(), "request failed", slog.Any("error", err))
		writeError(w, r, http.StatusBadGateway, "upstream failure", codeUpstream)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 50 * 1024 * 1024
	}
	return value
}

// pathParts splits the path remainder after prefix into its segments.
func pathParts(r *http.Request, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
