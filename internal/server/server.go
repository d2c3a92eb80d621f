package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"pdfchat/internal/app"
	"pdfchat/internal/ratelimit"
	"pdfchat/internal/usertoken"
	"pdfchat/internal/util"
	"pdfchat/pkg/domain"
	"pdfchat/pkg/storage"
)

const defaultMaxUploadBytes = 32 << 20

// TokenVerifier validates bearer tokens into identities.
type TokenVerifier interface {
	VerifyIdentity(token string) (usertoken.Identity, error)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	TokenVerifier  TokenVerifier
	Relay          http.Handler
	Files          storage.ObjectStore
	FilesDir       string
	MaxUploadBytes int64
	SignupLimiter  *ratelimit.FixedWindowLimiter
	ConnectLimiter *ratelimit.FixedWindowLimiter
}

// Server exposes the HTTP endpoints.
type Server struct {
	app            *app.App
	tokenVerifier  TokenVerifier
	relay          http.Handler
	files          storage.ObjectStore
	filesDir       string
	maxUploadBytes int64
	signupLimiter  *ratelimit.FixedWindowLimiter
	connectLimiter *ratelimit.FixedWindowLimiter
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	s := &Server{
		app:            cfg.App,
		tokenVerifier:  cfg.TokenVerifier,
		relay:          cfg.Relay,
		files:          cfg.Files,
		filesDir:       cfg.FilesDir,
		maxUploadBytes: maxUpload,
		signupLimiter:  cfg.SignupLimiter,
		connectLimiter: cfg.ConnectLimiter,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with the ambient middleware applied.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("POST /auth/signup", s.withRateLimit(s.signupLimiter, http.HandlerFunc(s.handleSignUp)))
	s.mux.Handle("GET /auth/user-data", s.withIdentity(s.handleUserData))
	s.mux.HandleFunc("POST /conversation/new", s.handleNewConversation)
	s.mux.HandleFunc("GET /conversation/{id}", s.handleGetConversation)
	s.mux.HandleFunc("PATCH /conversation/add-participant", s.handleAddParticipant)
	s.mux.HandleFunc("PATCH /conversation/remove-participant", s.handleRemoveParticipant)
	s.mux.HandleFunc("DELETE /conversation/delete-conversation", s.handleDeleteConversation)
	if s.relay != nil {
		s.mux.Handle("GET /conversation/messages", s.withRateLimit(s.connectLimiter, s.relay))
	}
	if s.files != nil {
		s.mux.Handle("POST /files", s.withIdentity(s.handleUpload))
	}
	if s.filesDir != "" {
		s.mux.Handle("GET /files/", http.StripPrefix("/files/", http.FileServer(http.Dir(s.filesDir))))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) withRateLimit(limiter *ratelimit.FixedWindowLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter != nil && !limiter.Allow(util.ClientIP(r)) {
			writeDetail(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type identityHandler func(http.ResponseWriter, *http.Request, usertoken.Identity)

// withIdentity enforces bearer auth, answering with the matching
// WWW-Authenticate challenge: a missing credential is a malformed
// request, a rejected one is an invalid token.
func (s *Server) withIdentity(next identityHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="sign", error="invalid_request"`)
			writeDetail(w, http.StatusBadRequest, "authorization header missing")
			return
		}
		identity, err := s.tokenVerifier.VerifyIdentity(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="sign", error="invalid_token"`)
			writeDetail(w, http.StatusUnauthorized, "invalid access token")
			return
		}
		next(w, r, identity)
	})
}

type signUpRequest struct {
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Email     string      `json:"email"`
	PhotoURL  string      `json:"photoURL"`
	Plan      domain.Plan `json:"plan"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		writeDetail(w, http.StatusBadRequest, "firstName, lastName and email are required")
		return
	}

	exists, err := s.app.UserExists(r.Context(), req.Email)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if exists {
		writeDetail(w, http.StatusConflict, "user already exists")
		return
	}

	profile, err := s.app.SignUp(r.Context(), app.SignUpRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		PhotoURL:  req.PhotoURL,
		Plan:      req.Plan,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (s *Server) handleUserData(w http.ResponseWriter, r *http.Request, identity usertoken.Identity) {
	email := identity.Email
	if email == "" {
		email = identity.Subject
	}
	profile, err := s.app.GetUserData(r.Context(), email)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type newConversationRequest struct {
	Email        string  `json:"email"`
	FileName     string  `json:"fileName"`
	FileURL      string  `json:"fileURL"`
	FileSizeInMB float64 `json:"fileSizeInMB"`
}

func (s *Server) handleNewConversation(w http.ResponseWriter, r *http.Request) {
	var req newConversationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.FileName) == "" {
		writeDetail(w, http.StatusBadRequest, "email and fileName are required")
		return
	}
	conv, err := s.app.CreateConversation(r.Context(), app.CreateConversationRequest{
		Email:        req.Email,
		FileName:     req.FileName,
		FileURL:      req.FileURL,
		FileSizeInMB: req.FileSizeInMB,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	view, err := s.app.GetConversationMessages(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	s.handleParticipantChange(w, r, s.app.AddParticipant)
}

func (s *Server) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	s.handleParticipantChange(w, r, s.app.RemoveParticipant)
}

func (s *Server) handleParticipantChange(
	w http.ResponseWriter,
	r *http.Request,
	change func(ctx context.Context, conversationID, userID string) (domain.Conversation, error),
) {
	conversationID := strings.TrimSpace(r.URL.Query().Get("conversationId"))
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if conversationID == "" || userID == "" {
		writeDetail(w, http.StatusBadRequest, "conversationId and userId are required")
		return
	}
	conv, err := change(r.Context(), conversationID, userID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNonAuthoritativeInfo, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := strings.TrimSpace(r.URL.Query().Get("conversationId"))
	if conversationID == "" {
		writeDetail(w, http.StatusBadRequest, "conversationId is required")
		return
	}
	if err := s.app.DeleteConversation(r.Context(), conversationID); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNonAuthoritativeInfo, map[string]string{"status": "deleted"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, _ usertoken.Identity) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "multipart file field required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." || !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		writeDetail(w, http.StatusBadRequest, "a .pdf file is required")
		return
	}

	key := util.NewID() + "-" + name
	if err := s.files.Put(r.Context(), key, file, header.Size, "application/pdf"); err != nil {
		writeAppError(w, r, err)
		return
	}
	url, err := s.files.URL(r.Context(), key)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"name":     name,
		"url":      url,
		"sizeInMB": float64(header.Size) / (1 << 20),
	})
}

// writeAppError maps sentinel errors to 404s; everything else is logged
// server-side and answered with a fixed detail so internal error chains
// never reach clients.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrUserNotFound),
		errors.Is(err, app.ErrConversationNotFound),
		errors.Is(err, app.ErrPdfFileNotFound):
		writeDetail(w, http.StatusNotFound, err.Error())
		return
	}
	util.LoggerFromContext(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeDetail(w, http.StatusInternalServerError, "Unexpected error occurred!")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeDetail emits the error envelope clients key off of.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{
		"error":  true,
		"detail": detail,
		"status": status,
	})
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
