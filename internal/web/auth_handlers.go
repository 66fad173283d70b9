package web

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/dateischnell/internal/auth"
	"github.com/codefionn/dateischnell/internal/logger"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ip := clientIP(r)
	if !s.limiter.Allow(ip) {
		http.Error(w, "Too many login attempts", http.StatusTooManyRequests)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	hash, role, ok := s.lookupAccount(req.Username)
	if !ok || !auth.VerifyPassword(hash, req.Password) {
		logger.Warn("Failed login for %q from %s", req.Username, ip)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	s.limiter.Reset(ip)

	token, err := s.sessions.Create(req.Username, role)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{Username: req.Username, Role: role})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		s.sessions.Revoke(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// lookupAccount checks configured users first, then the user table.
func (s *Server) lookupAccount(username string) (hash, role string, ok bool) {
	if user, found := s.cfg.Users[username]; found {
		return user.PasswordBcrypt, user.Role, true
	}
	rec, err := s.store.GetUser(username)
	if err != nil {
		logger.Error("Failed to look up user %q: %v", username, err)
		return "", "", false
	}
	if rec == nil {
		return "", "", false
	}
	return rec.PasswordHash, rec.Role, true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
