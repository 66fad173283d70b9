package web

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/dateischnell/internal/features"
	"github.com/codefionn/dateischnell/internal/share"
)

type shareView struct {
	ID           string     `json:"id"`
	Created      time.Time  `json:"created"`
	Paths        []string   `json:"paths"`
	AllowedUsers []string   `json:"allowed_users,omitempty"`
	Type         string     `json:"type"`
	AllowList    []string   `json:"allow_list,omitempty"`
	AvoidList    []string   `json:"avoid_list,omitempty"`
	Expiry       *time.Time `json:"expiry,omitempty"`
	HasToken     bool       `json:"has_token"`
}

func viewOf(s *share.Share) shareView {
	return shareView{
		ID:           s.ID,
		Created:      s.Created,
		Paths:        s.Paths,
		AllowedUsers: s.AllowedUsers,
		Type:         s.Type,
		AllowList:    s.AllowList,
		AvoidList:    s.AvoidList,
		Expiry:       s.Expiry,
		HasToken:     s.SecretToken != "",
	}
}

func (s *Server) handleListShares(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	shares := s.shares.List()
	views := make([]shareView, 0, len(shares))
	for _, sh := range shares {
		views = append(views, viewOf(sh))
	}
	writeJSON(w, http.StatusOK, views)
}

type createShareRequest struct {
	Paths        []string   `json:"paths"`
	AllowedUsers []string   `json:"allowed_users"`
	Type         string     `json:"type"`
	AllowList    []string   `json:"allow_list"`
	AvoidList    []string   `json:"avoid_list"`
	Expiry       *time.Time `json:"expiry"`
	WithToken    bool       `json:"with_token"`
}

func (s *Server) handleCreateShare(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.flags.Enabled(features.FlagFileShare) {
		http.Error(w, "Sharing is disabled", http.StatusForbidden)
		return
	}

	var req createShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Every shared path must resolve inside the root.
	for i, p := range req.Paths {
		ref, err := s.guard.Resolve(p)
		if err != nil {
			writePathError(w, err)
			return
		}
		req.Paths[i] = ref.Rel
	}

	created, err := s.shares.Create(share.Options{
		Paths:        req.Paths,
		AllowedUsers: req.AllowedUsers,
		Type:         req.Type,
		AllowList:    req.AllowList,
		AvoidList:    req.AvoidList,
		Expiry:       req.Expiry,
		WithToken:    req.WithToken,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// The token is only revealed at creation time.
	resp := struct {
		shareView
		SecretToken string `json:"secret_token,omitempty"`
	}{viewOf(created), created.SecretToken}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleDeleteShare(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.shares.Delete(ps.ByName("id")); err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSharedDownload serves a file through a share link. Access is
// governed by the share itself, not the caller's role.
func (s *Server) handleSharedDownload(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !s.flags.Enabled(features.FlagFileShare) {
		http.Error(w, "Sharing is disabled", http.StatusForbidden)
		return
	}

	sh, ok := s.shares.Get(ps.ByName("id"))
	if !ok {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	if sh.SecretToken != "" && r.URL.Query().Get("token") != sh.SecretToken {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if sh.AllowedUsers != nil {
		ses, ok := s.sessionFromRequest(r)
		if !ok || !sh.UserAllowed(ses.Username) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	rel := strings.TrimPrefix(ps.ByName("path"), "/")
	if !sh.Covers(rel) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	ref, err := s.guard.Resolve(rel)
	if err != nil {
		writePathError(w, err)
		return
	}
	if ref.IsDir {
		http.Error(w, "Not a file", http.StatusBadRequest)
		return
	}

	stream, err := s.engine.Serve(ref.Path, nil)
	if err != nil {
		writePathError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition",
		"attachment; filename=\""+filepath.Base(ref.Path)+"\"")
	_, _ = stream.WriteTo(w)
}
