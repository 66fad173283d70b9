package web

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/dateischnell/internal/features"
)

func (s *Server) handleGetFlags(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.flags.Snapshot())
}

// handleSetFlags updates feature flags, persists them and broadcasts
// the new state to websocket subscribers.
func (s *Server) handleSetFlags(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var updates map[string]bool
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	known := make(map[string]bool, len(features.Known()))
	for _, name := range features.Known() {
		known[name] = true
	}
	for name := range updates {
		if !known[name] {
			http.Error(w, "Unknown flag: "+name, http.StatusBadRequest)
			return
		}
	}

	s.flags.SetAll(updates)
	snapshot := s.flags.Snapshot()
	if err := s.store.SaveFlags(snapshot); err != nil {
		http.Error(w, "Failed to persist flags", http.StatusInternalServerError)
		return
	}
	s.hub.BroadcastFlags(snapshot)

	writeJSON(w, http.StatusOK, snapshot)
}
