package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/dateischnell/internal/features"
	"github.com/codefionn/dateischnell/internal/logger"
	"github.com/codefionn/dateischnell/internal/search"
)

// handleSearchSocket runs the streaming search protocol on one
// websocket connection. Control messages start a search or cancel the
// running one; closing the connection cancels it too.
func (s *Server) handleSearchSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.flags.Enabled(features.FlagSuperSearch) {
		http.Error(w, "Search is disabled", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade WebSocket: %v", err)
		return
	}
	defer conn.Close()

	var (
		writeMu sync.Mutex
		wg      sync.WaitGroup
		ses     *search.Session
	)

	emit := func(ev search.Event) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(ev)
	}

	for {
		var req searchRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Error("Search socket read error: %v", err)
			}
			break
		}

		if req.Type == "cancel" {
			if ses != nil {
				ses.Cancel()
			}
			continue
		}

		// Only one search per connection at a time.
		if ses != nil {
			ses.Cancel()
			wg.Wait()
		}

		ses = search.NewSession()
		wg.Add(1)
		go func(ses *search.Session, req searchRequest) {
			defer wg.Done()
			if err := s.searcher.Run(ses, req.Pattern, req.SearchText, emit); err != nil {
				logger.Debug("Search ended: %v", err)
			}
		}(ses, req)
	}

	if ses != nil {
		ses.Cancel()
	}
	wg.Wait()
}
