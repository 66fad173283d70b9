// Package web is the HTTP and websocket surface: login, file
// operations, sharing, feature flags and streaming search.
package web

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/net/netutil"

	"github.com/codefionn/dateischnell/internal/auth"
	"github.com/codefionn/dateischnell/internal/config"
	"github.com/codefionn/dateischnell/internal/content"
	"github.com/codefionn/dateischnell/internal/dirlist"
	"github.com/codefionn/dateischnell/internal/features"
	"github.com/codefionn/dateischnell/internal/logger"
	"github.com/codefionn/dateischnell/internal/pathguard"
	"github.com/codefionn/dateischnell/internal/search"
	"github.com/codefionn/dateischnell/internal/share"
	"github.com/codefionn/dateischnell/internal/store"
)

const (
	sessionCookie    = "dateischnell_session"
	sessionTTL       = 12 * time.Hour
	loginMaxAttempts = 5
	loginWindow      = 5 * time.Minute
	dirCacheTTL      = 5 * time.Second
	dirCacheEntries  = 256
)

// Server wires the engines and stores into an HTTP server.
type Server struct {
	cfg      *config.Config
	guard    *pathguard.Guard
	engine   *content.Engine
	searcher *search.Engine
	flags    *features.Flags
	store    *store.Store
	shares   *share.Manager
	lister   *dirlist.Lister
	sessions *auth.SessionManager
	limiter  *auth.RateLimiter
	hub      *Hub
	upgrader websocket.Upgrader

	router     *httprouter.Router
	httpServer *http.Server
	listener   net.Listener
}

// NewServer builds a server from cfg. The store is opened by the
// caller so it can be shared with migrations and CLI tooling.
func NewServer(cfg *config.Config, st *store.Store) (*Server, error) {
	guard, err := pathguard.New(cfg.RootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}

	flags := features.NewFlags()
	persisted, err := st.LoadFlags()
	if err != nil {
		return nil, fmt.Errorf("failed to load feature flags: %w", err)
	}
	flags.SetAll(persisted)

	shares, err := share.NewManager(st)
	if err != nil {
		return nil, err
	}

	engine := content.NewEngine(cfg.MmapMinSize, cfg.ChunkSize)

	s := &Server{
		cfg:      cfg,
		guard:    guard,
		engine:   engine,
		searcher: search.NewEngine(guard, engine, cfg.MaxSearchHits),
		flags:    flags,
		store:    st,
		shares:   shares,
		lister:   dirlist.New(guard, dirCacheTTL, dirCacheEntries),
		sessions: auth.NewSessionManager(sessionTTL),
		limiter:  auth.NewRateLimiter(loginMaxAttempts, loginWindow),
		hub:      NewHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *httprouter.Router {
	router := httprouter.New()

	router.POST("/api/login", s.handleLogin)
	router.POST("/api/logout", s.handleLogout)
	router.GET("/api/health", s.handleHealth)

	router.GET("/api/list/*path", s.requirePerm(auth.PermView, s.handleList))
	router.GET("/api/download/*path", s.requirePerm(auth.PermDownload, s.handleDownload))
	router.GET("/api/content/*path", s.requirePerm(auth.PermView, s.handleContent))
	router.GET("/api/lines/*path", s.requirePerm(auth.PermView, s.handleLines))
	router.POST("/api/upload/*path", s.requirePerm(auth.PermUpload, s.handleUpload))
	router.POST("/api/edit/*path", s.requirePerm(auth.PermEdit, s.handleEdit))
	router.POST("/api/rename/*path", s.requirePerm(auth.PermRename, s.handleRename))
	router.POST("/api/mkdir/*path", s.requirePerm(auth.PermUpload, s.handleMkdir))
	router.DELETE("/api/delete/*path", s.requirePerm(auth.PermDelete, s.handleDelete))

	router.GET("/api/flags", s.requirePerm(auth.PermView, s.handleGetFlags))
	router.POST("/api/flags", s.requirePerm(auth.PermAdmin, s.handleSetFlags))

	router.GET("/api/shares", s.requirePerm(auth.PermShare, s.handleListShares))
	router.POST("/api/shares", s.requirePerm(auth.PermShare, s.handleCreateShare))
	router.DELETE("/api/shares/:id", s.requirePerm(auth.PermShare, s.handleDeleteShare))
	router.GET("/shared/:id/*path", s.handleSharedDownload)

	router.GET("/ws/search", s.requirePerm(auth.PermView, s.handleSearchSocket))
	router.GET("/ws/flags", s.requirePerm(auth.PermView, s.handleFlagSocket))

	return router
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.gzipMiddleware(s.router)
}

// Start begins listening. It returns once the listener is bound; serve
// errors are logged from the background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
	}

	go s.hub.Run()

	go func() {
		logger.Info("Web server listening on %s", ln.Addr())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	logger.Info("Stopping web server...")
	s.hub.Stop()
	s.lister.Close()

	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// handleFlagSocket subscribes a connection to feature-flag updates.
func (s *Server) handleFlagSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade WebSocket: %v", err)
		return
	}

	client := NewClient(s.hub, conn, s.flags)
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requirePerm authenticates the request and checks the session role
// against perm. With no configured users every request is an admin;
// that keeps single-user setups friction-free.
func (s *Server) requirePerm(perm auth.Permission, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if len(s.cfg.Users) == 0 {
			next(w, r, ps)
			return
		}

		ses, ok := s.sessionFromRequest(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !auth.RoleAllowed(ses.Role, perm) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next(w, r, ps)
	}
}

func (s *Server) sessionFromRequest(r *http.Request) (*auth.Session, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	return s.sessions.Lookup(cookie.Value)
}

// etagFor derives a weak validator from file identity and modification
// state.
func etagFor(ref *pathguard.FileRef) string {
	d := xxhash.New()
	_, _ = io.WriteString(d, ref.Rel)
	_, _ = io.WriteString(d, "\x00")
	_, _ = io.WriteString(d, strconv.FormatInt(ref.Size, 10))
	_, _ = io.WriteString(d, "\x00")
	_, _ = io.WriteString(d, strconv.FormatInt(ref.ModTime.UnixNano(), 10))
	return fmt.Sprintf(`"%x"`, d.Sum64())
}

// gzipMiddleware compresses responses when the compression flag is on
// and the client accepts gzip. Websocket upgrades and byte-range
// responses pass through untouched.
func (s *Server) gzipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.flags.Enabled(features.FlagCompression) ||
			!strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") ||
			r.Header.Get("Upgrade") != "" ||
			r.Header.Get("Range") != "" {
			next.ServeHTTP(w, r)
			return
		}

		gz := gzip.NewWriter(w)
		defer gz.Close()

		w.Header().Set("Content-Encoding", "gzip")
		next.ServeHTTP(&gzipResponseWriter{ResponseWriter: w, writer: gz}, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	writer      *gzip.Writer
	wroteHeader bool
}

func (g *gzipResponseWriter) Write(b []byte) (int, error) {
	// An implicit WriteHeader on first write must also go through the
	// Content-Length strip below, or the response carries the
	// uncompressed length against a gzip body.
	if !g.wroteHeader {
		g.WriteHeader(http.StatusOK)
	}
	return g.writer.Write(b)
}

func (g *gzipResponseWriter) WriteHeader(code int) {
	if g.wroteHeader {
		return
	}
	g.wroteHeader = true
	// Content length is invalid once the body is compressed.
	g.Header().Del("Content-Length")
	g.ResponseWriter.WriteHeader(code)
}
