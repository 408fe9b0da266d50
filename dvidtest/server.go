/*
	Package dvidtest provides an in-process server that speaks the subset of the DVID HTTP
	API used by the client package: repo and instance creation, keyvalue data, and 3d
	voxel access for uint8blk and labelblk data.  It holds a single version per repo and
	is meant for hermetic tests of DVID clients.

		srv, err := dvidtest.NewServer()
		...
		defer srv.Close()
		conn, err := client.NewConnection(srv.Address())
*/
package dvidtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/cors"
	"github.com/zenazn/goji/web"

	"github.com/janelia-flyem/libdvid-go/dvid"
	"github.com/janelia-flyem/libdvid-go/storage"
	"github.com/janelia-flyem/libdvid-go/storage/badger"
)

const (
	// Version is the DVID version reported by the server.
	Version = "v1.0.0"

	// WebAPIPath is the root of the HTTP API.
	WebAPIPath = "/api/"

	// DefaultMaxThrottledOps is the number of throttled requests handled at once.
	DefaultMaxThrottledOps = 2
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithSecret requires every API request to carry a JWT signed with the HS256 secret.
func WithSecret(secret string) ServerOption {
	return func(s *Server) {
		s.secret = []byte(secret)
	}
}

// WithInMemory chooses an in-memory badger database, the default.
func WithInMemory(inMemory bool) ServerOption {
	return func(s *Server) {
		s.dbConfig.InMemory = inMemory
	}
}

// WithPath stores data in an on-disk badger database at path.  Repos persisted at the
// path by an earlier server are loaded.
func WithPath(path string) ServerOption {
	return func(s *Server) {
		s.dbConfig.Path = path
		s.dbConfig.InMemory = false
	}
}

// WithMaxThrottledOps sets how many "throttle=true" requests are handled at once.
// Others get 503 (Service Unavailable).
func WithMaxThrottledOps(n int) ServerOption {
	return func(s *Server) {
		s.maxThrottled = n
	}
}

// WithoutListener skips starting a network listener.  The Server can still be used
// as an http.Handler.
func WithoutListener() ServerOption {
	return func(s *Server) {
		s.noListener = true
	}
}

// Server is an in-process DVID-compatible HTTP server.
type Server struct {
	dbConfig     badger.Config
	db           storage.OrderedKeyValueDB
	secret       []byte
	maxThrottled int
	noListener   bool

	handler  http.Handler
	listener *httptest.Server
	started  time.Time

	throttle chan struct{}

	mu       sync.RWMutex
	repos    map[dvid.UUID]*repo
	nextID   storage.InstanceID
	closed   bool
	closeErr error
}

// NewServer opens the storage and, unless WithoutListener is given, starts listening
// on a local port.
func NewServer(opts ...ServerOption) (*Server, error) {
	s := &Server{
		dbConfig:     badger.Config{InMemory: true},
		maxThrottled: DefaultMaxThrottledOps,
		repos:        make(map[dvid.UUID]*repo),
		nextID:       1,
		started:      time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxThrottled < 1 {
		s.maxThrottled = 1
	}
	s.throttle = make(chan struct{}, s.maxThrottled)

	db, err := badger.Open(s.dbConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to open test server storage: %v", err)
	}
	s.db = db
	if err := s.loadMetadata(); err != nil {
		db.Close()
		return nil, err
	}

	s.handler = s.initRoutes()
	if !s.noListener {
		s.listener = httptest.NewServer(s)
		dvid.Debugf("Test DVID server listening at %s with %s\n", s.listener.URL, db)
	}
	return s, nil
}

func (s *Server) initRoutes() http.Handler {
	mux := web.New()
	mux.Use(cors.New(cors.Options{
		AllowedMethods: []string{"GET", "HEAD", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)
	if len(s.secret) != 0 {
		mux.Use(s.isAuthorized)
	}

	mux.Get("/api/server/info", s.serverInfoHandler)
	mux.Post("/api/repos", s.reposPostHandler)
	mux.Get("/api/repo/:uuid/info", s.repoInfoHandler)
	mux.Post("/api/repo/:uuid/instance", s.repoNewDataHandler)
	mux.Handle("/api/node/:uuid/:dataname/*", s.nodeHandler)
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		BadRequest(w, r, "unsupported endpoint %q", r.URL.Path)
	})
	return mux
}

// ServeHTTP lets the server be used as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// URL returns the base URL, e.g., "http://127.0.0.1:41235", or "" without a listener.
func (s *Server) URL() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.URL
}

// Address returns the host:port of the listener, or "" without a listener.
func (s *Server) Address() string {
	return strings.TrimPrefix(s.URL(), "http://")
}

// Close stops the listener and closes the storage.  It may be called more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.closeErr
	}
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}
	s.closeErr = s.db.Close()
	return s.closeErr
}

// BadRequest writes an error message with status 400 and logs it.
func BadRequest(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	errorResponse(w, r, http.StatusBadRequest, format, args...)
}

func errorResponse(w http.ResponseWriter, r *http.Request, status int, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	errorMsg := fmt.Sprintf("%s (%s).", message, r.URL.Path)
	dvid.Errorf("%s\n", errorMsg)
	http.Error(w, errorMsg, status)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		errorResponse(w, r, http.StatusInternalServerError, "unable to encode JSON: %v", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// throttled reserves a throttled op slot if requested, returning false with a 503
// response written if none is available.  The returned function releases the slot.
func (s *Server) throttled(w http.ResponseWriter, r *http.Request) (done func(), ok bool) {
	if r.URL.Query().Get("throttle") != "true" {
		return func() {}, true
	}
	select {
	case s.throttle <- struct{}{}:
		return func() { <-s.throttle }, true
	default:
		errorResponse(w, r, http.StatusServiceUnavailable, "server already running maximum of %d throttled operations", s.maxThrottled)
		return nil, false
	}
}

func (s *Server) serverInfoHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	numRepos := len(s.repos)
	s.mu.RUnlock()
	writeJSON(w, r, map[string]interface{}{
		"DVID Version":      Version,
		"Datastore Version": "1",
		"Storage backend":   s.db.Engine().String(),
		"Cores":             runtime.NumCPU(),
		"Maximum Cores":     runtime.GOMAXPROCS(0),
		"Server uptime":     time.Since(s.started).String(),
		"Repos":             numRepos,
	})
}
