// Package stubserver is a stand-in for the document assistant backend. It
// speaks the same HTTP contract with canned answers and keeps just enough
// state (loaded document, chat history) for a client to walk the whole
// lifecycle. It performs no retrieval.
package stubserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"docassistant/models"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// MaxUploadBytes caps uploaded documents at 16 MiB
const MaxUploadBytes = 16 << 20

// Server is the stub backend
type Server struct {
	router     *mux.Router
	addr       string
	logger     *zap.Logger
	httpServer *http.Server

	mu       sync.Mutex
	document *loadedDocument
	history  []models.ChatMessage
}

type loadedDocument struct {
	name     string
	pages    int
	chunks   int
	loadedAt time.Time
}

// NewServer creates a stub backend that will listen on addr
func NewServer(addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if addr != "" && !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	s := &Server{
		router: mux.NewRouter(),
		addr:   addr,
		logger: logger.Named("stub"),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the same endpoints as the real backend
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.indexHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.statusHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/process-message", s.processMessageHandler).Methods(http.MethodPost)
	s.router.HandleFunc("/process-document", s.processDocumentHandler).Methods(http.MethodPost)
	s.router.HandleFunc("/clear-history", s.clearHistoryHandler).Methods(http.MethodPost)
}

// Handler returns the router wrapped with CORS
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(s.router)
}

// Serve accepts connections on l until Shutdown is called
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("stub backend listening", zap.String("addr", l.Addr().String()))

	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start listens on the configured address and serves until Shutdown
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// DocumentName returns the loaded document, if any
func (s *Server) DocumentName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.document == nil {
		return ""
	}
	return s.document.name
}

// HistoryLen returns the number of messages the stub remembers
func (s *Server) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}
