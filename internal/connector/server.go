package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/cnap-oss/agent-runner/internal/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// DefaultShutdownTimeout은 종료 시 진행 중인 요청을 기다리는 최대 시간입니다.
const DefaultShutdownTimeout = 30 * time.Second

// Server는 A2A HTTP 서버입니다.
type Server struct {
	logger          *zap.Logger
	agent           common.AgentConfig
	dispatcher      *Dispatcher
	discovery       *Discovery
	readyOut        io.Writer
	shutdownTimeout time.Duration

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// ServerOption은 Server 옵션입니다.
type ServerOption func(*Server)

// WithReadyWriter는 준비 신호를 기록할 writer를 설정합니다. 기본값은 표준 출력입니다.
func WithReadyWriter(w io.Writer) ServerOption {
	return func(s *Server) {
		s.readyOut = w
	}
}

// WithShutdownTimeout은 graceful shutdown 대기 시간을 설정합니다.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// NewServer는 새로운 connector 서버를 생성합니다.
func NewServer(logger *zap.Logger, agent common.AgentConfig, tasks TaskService, metrics MetricsSource, opts ...ServerOption) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		logger:          logger,
		agent:           agent,
		dispatcher:      NewDispatcher(logger.Named("dispatcher"), tasks),
		discovery:       NewDiscovery(agent, metrics),
		readyOut:        os.Stdout,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler는 전체 라우트가 등록된 HTTP 핸들러를 반환합니다.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler)

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleNotFound)

	// A2A JSON-RPC
	r.Post("/", s.handleRPC)
	r.Post("/a2a", s.handleRPC)

	// Health & discovery
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleHealth)
	r.Get("/.well-known/agent-card.json", s.handleAgentCard)
	r.Get("/agent-card", s.handleAgentCard)

	return r
}

// Start는 listener를 바인드하고 준비 신호를 기록한 뒤 ctx가 끝날 때까지 요청을 처리합니다.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.agent.Address())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.agent.Address(), err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("Agent process started",
		zap.String("addr", ln.Addr().String()),
		zap.String("model", s.agent.ModelLabel()),
		zap.String("kitchen", s.agent.Kitchen),
		zap.Int("pid", os.Getpid()),
	)

	// 부모 프로세스에 listen 준비 완료를 알립니다
	if _, err := fmt.Fprintln(s.readyOut, ReadyLine); err != nil {
		s.logger.Warn("Failed to write ready line", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Connector server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	}
}

// Stop은 진행 중인 요청을 기다린 뒤 서버를 종료합니다.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	s.logger.Info("Stopping connector server")
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("Error during shutdown", zap.Error(err))
		return err
	}
	s.logger.Info("Connector server stopped")
	return nil
}

// Addr는 바인드된 주소를 반환합니다. Start 전에는 nil입니다.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody(ErrInvalidJSON.Error()))
		return
	}

	resp, err := s.dispatcher.Dispatch(r.Context(), body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.discovery.Health())
}

func (s *Server) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.discovery.Card())
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody("not found"))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
