package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName = "legalrag-mcp-server"
	healthPath = "/health"
)

// Server exposes the legal search tools over MCP, either on HTTP
// (streamable HTTP and SSE) or on stdio.
type Server struct {
	config    ServerConfig
	sdkServer *mcp.Server
	tools     *Tools
	allowlist *IPAllowlist
	logger    *log.Logger
}

func NewServer(service SearchService, cfg ServerConfig) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("search service cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := log.New(log.Writer(), "[MCPServer] ", log.LstdFlags)
	s := &Server{
		config: cfg,
		sdkServer: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: cfg.Version,
		}, nil),
		tools:  NewTools(service, logger),
		logger: logger,
	}
	if err := s.tools.Register(s.sdkServer); err != nil {
		return nil, err
	}

	if len(cfg.AllowedIPs) > 0 {
		allowlist, err := NewIPAllowlist(cfg.AllowedIPs, logger)
		if err != nil {
			return nil, fmt.Errorf("invalid MCP_ALLOWED_IPS: %w", err)
		}
		s.allowlist = allowlist
	}
	return s, nil
}

func (s *Server) SetLogger(logger *log.Logger) {
	if logger == nil {
		return
	}
	s.logger = logger
	s.tools.logger = logger
	if s.allowlist != nil {
		s.allowlist.logger = logger
	}
}

// SetRecorder counts every successful tool call under the mcp mode.
func (s *Server) SetRecorder(recorder InvocationRecorder) {
	s.tools.recorder = recorder
}

// SDKServer returns the underlying MCP server, mainly for in-memory clients.
func (s *Server) SDKServer() *mcp.Server {
	return s.sdkServer
}

// Handler builds the HTTP routes: "/" serves streamable HTTP, "/mcp"
// accepts both streamable HTTP and SSE clients, "/health" is unauthenticated.
func (s *Server) Handler() http.Handler {
	getServer := func(*http.Request) *mcp.Server { return s.sdkServer }

	mux := http.NewServeMux()
	mux.Handle("/", mcp.NewStreamableHTTPHandler(getServer, nil))
	mux.Handle("/mcp", newDualTransportHandler(getServer))
	mux.HandleFunc(healthPath, s.handleHealth)

	var handler http.Handler = mux
	if s.allowlist != nil {
		handler = s.allowlist.Middleware(handler)
	}
	return s.loggingMiddleware(handler)
}

// ListenAndServe serves HTTP until ctx is cancelled, then shuts down
// within the configured timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address(), err)
	}
	return s.Serve(ctx, listener)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       2 * s.config.ReadTimeout,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("MCP server listening on %s", listener.Addr())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Printf("Shutting down MCP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown MCP server: %w", err)
	}
	return <-errCh
}

// RunStdio serves a single client over stdin/stdout until it disconnects
// or ctx is cancelled.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.sdkServer.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "healthy",
		"server":  serverName,
		"version": s.config.Version,
		"tools":   []string{SearchToolName, AskToolName},
	})
	if err != nil {
		s.logger.Printf("Failed to write health response: %v", err)
	}
}

// dualTransportHandler routes SSE sessions to the SSE handler and
// everything else to streamable HTTP.
type dualTransportHandler struct {
	streamable http.Handler
	sse        http.Handler
}

func newDualTransportHandler(getServer func(*http.Request) *mcp.Server) *dualTransportHandler {
	return &dualTransportHandler{
		streamable: mcp.NewStreamableHTTPHandler(getServer, nil),
		sse:        mcp.NewSSEHandler(getServer),
	}
}

func (h *dualTransportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost && r.URL.Query().Has("sessionid") {
		h.sse.ServeHTTP(w, r)
		return
	}
	if r.Method == http.MethodGet && acceptsEventStream(r) {
		h.sse.ServeHTTP(w, r)
		return
	}
	h.streamable.ServeHTTP(w, r)
}

func acceptsEventStream(r *http.Request) bool {
	for _, value := range strings.Split(strings.Join(r.Header.Values("Accept"), ","), ",") {
		if strings.TrimSpace(value) == "text/event-stream" {
			return true
		}
	}
	return false
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += int64(n)
	return n, err
}

// Flush keeps SSE streaming working through the wrapper.
func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r)

		s.logger.Printf(
			"Request: %s %s status=%d bytes=%d duration=%s client_ip=%s user_agent=%q",
			r.Method,
			r.URL.Path,
			lrw.status,
			lrw.size,
			time.Since(start),
			clientIPFromRequest(r),
			r.Header.Get("User-Agent"),
		)
	})
}
