package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MarceloDuretti/Financeiro-sub001/internal/protocol"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	DefaultPath       = "/ws"
	DefaultWriteWait  = 10 * time.Second
	DefaultReadLimit  = 64 << 10
	DefaultSendBuffer = 64

	connectedMessage = "connected to real-time updates"
)

// Server accepts websocket upgrades on a single path and registers
// authenticated connections in the Registry.
type Server struct {
	registry  *Registry
	auth      *Authenticator
	path      string
	origins   map[string]struct{}
	writeWait time.Duration
	readLimit int64
	buffer    int
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

// ServerOption configures a Server.
type ServerOption func(*Server)

func WithPath(path string) ServerOption {
	return func(s *Server) {
		if path != "" {
			s.path = path
		}
	}
}

// WithAllowedOrigins lists cross-origin pages allowed to connect.
// Same-host origins are always accepted.
func WithAllowedOrigins(origins ...string) ServerOption {
	return func(s *Server) {
		for _, o := range origins {
			o = strings.TrimRight(strings.TrimSpace(o), "/")
			if o != "" {
				s.origins[strings.ToLower(o)] = struct{}{}
			}
		}
	}
}

func WithWriteWait(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.writeWait = d
		}
	}
}

func WithReadLimit(n int64) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.readLimit = n
		}
	}
}

func WithSendBuffer(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.buffer = n
		}
	}
}

func WithLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewServer(registry *Registry, auth *Authenticator, opts ...ServerOption) *Server {
	s := &Server{
		registry:  registry,
		auth:      auth,
		path:      DefaultPath,
		origins:   make(map[string]struct{}),
		writeWait: DefaultWriteWait,
		readLimit: DefaultReadLimit,
		buffer:    DefaultSendBuffer,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Path returns the endpoint this server answers on.
func (s *Server) Path() string { return s.path }

// Handler serves the real-time endpoint and hands every other request to next.
func (s *Server) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != s.path {
			if next == nil {
				http.NotFound(w, r)
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		s.ServeHTTP(w, r)
	})
}

// ServeHTTP authenticates, upgrades and then blocks reading the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ident, err := s.auth.Authenticate(r)
	if err != nil {
		s.logger.Info("websocket upgrade rejected",
			zap.String("remote", r.RemoteAddr),
			zap.Bool("no_tenant", errors.Is(err, ErrNoTenant)),
			zap.Error(err),
		)
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request.
		s.logger.Warn("websocket upgrade failed", zap.String("user", ident.UserID), zap.Error(err))
		return
	}

	logger := s.logger.With(zap.String("user", ident.UserID), zap.String("tenant", ident.TenantID))
	sock := newSocket(ws, s.buffer, s.writeWait, logger)
	conn := NewConn(ident.UserID, ident.TenantID, sock)
	logger = logger.With(zap.String("conn", conn.ID))

	s.registry.Add(ident.TenantID, conn)
	logger.Info("websocket connected", zap.Int("tenant_connections", s.registry.Count(ident.TenantID)))

	defer func() {
		s.registry.Remove(conn)
		sock.Terminate()
		logger.Info("websocket disconnected", zap.Int("tenant_connections", s.registry.Count(ident.TenantID)))
	}()

	if hello, err := protocol.Encode(protocol.Connected{Message: connectedMessage, TenantID: ident.TenantID}); err == nil {
		sock.Send(hello)
	}
	go sock.writePump()

	ws.SetReadLimit(s.readLimit)
	ws.SetPongHandler(func(string) error {
		conn.MarkAlive()
		return nil
	})

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		s.handleInbound(conn, msg, logger)
	}
}

// handleInbound echoes well-formed JSON back as an ack and drops anything else.
func (s *Server) handleInbound(conn *Conn, msg []byte, logger *zap.Logger) {
	if !json.Valid(msg) {
		logger.Warn("dropping malformed client message", zap.Int("bytes", len(msg)))
		return
	}
	ack, err := protocol.Encode(protocol.Ack{Received: json.RawMessage(msg)})
	if err != nil {
		logger.Warn("encode ack", zap.Error(err))
		return
	}
	conn.Send(ack)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	_, ok := s.origins[strings.ToLower(strings.TrimRight(origin, "/"))]
	if !ok {
		s.logger.Info("rejected websocket origin", zap.String("origin", origin))
	}
	return ok
}
