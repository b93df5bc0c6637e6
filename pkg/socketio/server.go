package socketio

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	socket "github.com/zishang520/socket.io/socket"
)

const (
	EventConnectionConfirmed = "connectionConfirmed"
	EventProgressUpdated     = "progressUpdated"
	EventLearnerProgress     = "learnerProgress"
	EventCourseWatched       = "courseWatched"
	EventError               = "error"
)

// Identity is the authenticated user attached to a socket.
type Identity struct {
	UserID   uuid.UUID
	FullName string
	Email    string
	Staff    bool
}

// Authenticator resolves a bearer token into an identity.
type Authenticator func(ctx context.Context, token string) (Identity, error)

// Server pushes progress events to learners (user rooms) and to staff
// watching a course (course rooms).
type Server struct {
	io           *socket.Server
	logger       *slog.Logger
	authenticate Authenticator

	heartbeatStop chan struct{}
	heartbeatWG   sync.WaitGroup

	connMutex   sync.RWMutex
	connections map[string]*socket.Socket
}

// NewServer creates a Socket.IO server mounted at /socket.io.
func NewServer(authenticate Authenticator, logger *slog.Logger) (*Server, error) {
	if authenticate == nil {
		return nil, errors.New("socketio: authenticator is required")
	}

	opts := socket.DefaultServerOptions()
	opts.SetPingTimeout(60 * time.Second)
	opts.SetPingInterval(25 * time.Second)
	opts.SetServeClient(false)
	opts.SetPath("/socket.io")

	s := &Server{
		io:           socket.NewServer(nil, opts),
		logger:       logger,
		authenticate: authenticate,
		connections:  make(map[string]*socket.Socket),
	}

	s.setupEventHandlers()
	s.startHeartbeat()

	return s, nil
}

// GetHandler returns the HTTP handler for Socket.IO.
func (s *Server) GetHandler() http.Handler {
	return s.io.ServeHandler(nil)
}

// Close shuts down the Socket.IO server.
func (s *Server) Close() error {
	if stop := s.heartbeatStop; stop != nil {
		close(stop)
		s.heartbeatWG.Wait()
		s.heartbeatStop = nil
	}

	done := make(chan struct{})
	s.io.Close(func() { close(done) })
	<-done
	return nil
}

// PublishProgress sends payload to the learner's own sockets and to staff
// watching the course.
func (s *Server) PublishProgress(_ context.Context, userID, courseID uuid.UUID, payload any) error {
	if err := s.io.To(userRoom(userID)).Emit(EventProgressUpdated, payload); err != nil {
		return err
	}
	return s.io.To(courseRoom(courseID)).Emit(EventLearnerProgress, map[string]any{
		"userId":   userID.String(),
		"courseId": courseID.String(),
		"progress": payload,
	})
}

// ConnectionCount returns the number of live sockets on this instance.
func (s *Server) ConnectionCount() int {
	s.connMutex.RLock()
	defer s.connMutex.RUnlock()
	return len(s.connections)
}

func (s *Server) setupEventHandlers() {
	s.io.Use(s.connectionMiddleware)
	s.io.On("connection", func(args ...any) {
		sock, ok := args[0].(*socket.Socket)
		if !ok {
			s.logger.Error("unexpected connection payload", slog.Any("payload", args))
			return
		}
		s.handleConnection(sock)
	})
}

func (s *Server) connectionMiddleware(sock *socket.Socket, next func(*socket.ExtendedError)) {
	token := extractToken(sock)
	if token == "" {
		s.logger.Warn("socket connection rejected: missing token")
		next(socket.NewExtendedError("missing authentication token", map[string]any{"code": "MISSING_TOKEN"}))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	identity, err := s.authenticate(ctx, token)
	if err != nil {
		s.logger.Warn("socket connection rejected", slog.String("error", err.Error()))
		next(socket.NewExtendedError("invalid token", map[string]any{"code": "INVALID_TOKEN"}))
		return
	}

	sock.SetData(&identity)
	next(nil)
}

func (s *Server) handleConnection(sock *socket.Socket) {
	identity := identityOf(sock)
	if identity == nil {
		s.logger.Error("connection established without user context")
		sock.Disconnect(true)
		return
	}

	s.connMutex.Lock()
	s.connections[string(sock.Id())] = sock
	s.connMutex.Unlock()

	s.logger.Info("socket connected",
		slog.String("userId", identity.UserID.String()),
		slog.String("connId", string(sock.Id())),
	)

	sock.Join(userRoom(identity.UserID))

	if err := sock.Emit(EventConnectionConfirmed, map[string]any{
		"userId":    identity.UserID.String(),
		"userName":  identity.FullName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		s.logger.Warn("failed to emit connection confirmation", slog.String("error", err.Error()))
	}

	sock.On("watchCourse", func(args ...any) {
		s.handleWatchCourse(sock, identity, stringArg(args), true)
	})
	sock.On("unwatchCourse", func(args ...any) {
		s.handleWatchCourse(sock, identity, stringArg(args), false)
	})
	sock.On("disconnect", func(args ...any) {
		reason := "client"
		if len(args) > 0 {
			if r, ok := args[0].(string); ok {
				reason = r
			}
		}
		s.handleDisconnect(sock, identity, reason)
	})
}

// handleWatchCourse lets staff follow every learner's progress in a course.
func (s *Server) handleWatchCourse(sock *socket.Socket, identity *Identity, rawCourseID string, watch bool) {
	if !identity.Staff {
		s.emitError(sock, "FORBIDDEN", "only instructors can watch course progress")
		return
	}

	courseID, err := uuid.Parse(strings.TrimSpace(rawCourseID))
	if err != nil {
		s.emitError(sock, "INVALID_INPUT", "courseId must be a UUID")
		return
	}

	if watch {
		sock.Join(courseRoom(courseID))
	} else {
		sock.Leave(courseRoom(courseID))
	}

	if err := sock.Emit(EventCourseWatched, map[string]any{"courseId": courseID.String(), "watching": watch}); err != nil {
		s.logger.Debug("failed to emit courseWatched", slog.String("error", err.Error()))
	}
}

func (s *Server) handleDisconnect(sock *socket.Socket, identity *Identity, reason string) {
	s.connMutex.Lock()
	delete(s.connections, string(sock.Id()))
	s.connMutex.Unlock()

	s.logger.Info("socket disconnected",
		slog.String("userId", identity.UserID.String()),
		slog.String("reason", reason),
	)
}

func (s *Server) startHeartbeat() {
	s.heartbeatStop = make(chan struct{})
	s.heartbeatWG.Add(1)

	go func() {
		defer s.heartbeatWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sendHeartbeat()
			case <-s.heartbeatStop:
				return
			}
		}
	}()
}

func (s *Server) sendHeartbeat() {
	timestamp := time.Now().Unix()

	s.connMutex.RLock()
	defer s.connMutex.RUnlock()

	for id, sock := range s.connections {
		if err := sock.Emit("ping", timestamp); err != nil {
			s.logger.Debug("heartbeat emit failed", slog.String("connId", id), slog.String("error", err.Error()))
		}
	}
}

func (s *Server) emitError(sock *socket.Socket, code, message string) {
	if err := sock.Emit(EventError, map[string]any{"code": code, "message": message}); err != nil {
		s.logger.Debug("failed to emit error", slog.String("error", err.Error()))
	}
}

func identityOf(sock *socket.Socket) *Identity {
	if sock == nil {
		return nil
	}
	identity, _ := sock.Data().(*Identity)
	return identity
}

// extractToken reads the JWT from the handshake auth payload, the query
// string, or an Authorization header.
func extractToken(sock *socket.Socket) string {
	if sock == nil {
		return ""
	}

	if hs := sock.Handshake(); hs != nil {
		if authMap, ok := hs.Auth.(map[string]any); ok {
			if token, ok := authMap["token"].(string); ok && token != "" {
				return token
			}
		}
		if hs.Query != nil {
			if token, ok := hs.Query.Get("token"); ok && token != "" {
				return token
			}
		}
	}

	if conn := sock.Conn(); conn != nil {
		if ctx := conn.Request(); ctx != nil {
			if req := ctx.Request(); req != nil {
				if token := req.URL.Query().Get("token"); token != "" {
					return token
				}
				return bearer(req.Header.Get("Authorization"))
			}
		}
	}

	return ""
}

func bearer(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func stringArg(args []any) string {
	if len(args) == 0 {
		return ""
	}
	switch v := args[0].(type) {
	case string:
		return v
	case map[string]any:
		if id, ok := v["courseId"].(string); ok {
			return id
		}
	}
	return ""
}

func userRoom(userID uuid.UUID) socket.Room {
	return socket.Room("user_" + userID.String())
}

func courseRoom(courseID uuid.UUID) socket.Room {
	return socket.Room("course_" + courseID.String())
}
