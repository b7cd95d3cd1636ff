package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"
	"reelgate/internal/core/services"
	"reelgate/internal/infrastructure/middleware"
	"reelgate/pkg/config"
	"reelgate/pkg/errors"
	"reelgate/pkg/tracing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Client message types.
const (
	MessageSubscribe   = "subscribe"
	MessageUnsubscribe = "unsubscribe"
	MessagePing        = "ping"
)

// Server message types.
const (
	MessageSnapshot = "snapshot"
	MessageChange   = "change"
	MessageError    = "error"
	MessagePong     = "pong"
)

// Error codes that have no HTTP equivalent.
const (
	CodeInvalidMessage       = "invalid_message"
	CodeTooManySubscriptions = "too_many_subscriptions"
	CodeSubscriptionDropped  = "subscription_dropped"
)

type ClientMessage struct {
	Type       string            `json:"type"`
	ID         string            `json:"id,omitempty"`
	Collection domain.Collection `json:"collection,omitempty"`
	DocID      string            `json:"doc_id,omitempty"`
}

type ServerMessage struct {
	Type       string              `json:"type"`
	ID         string              `json:"id,omitempty"`
	Collection domain.Collection   `json:"collection,omitempty"`
	DocID      string              `json:"doc_id,omitempty"`
	Data       interface{}         `json:"data,omitempty"`
	Change     *domain.ChangeEvent `json:"change,omitempty"`
	Code       string              `json:"code,omitempty"`
	Message    string              `json:"message,omitempty"`
}

type TokenValidator interface {
	ValidateToken(token string) (*services.Claims, error)
}

type Options struct {
	PingInterval     time.Duration
	PongTimeout      time.Duration
	WriteTimeout     time.Duration
	MaxSubscriptions int
	MaxMessageSize   int64
	AllowedOrigins   []string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PingInterval:     cfg.Realtime.PingInterval,
		PongTimeout:      cfg.Realtime.PongTimeout,
		WriteTimeout:     cfg.Realtime.WriteTimeout,
		MaxSubscriptions: cfg.Realtime.MaxSubscriptions,
		MaxMessageSize:   cfg.Realtime.MaxMessageSizeBytes,
		AllowedOrigins:   cfg.Auth.AllowedOrigins,
	}
}

// WebSocketServer serves live subscriptions at /ws.
type WebSocketServer struct {
	hub       *Hub
	snapshots ports.SnapshotService
	tokens    TokenValidator
	upgrader  websocket.Upgrader
	opts      Options
	metrics   Metrics
	logger    *zap.SugaredLogger

	mu          sync.RWMutex
	connections map[string]*session
}

func NewWebSocketServer(hub *Hub, snapshots ports.SnapshotService, tokens TokenValidator, opts Options, metrics Metrics, logger *zap.SugaredLogger) *WebSocketServer {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.PongTimeout <= opts.PingInterval {
		opts.PongTimeout = 2 * opts.PingInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.MaxSubscriptions <= 0 {
		opts.MaxSubscriptions = 32
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 64 << 10
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &WebSocketServer{
		hub:       hub,
		snapshots: snapshots,
		tokens:    tokens,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin(opts.AllowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		opts:        opts,
		metrics:     metrics,
		logger:      logger,
		connections: make(map[string]*session),
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

type endedSubscription struct {
	id  string
	sub *Subscriber
}

type session struct {
	id             string
	conn           *websocket.Conn
	viewer         domain.Viewer
	acceptLanguage string

	subs  map[string]*Subscriber
	out   chan ServerMessage
	ended chan endedSubscription
	done  chan struct{}
	wg    sync.WaitGroup
}

// ConnectionCount returns the number of open connections.
func (s *WebSocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

// Shutdown sends a going-away close frame to every client and closes the
// connections.
func (s *WebSocketServer) Shutdown() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	deadline := time.Now().Add(s.opts.WriteTimeout)
	for _, sess := range s.connections {
		_ = sess.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		sess.conn.Close()
	}
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	viewer, err := s.authenticate(r)
	if err != nil {
		appErr := middleware.ToAppError(err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(appErr.HTTPStatus)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":   string(appErr.Code),
			"message": middleware.LocalizedMessage(appErr, r.Header.Get("Accept-Language")),
		})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(s.opts.MaxMessageSize)

	sess := &session{
		id:             uuid.NewString(),
		conn:           conn,
		viewer:         viewer,
		acceptLanguage: r.Header.Get("Accept-Language"),
		subs:           make(map[string]*Subscriber),
		out:            make(chan ServerMessage, 16),
		ended:          make(chan endedSubscription, 4),
		done:           make(chan struct{}),
	}

	s.mu.Lock()
	s.connections[sess.id] = sess
	s.mu.Unlock()
	s.metrics.ConnectionOpened()

	s.logger.Infow("websocket connected",
		"connection_id", sess.id,
		"user_id", viewer.UserID,
		"remote_addr", r.RemoteAddr,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.serve(ctx, sess)

	s.mu.Lock()
	delete(s.connections, sess.id)
	s.mu.Unlock()
	s.metrics.ConnectionClosed()

	s.logger.Infow("websocket disconnected", "connection_id", sess.id, "user_id", viewer.UserID)
}

// authenticate accepts an access token in the access_token query parameter
// or a bearer header. No token means an anonymous viewer.
func (s *WebSocketServer) authenticate(r *http.Request) (domain.Viewer, error) {
	token := r.URL.Query().Get("access_token")
	if token == "" {
		token = middleware.BearerToken(r)
	}
	if token == "" {
		return domain.Viewer{}, nil
	}
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return domain.Viewer{}, err
	}
	return claims.Viewer(), nil
}

func (s *WebSocketServer) serve(ctx context.Context, sess *session) {
	conn := sess.conn

	conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.opts.PingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan []byte, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				select {
				case errorChan <- err:
				case <-sess.done:
				}
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
			select {
			case messageChan <- data:
			case <-sess.done:
				return
			}
		}
	}()

	defer s.cleanup(sess)

	for {
		select {
		case data := <-messageChan:
			if err := s.handleMessage(ctx, sess, data); err != nil {
				s.logger.Infow("error writing to websocket", "connection_id", sess.id, "error", err)
				return
			}

		case msg := <-sess.out:
			if err := s.write(sess, msg); err != nil {
				s.logger.Infow("error writing to websocket", "connection_id", sess.id, "error", err)
				return
			}

		case e := <-sess.ended:
			// A subscription still registered when its channel closes was
			// dropped by the hub.
			if sess.subs[e.id] != e.sub {
				continue
			}
			delete(sess.subs, e.id)
			msg := errorMessage(e.id, CodeSubscriptionDropped, "subscription dropped because the client fell behind")
			if err := s.write(sess, msg); err != nil {
				return
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Infow("error sending ping", "connection_id", sess.id, "error", err)
				return
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("error reading from websocket", "connection_id", sess.id, "error", err)
			}
			return
		}
	}
}

func (s *WebSocketServer) cleanup(sess *session) {
	close(sess.done)
	for id, sub := range sess.subs {
		delete(sess.subs, id)
		s.hub.Unsubscribe(sub)
	}
	sess.conn.Close()
	sess.wg.Wait()
}

func (s *WebSocketServer) write(sess *session, msg ServerMessage) error {
	sess.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	return sess.conn.WriteJSON(msg)
}

// handleMessage answers one client message. Only write failures are
// returned; protocol errors are reported to the client.
func (s *WebSocketServer) handleMessage(ctx context.Context, sess *session, data []byte) error {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return s.write(sess, errorMessage("", CodeInvalidMessage, "message is not valid JSON"))
	}

	ctx, span := tracing.TraceWebSocketMessage(ctx, msg.Type, string(msg.Collection))
	defer span.End()
	span.SetAttributes(attribute.String("connection.id", sess.id))

	switch msg.Type {
	case MessagePing:
		return s.write(sess, ServerMessage{Type: MessagePong, ID: msg.ID})
	case MessageSubscribe:
		return s.subscribe(ctx, sess, msg)
	case MessageUnsubscribe:
		return s.unsubscribe(sess, msg)
	default:
		return s.write(sess, errorMessage(msg.ID, CodeInvalidMessage, "unknown message type "+msg.Type))
	}
}

func (s *WebSocketServer) subscribe(ctx context.Context, sess *session, msg ClientMessage) error {
	switch {
	case msg.ID == "":
		return s.write(sess, s.appErrorMessage(sess, msg.ID, errors.NewInvalidInputError("id is required")))
	case !msg.Collection.Valid():
		return s.write(sess, s.appErrorMessage(sess, msg.ID, errors.NewInvalidInputError("unknown collection "+string(msg.Collection))))
	case sess.subs[msg.ID] != nil:
		return s.write(sess, s.appErrorMessage(sess, msg.ID, errors.NewConflictError("subscription id already in use")))
	case len(sess.subs) >= s.opts.MaxSubscriptions:
		return s.write(sess, errorMessage(msg.ID, CodeTooManySubscriptions, "too many subscriptions on this connection"))
	}

	// Subscribe before reading the snapshot so no change falls between them.
	sub := s.hub.Subscribe(Subscription{
		Collection: msg.Collection,
		DocID:      msg.DocID,
		Viewer:     sess.viewer,
	})

	snapshot, err := s.snapshots.Snapshot(ctx, sess.viewer, msg.Collection, msg.DocID)
	if err != nil {
		s.hub.Unsubscribe(sub)
		tracing.RecordError(ctx, err)
		return s.write(sess, s.appErrorMessage(sess, msg.ID, middleware.ToAppError(err)))
	}

	if msg.DocID == "" {
		if ids, ok := snapshotDocIDs(snapshot); ok {
			sub.Seed(ids)
		}
	}

	sess.subs[msg.ID] = sub
	if err := s.write(sess, ServerMessage{
		Type:       MessageSnapshot,
		ID:         msg.ID,
		Collection: msg.Collection,
		DocID:      msg.DocID,
		Data:       snapshot,
	}); err != nil {
		return err
	}

	sess.wg.Add(1)
	go s.forward(sess, msg.ID, sub)
	return nil
}

func (s *WebSocketServer) unsubscribe(sess *session, msg ClientMessage) error {
	sub, ok := sess.subs[msg.ID]
	if !ok {
		return s.write(sess, s.appErrorMessage(sess, msg.ID, errors.NewNotFoundError("subscription")))
	}
	delete(sess.subs, msg.ID)
	s.hub.Unsubscribe(sub)
	return nil
}

// forward copies events from sub to the connection until the subscriber
// channel is closed.
func (s *WebSocketServer) forward(sess *session, id string, sub *Subscriber) {
	defer sess.wg.Done()

	for event := range sub.Events() {
		event := event
		msg := ServerMessage{
			Type:       MessageChange,
			ID:         id,
			Collection: event.Collection,
			DocID:      event.DocID,
			Change:     &event,
		}
		select {
		case sess.out <- msg:
		case <-sess.done:
			return
		}
	}

	select {
	case sess.ended <- endedSubscription{id: id, sub: sub}:
	case <-sess.done:
	}
}

func (s *WebSocketServer) appErrorMessage(sess *session, id string, appErr *errors.AppError) ServerMessage {
	return ServerMessage{
		Type:    MessageError,
		ID:      id,
		Code:    strings.ToLower(string(appErr.Code)),
		Message: middleware.LocalizedMessage(appErr, sess.acceptLanguage),
	}
}

// snapshotDocIDs lists the document ids in a collection snapshot. ok is
// false for snapshots it does not know how to read.
func snapshotDocIDs(snapshot interface{}) ([]string, bool) {
	var ids []string
	switch docs := snapshot.(type) {
	case []*domain.Video:
		for _, v := range docs {
			ids = append(ids, string(v.ID))
		}
	case []*domain.Page:
		for _, p := range docs {
			ids = append(ids, string(p.Slug))
		}
	case []domain.Profile:
		for _, p := range docs {
			ids = append(ids, string(p.ID))
		}
	default:
		return nil, false
	}
	return ids, true
}

func errorMessage(id, code, message string) ServerMessage {
	return ServerMessage{Type: MessageError, ID: id, Code: code, Message: message}
}
