package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/netsblox/cloud/internal/auth"
	"github.com/netsblox/cloud/internal/logging"
	"github.com/netsblox/cloud/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// inboundFrame is the generic shape of a client->server WebSocket frame
// (spec.md §6: "frames with a type discriminator"). Only the discriminator
// is parsed eagerly; the remainder is re-decoded per type.
type inboundFrame struct {
	Type string `json:"type"`
}

// setClientStateFrame is the `"set-client-state"` inbound frame (spec.md
// §4.4's SetClientState command, carried over the wire).
type setClientStateFrame struct {
	State    ClientState `json:"state"`
	Username *string     `json:"username,omitempty"`
}

// messageFrame is the `"message"` inbound frame (spec.md §4.4's SendMessage
// command).
type messageFrame struct {
	Addresses []string        `json:"addresses"`
	Content   json.RawMessage `json:"content"`
}

// wsConnection is the subset of *websocket.Conn a wsHandle needs, narrowed
// for easy mocking, the same separation the teacher's session.wsConnection
// interface draws.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

// wsHandle is the TransportHandle backing a live WebSocket connection.
// Send is non-blocking (spec.md §4.2): a full buffer drops the frame rather
// than blocking the Topology Engine's single-writer goroutine.
type wsHandle struct {
	conn wsConnection
	out  chan []byte

	closeOnce sync.Once
}

func newWsHandle(conn wsConnection) *wsHandle {
	return &wsHandle{conn: conn, out: make(chan []byte, 256)}
}

// Send implements TransportHandle.
func (h *wsHandle) Send(frame []byte) error {
	select {
	case h.out <- frame:
		return nil
	default:
		return errFullSendBuffer
	}
}

func (h *wsHandle) close() {
	h.closeOnce.Do(func() { close(h.out) })
}

var errFullSendBuffer = errors.New("client send buffer full, dropping frame")

const writeWait = 10 * time.Second

func (h *wsHandle) writePump() {
	defer h.conn.Close()
	for frame := range h.out {
		h.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := h.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
	h.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Hub upgrades authenticated HTTP connections to WebSocket and registers
// them with the Topology Engine, adapted from the teacher's
// session.Hub.ServeWs — here a single shared Engine plays the role the
// teacher gives one Room per conversation, since spec.md's topology is one
// process-wide address space rather than per-room isolation.
type Hub struct {
	engine    *Engine
	validator auth.TokenValidator
	limiter   *ratelimit.RateLimiter
	upgrader  websocket.Upgrader
}

// NewHub builds a Hub over an already-running Engine. validator accepts
// either a production *auth.Validator or, for SKIP_AUTH development
// deployments, *auth.MockValidator.
func NewHub(engine *Engine, validator auth.TokenValidator, limiter *ratelimit.RateLimiter, allowedOrigins []string) *Hub {
	return &Hub{
		engine:    engine,
		validator: validator,
		limiter:   limiter,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originURL, err := url.Parse(origin)
				if err != nil {
					return false
				}
				for _, allowed := range allowedOrigins {
					allowedURL, err := url.Parse(allowed)
					if err == nil && originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
						return true
					}
				}
				return false
			},
		},
	}
}

// ServeWS handles `GET /ws/:projectId` (SPEC_FULL.md §11): authenticates,
// rate-limits, upgrades, and registers the connection as a new client with
// the Topology Engine (§4.4's AddClient). projectId is informational only
// here; placement happens via the client's first "set-client-state" frame.
func (h *Hub) ServeWS(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token not provided"})
		return
	}

	if _, err := h.validator.ValidateToken(tokenString); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	if h.limiter != nil && !h.limiter.CheckWebSocket(c) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "failed to upgrade websocket", zap.Error(err))
		return
	}

	id := ClientID("_" + uuid.NewString())
	handle := newWsHandle(conn)

	h.engine.AddClient(id, handle)
	go handle.writePump()
	go h.readPump(conn, id)
}

// readPump decodes inbound JSON frames and dispatches the corresponding
// Engine command, matching the teacher's per-client readPump goroutine
// shape with a JSON discriminator in place of protobuf.
func (h *Hub) readPump(conn wsConnection, id ClientID) {
	ctx := context.Background()
	defer func() {
		h.engine.RemoveClient(id)
		conn.Close()
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			h.engine.BrokenClient(id)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			logging.Warn(ctx, "failed to decode frame", zap.String("clientId", string(id)), zap.Error(err))
			continue
		}

		switch frame.Type {
		case "set-client-state":
			var f setClientStateFrame
			if err := json.Unmarshal(data, &f); err != nil {
				logging.Warn(ctx, "failed to decode set-client-state frame", zap.Error(err))
				continue
			}
			if f.Username != nil {
				h.engine.SetClientState(id, f.State, *f.Username, true)
			} else {
				h.engine.SetClientState(id, f.State, "", false)
			}
		case "message":
			var f messageFrame
			if err := json.Unmarshal(data, &f); err != nil {
				logging.Warn(ctx, "failed to decode message frame", zap.Error(err))
				continue
			}
			h.engine.SendMessage(f.Addresses, f.Content)
		default:
			logging.Warn(ctx, "unknown frame type", zap.String("type", frame.Type), zap.String("clientId", string(id)))
		}
	}
}
