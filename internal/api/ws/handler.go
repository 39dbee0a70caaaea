package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/BrandHub/backend/internal/domain/view"
	"github.com/GriffinCanCode/BrandHub/backend/internal/shared/id"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	maxMessage   = 64 << 10
	eventBuffer  = 256
	commandLimit = 30 * time.Second
)

// Message is a client command.
type Message struct {
	Type string `json:"type"`
	Slug string `json:"slug,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Handler manages WebSocket connections
type Handler struct {
	views    *view.Manager
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler. checkOrigin may be nil to
// accept any origin.
func NewHandler(views *view.Manager, checkOrigin func(*http.Request) bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		views:    views,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		logger:   logger.Named("ws"),
	}
}

// conn serializes writes; gorilla allows one concurrent writer.
type conn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteJSON(v)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// HandleConnection handles WebSocket upgrade and streams the view
func (h *Handler) HandleConnection(c *gin.Context) {
	raw := c.Param("id")
	if !id.IsViewID(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid view id"})
		return
	}
	v, err := h.views.Get(c.Request.Context(), id.ViewID(raw))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	cn := &conn{Conn: ws}
	defer cn.Close()

	events, unsubscribe := v.Subscribe(eventBuffer)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	if err := cn.send(gin.H{"type": "view", "view": v.Info(ctx, false)}); err != nil {
		return
	}

	go h.readLoop(ctx, cancel, cn, v)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				// View closed.
				_ = cn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "view closed"),
					time.Now().Add(writeWait))
				return
			}
			if err := cn.send(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := cn.ping(); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, cancel context.CancelFunc, cn *conn, v *view.View) {
	defer cancel()

	cn.SetReadLimit(maxMessage)
	_ = cn.SetReadDeadline(time.Now().Add(pongWait))
	cn.SetPongHandler(func(string) error {
		return cn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := cn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		_ = cn.SetReadDeadline(time.Now().Add(pongWait))

		if err := h.handle(ctx, cn, v, msg); err != nil {
			_ = cn.send(gin.H{"type": "error", "message": err.Error(), "command": msg.Type})
		}
	}
}

func (h *Handler) handle(ctx context.Context, cn *conn, v *view.View, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, commandLimit)
	defer cancel()

	switch msg.Type {
	case "ping":
		return cn.send(gin.H{"type": "pong"})
	case "select":
		if err := v.Controller.SelectBySlug(ctx, msg.Slug); err != nil {
			return err
		}
	case "clear":
		v.Controller.ClearSelection()
	case "navigate":
		if err := v.Controller.Navigate(ctx, msg.URL); err != nil {
			return err
		}
	default:
		return errUnknown(msg.Type)
	}
	return cn.send(gin.H{"type": "view", "view": v.Info(ctx, false)})
}

type errUnknown string

func (e errUnknown) Error() string { return "unknown message type: " + string(e) }
