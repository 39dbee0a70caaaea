package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/BrandHub/backend/internal/domain/view"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bundle"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/host"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/runtime"
	"github.com/GriffinCanCode/BrandHub/backend/internal/shared/id"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setup(t *testing.T) (*view.Manager, *httptest.Server) {
	t.Helper()
	resolver, err := bundle.NewStatic(bundle.ToolBundle{
		ID: "1", Slug: "overlay", Title: "Overlay", IsActive: true,
		Script: `console.log('hello ' + (BrandHubParams.label || ''));`,
	})
	require.NoError(t, err)

	rt := runtime.DefaultConfig()
	rt.ScriptTimeout = time.Second
	views := view.NewManager(view.Options{
		Resolver: resolver,
		Frame:    host.Frame{APIBaseURL: "https://api.example.com", Runtime: rt},
	})
	t.Cleanup(views.Shutdown)

	r := gin.New()
	r.GET("/api/views/:id/stream", NewHandler(views, nil, nil).HandleConnection)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return views, srv
}

func dial(t *testing.T, srv *httptest.Server, viewID string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/views/" + viewID + "/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readUntil skips messages until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	for {
		msg := read(t, conn)
		if msg["type"] == typ {
			return msg
		}
	}
}

func TestStreamsViewEvents(t *testing.T) {
	views, srv := setup(t)
	v, err := views.Create(context.Background(), "/?label=Sale")
	require.NoError(t, err)

	conn := dial(t, srv, v.ID.String())

	hello := read(t, conn)
	assert.Equal(t, "view", hello["type"])
	assert.Equal(t, "empty", hello["view"].(map[string]any)["state"])

	require.NoError(t, conn.WriteJSON(Message{Type: "select", Slug: "overlay"}))

	console := readUntil(t, conn, "console")
	assert.Equal(t, "hello Sale", console["console"].(map[string]any)["message"])

	reply := readUntil(t, conn, "view")
	assert.Equal(t, "loaded", reply["view"].(map[string]any)["state"])
}

func TestStreamCommands(t *testing.T) {
	views, srv := setup(t)
	v, err := views.Create(context.Background(), "/")
	require.NoError(t, err)
	conn := dial(t, srv, v.ID.String())
	read(t, conn)

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	assert.Equal(t, "pong", readUntil(t, conn, "pong")["type"])

	require.NoError(t, conn.WriteJSON(Message{Type: "select", Slug: "nonexistent-tool"}))
	failed := readUntil(t, conn, "error")
	assert.Equal(t, "select", failed["command"])

	require.NoError(t, conn.WriteJSON(Message{Type: "shutdown"}))
	unknown := readUntil(t, conn, "error")
	assert.Contains(t, unknown["message"], "unknown message type")
}

func TestStreamEndsWhenViewCloses(t *testing.T) {
	views, srv := setup(t)
	v, err := views.Create(context.Background(), "/")
	require.NoError(t, err)
	conn := dial(t, srv, v.ID.String())
	read(t, conn)

	require.NoError(t, views.Close(context.Background(), v.ID))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
			return
		}
	}
}

func TestRejectsUnknownView(t *testing.T) {
	_, srv := setup(t)

	tests := []struct {
		name   string
		viewID string
		status int
	}{
		{"invalid", "nope", http.StatusBadRequest},
		{"unknown", id.NewViewID().String(), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/views/" + tt.viewID + "/stream"
			_, resp, err := websocket.DefaultDialer.Dial(u, nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
