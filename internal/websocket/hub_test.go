package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-backoffice-console/internal/event"
)

func startHub(t *testing.T, origins []string) (*event.InMemoryBus, string) {
	t.Helper()

	bus := event.NewBus()
	hub := NewHub(bus)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(hub.Handler(origins))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	return bus, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHubBroadcastsSessionEvents(t *testing.T) {
	bus, wsURL := startHub(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration is asynchronous; publish until the client sees one.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				bus.Publish(event.New(event.TypeNavigate, "", event.NavigatePayload{Path: "/signin", Replace: true}))
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Type    event.Type            `json:"type"`
		Payload event.NavigatePayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(message, &got))
	assert.Equal(t, event.TypeNavigate, got.Type)
	assert.Equal(t, "/signin", got.Payload.Path)
	assert.True(t, got.Payload.Replace)
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	_, wsURL := startHub(t, []string{"http://127.0.0.1:7070"})

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
