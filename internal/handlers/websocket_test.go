package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/voltlab/galvana/internal/common"
	"github.com/voltlab/galvana/internal/interfaces"
	"github.com/voltlab/galvana/internal/services/events"
)

// dialTestSocket connects a client to the handler under test
func dialTestSocket(t *testing.T, handler *WebSocketHandler) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	return msg
}

func TestWebSocketConnectionHandshake(t *testing.T) {
	handler := NewWebSocketHandler(nil, arbor.NewLogger(), &common.WebSocketConfig{})

	conn := dialTestSocket(t, handler)

	msg := readMessage(t, conn)
	if msg.Type != "connected" {
		t.Fatalf("Expected connected message, got %s", msg.Type)
	}
	payload, ok := msg.Payload.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected object payload, got %v", msg.Payload)
	}
	if id, _ := payload["server_instance_id"].(string); id == "" {
		t.Errorf("Expected server_instance_id in payload, got %v", payload)
	}

	// Give the server loop a moment to register the client
	deadline := time.Now().Add(time.Second)
	for handler.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if handler.ClientCount() != 1 {
		t.Errorf("Expected 1 client, got %d", handler.ClientCount())
	}
}

func TestWebSocketBroadcastsRunEvents(t *testing.T) {
	eventService := events.NewService(arbor.NewLogger())
	handler := NewWebSocketHandler(eventService, arbor.NewLogger(), &common.WebSocketConfig{})

	conn := dialTestSocket(t, handler)
	readMessage(t, conn) // connected handshake

	event := interfaces.Event{
		Type:      interfaces.EventRunCompleted,
		Timestamp: time.Now(),
		Payload:   map[string]interface{}{"run_id": "run_a", "progress_pct": 100.0},
	}
	if err := eventService.PublishSync(context.Background(), event); err != nil {
		t.Fatalf("PublishSync failed: %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != "run_completed" {
		t.Fatalf("Expected run_completed, got %s", msg.Type)
	}
	payload, ok := msg.Payload.(map[string]interface{})
	if !ok || payload["run_id"] != "run_a" {
		t.Errorf("Expected run_id in payload, got %v", msg.Payload)
	}
}

func TestWebSocketThrottlesProgressEvents(t *testing.T) {
	eventService := events.NewService(arbor.NewLogger())
	handler := NewWebSocketHandler(eventService, arbor.NewLogger(), &common.WebSocketConfig{
		ProgressThrottle: "1h", // effectively: first event only
	})

	conn := dialTestSocket(t, handler)
	readMessage(t, conn) // connected handshake

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		event := interfaces.Event{
			Type:      interfaces.EventRunProgress,
			Timestamp: time.Now(),
			Payload:   map[string]interface{}{"run_id": "run_a", "progress_pct": float64(i)},
		}
		if err := eventService.PublishSync(ctx, event); err != nil {
			t.Fatalf("PublishSync failed: %v", err)
		}
	}

	// Terminal events bypass the progress throttler
	completed := interfaces.Event{
		Type:      interfaces.EventRunCompleted,
		Timestamp: time.Now(),
		Payload:   map[string]interface{}{"run_id": "run_a"},
	}
	if err := eventService.PublishSync(ctx, completed); err != nil {
		t.Fatalf("PublishSync failed: %v", err)
	}

	// Exactly one progress message got through, then the completion
	first := readMessage(t, conn)
	if first.Type != "run_progress" {
		t.Fatalf("Expected run_progress, got %s", first.Type)
	}
	second := readMessage(t, conn)
	if second.Type != "run_completed" {
		t.Errorf("Expected run_completed after throttled progress, got %s", second.Type)
	}
}
