package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/adaptivq/go/internal/models"
	"github.com/mcdev12/adaptivq/go/internal/practice/events"
)

func newTestServer(t *testing.T, exists SessionLookup) (*ConnectionManager, *httptest.Server) {
	t.Helper()
	cm := NewConnectionManager(DefaultConnectionConfig())
	ctx, cancel := context.WithCancel(context.Background())
	go cm.Start(ctx)

	mux := http.NewServeMux()
	NewWebSocketHandler(cm, exists).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return cm, srv
}

func wsURL(srv *httptest.Server, sessionID string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session?session_id=" + sessionID
}

func waitForConnections(t *testing.T, cm *ConnectionManager, sessionID uuid.UUID, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for cm.ConnectionCount(sessionID) != want {
		if time.Now().After(deadline) {
			t.Fatalf("connections = %d, want %d", cm.ConnectionCount(sessionID), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWebSocket_ReceivesSessionEvents(t *testing.T) {
	cm, srv := newTestServer(t, nil)
	sessionID := uuid.New()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, sessionID.String()), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	waitForConnections(t, cm, sessionID, 1)

	other, err := events.NewSessionEvent(uuid.New(), events.EventTypeTimeExpired, time.Now(), events.TimeExpiredPayload{QuestionID: "x"})
	if err != nil {
		t.Fatalf("NewSessionEvent() error = %v", err)
	}
	if err := cm.Publish(context.Background(), other); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	evt, err := events.NewSessionEvent(sessionID, events.EventTypeSessionEnded, time.Now(), events.SessionEndedPayload{
		Reason:   models.CompletionUserEnded,
		Answered: 1,
		Total:    3,
	})
	if err != nil {
		t.Fatalf("NewSessionEvent() error = %v", err)
	}
	if err := cm.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var got events.SessionEvent
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.ID != evt.ID || got.Type != events.EventTypeSessionEnded {
		t.Fatalf("received %s %s, want %s SessionEnded", got.ID, got.Type, evt.ID)
	}

	stats := cm.GetConnectionStats()
	if stats.TotalConnections != 1 || stats.ActiveSessions != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestWebSocket_RejectsBadRequests(t *testing.T) {
	known := uuid.New()
	_, srv := newTestServer(t, func(id uuid.UUID) (any, bool) { return nil, id == known })

	tests := []struct {
		name      string
		sessionID string
		want      int
	}{
		{name: "missing", sessionID: "", want: http.StatusBadRequest},
		{name: "malformed", sessionID: "not-a-uuid", want: http.StatusBadRequest},
		{name: "unknown", sessionID: uuid.New().String(), want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, tt.sessionID), nil)
			if err == nil {
				t.Fatalf("Dial() succeeded, want rejection")
			}
			if resp == nil || resp.StatusCode != tt.want {
				t.Fatalf("status = %v, want %d", resp, tt.want)
			}
		})
	}
}

func TestWebSocket_SendsSnapshotFirst(t *testing.T) {
	sessionID := uuid.New()
	state := map[string]any{"status": "ACTIVE", "question_index": 2}
	cm, srv := newTestServer(t, func(id uuid.UUID) (any, bool) { return state, id == sessionID })

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, sessionID.String()), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	waitForConnections(t, cm, sessionID, 1)

	evt, err := events.NewSessionEvent(sessionID, events.EventTypeTimeExpired, time.Now(), events.TimeExpiredPayload{QuestionID: "q3"})
	if err != nil {
		t.Fatalf("NewSessionEvent() error = %v", err)
	}
	if err := cm.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	var frames []events.SessionEvent
	for len(frames) < 2 {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		var frame events.SessionEvent
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		frames = append(frames, frame)
	}

	if frames[0].Type != SnapshotFrameType || frames[0].SessionID != sessionID.String() {
		t.Fatalf("first frame = %s for %s, want %s", frames[0].Type, frames[0].SessionID, SnapshotFrameType)
	}
	var got map[string]any
	if err := json.Unmarshal(frames[0].Data, &got); err != nil || got["status"] != "ACTIVE" {
		t.Errorf("snapshot data = %s (err %v)", frames[0].Data, err)
	}
	if frames[1].ID != evt.ID {
		t.Errorf("second frame = %s, want %s", frames[1].ID, evt.ID)
	}
}

func TestConnectionManager_UnregistersOnClose(t *testing.T) {
	cm, srv := newTestServer(t, nil)
	sessionID := uuid.New()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, sessionID.String()), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	waitForConnections(t, cm, sessionID, 1)

	conn.Close()
	waitForConnections(t, cm, sessionID, 0)
}

func TestPublish_RejectsMalformedSessionID(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	err := cm.Publish(context.Background(), events.SessionEvent{SessionID: "nope"})
	if err == nil {
		t.Fatalf("Publish() error = nil, want error")
	}
}
