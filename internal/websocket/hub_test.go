package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"bireader-backend/internal/models"
)

type staticTokens map[string]uuid.UUID

func (s staticTokens) ParseToken(token string) (uuid.UUID, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return uuid.Nil, errors.New("invalid token")
}

func TestHub_RejectsBadToken(t *testing.T) {
	hub := NewHub(nil, staticTokens{})
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	for _, query := range []string{"", "?token=nope"} {
		resp, err := http.Get(srv.URL + query)
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%q: expected %d, got %d", query, http.StatusUnauthorized, resp.StatusCode)
		}
	}
}

func TestHub_PublishUpdateReachesSocket(t *testing.T) {
	userID := uuid.New()
	hub := NewHub(nil, staticTokens{"good": userID})
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=good"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.connectionCount(userID) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("connection was never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.PublishUpdate(context.Background(), userID, models.WSMessage{
		Type:    "session_progress",
		Payload: models.SessionProgressEvent{CardIndex: 1, Progress: models.Progress{CompletedCards: 2, TotalCards: 3, Percentage: 67}},
	})
	// Other users' updates are not delivered.
	hub.PublishUpdate(context.Background(), uuid.New(), models.WSMessage{Type: "completed"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg struct {
		Type    string                      `json:"type"`
		Payload models.SessionProgressEvent `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != "session_progress" || msg.Payload.Progress.Percentage != 67 {
		t.Fatalf("unexpected message: %+v", msg)
	}
}
