package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"course-platform/internal/apperr"
	"course-platform/internal/auth"
	"course-platform/internal/models"

	"github.com/gorilla/websocket"
)

const testSecret = "feed-secret"

type adminsOnly map[string]bool

func (a adminsOnly) Authorize(_ context.Context, userID string) error {
	if userID == "" {
		return apperr.Authentication("authentication required")
	}
	if !a[userID] {
		return apperr.Authorization("access denied")
	}
	return nil
}

func startFeed(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub([]string{"http://localhost:3000"})
	hub.SetAuthorizer(adminsOnly{"admin-1": true})

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(auth.JWTMiddleware(testSecret)(http.HandlerFunc(hub.HandleWebSocket)))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, server
}

func feedURL(t *testing.T, server *httptest.Server, userID, courseID string) string {
	t.Helper()
	token, err := auth.NewService(nil, testSecret).IssueToken(&models.User{ID: userID})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/responses?token=" + token
	if courseID != "" {
		url += "&courseId=" + courseID
	}
	return url
}

func waitForCount(t *testing.T, hub *Hub, room string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count(room) != want {
		if time.Now().After(deadline) {
			t.Fatalf("room %s has %d clients, want %d", room, hub.Count(room), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

func view(id, courseID string) models.ResponseView {
	return models.ResponseView{
		ID:    id,
		Score: 67,
		Quiz:  models.QuizSummary{ID: "quiz-1", Course: models.CourseSummary{ID: courseID, Title: "Go Fundamentals"}},
	}
}

func TestFeedDeliversToCourseAndAllRooms(t *testing.T) {
	hub, server := startFeed(t)

	courseConn, _, err := websocket.DefaultDialer.Dial(feedURL(t, server, "admin-1", "course-1"), nil)
	if err != nil {
		t.Fatalf("dial course room: %v", err)
	}
	defer courseConn.Close()
	allConn, _, err := websocket.DefaultDialer.Dial(feedURL(t, server, "admin-1", ""), nil)
	if err != nil {
		t.Fatalf("dial all room: %v", err)
	}
	defer allConn.Close()

	waitForCount(t, hub, "course-1", 1)
	waitForCount(t, hub, AllRoom, 1)

	hub.ResponseSubmitted(view("other", "course-2"))
	hub.ResponseSubmitted(view("mine", "course-1"))

	msg := readMessage(t, courseConn)
	data, _ := msg.Data.(map[string]interface{})
	if msg.Type != TypeResponseSubmitted || data["id"] != "mine" {
		t.Fatalf("course room got %+v", msg)
	}

	first := readMessage(t, allConn)
	second := readMessage(t, allConn)
	firstData, _ := first.Data.(map[string]interface{})
	secondData, _ := second.Data.(map[string]interface{})
	if firstData["id"] != "other" || secondData["id"] != "mine" {
		t.Fatalf("all room got %v then %v", firstData["id"], secondData["id"])
	}
}

func TestFeedRejectsNonAdmins(t *testing.T) {
	hub, server := startFeed(t)

	_, resp, err := websocket.DefaultDialer.Dial(feedURL(t, server, "student-1", ""), nil)
	if err == nil {
		t.Fatalf("student dial succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("student dial response = %v, want 403", resp)
	}

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/responses"
	_, resp, err = websocket.DefaultDialer.Dial(url, nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous dial = (%v, %v), want 401", resp, err)
	}

	if hub.Count(AllRoom) != 0 {
		t.Fatalf("rejected clients were registered")
	}
}

func TestFeedRejectsForeignOrigin(t *testing.T) {
	_, server := startFeed(t)

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(feedURL(t, server, "admin-1", ""), header)
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign origin dial = (%v, %v), want 403", resp, err)
	}
}

func TestFeedClientLeaves(t *testing.T) {
	hub, server := startFeed(t)

	conn, _, err := websocket.DefaultDialer.Dial(feedURL(t, server, "admin-1", "course-1"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitForCount(t, hub, "course-1", 1)

	conn.Close()
	waitForCount(t, hub, "course-1", 0)
}

func TestResponseSubmittedWithoutClients(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	hub.ResponseSubmitted(view("r-1", "course-1"))
	cancel()
	<-stopped

	// After shutdown the notifier must not block submitters.
	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBuffer+10; i++ {
			hub.ResponseSubmitted(view("late", "course-1"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("ResponseSubmitted blocked after shutdown")
	}
}
