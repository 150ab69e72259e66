package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jasa1aw/eduBack/internal/app"
	"github.com/jasa1aw/eduBack/internal/domain"
	"github.com/jasa1aw/eduBack/internal/infra/memory"
)

func TestWebSocketCompetitionFlow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedTestContent(wsSampleContent())
	svc := app.NewCompetitionService(store, app.NewStoreContentSource(store), memory.NewRoomRegistry())

	competition, teams, err := svc.Create(ctx, "teacher-1", "test-1", 2)
	if err != nil {
		t.Fatalf("create competition: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(svc).ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	base := "ws" + server.URL[len("http"):] + "/ws?code=" + competition.Code

	// The creator joins as a playing participant.
	alice := dial(t, base+"&name=Alice&userId=teacher-1")
	defer alice.Close()
	if typ, _ := readNext(t, alice); typ != app.EventCompetitionJoined {
		t.Fatalf("expected %s first, got %s", app.EventCompetitionJoined, typ)
	}

	bob := dial(t, base+"&name=Bob")
	defer bob.Close()
	if typ, _ := readNext(t, bob); typ != app.EventCompetitionJoined {
		t.Fatalf("expected %s first, got %s", app.EventCompetitionJoined, typ)
	}

	// Alice hears about Bob's arrival.
	waitFor(t, alice, app.EventParticipantJoined)

	writeCmd(t, alice, "selectTeam", map[string]any{"teamId": teams[0].ID})
	waitFor(t, alice, app.EventCompetitionUpdated)
	writeCmd(t, bob, "selectTeam", map[string]any{"teamId": teams[1].ID})
	waitFor(t, bob, app.EventCompetitionUpdated)

	// selectPlayer without a participantId targets the sender.
	writeCmd(t, alice, "selectPlayer", map[string]any{"teamId": teams[0].ID})
	waitFor(t, alice, app.EventCompetitionUpdated)
	writeCmd(t, bob, "selectPlayer", map[string]any{"teamId": teams[1].ID})
	waitFor(t, bob, app.EventCompetitionUpdated)

	writeCmd(t, alice, "start", nil)
	waitFor(t, bob, app.EventCompetitionStarted)
	waitFor(t, bob, app.EventCurrentQuestion)

	writeCmd(t, alice, "answer", map[string]any{
		"questionId":      "q1",
		"selectedAnswers": []string{"Paris", "Vienna"},
	})
	payload := waitFor(t, bob, app.EventAnswerResult)
	if correct, _ := payload["correct"].(bool); !correct {
		t.Fatalf("expected correct answer result, got %v", payload)
	}
	lb := waitFor(t, bob, app.EventLeaderboardUpdated)
	if lb["entries"] == nil {
		t.Fatalf("expected leaderboard entries, got %v", lb)
	}
}

func TestWebSocketRejectsUnknownCode(t *testing.T) {
	store := memory.NewStore()
	svc := app.NewCompetitionService(store, app.NewStoreContentSource(store), memory.NewRoomRegistry())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(svc).ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := dial(t, "ws"+server.URL[len("http"):]+"/ws?code=NOPE42&name=Alice")
	defer conn.Close()

	if typ, _ := readNext(t, conn); typ != "error" {
		t.Fatalf("expected error event, got %s", typ)
	}
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	return conn
}

func writeCmd(t *testing.T, conn *websocket.Conn, typ string, payload map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readNext(t *testing.T, conn *websocket.Conn) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg.Type, msg.Payload
}

// waitFor skips unrelated broadcast events until typ arrives.
func waitFor(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	for i := 0; i < 20; i++ {
		got, payload := readNext(t, conn)
		if got == typ {
			return payload
		}
		if got == "error" {
			t.Fatalf("error event while waiting for %s: %v", typ, payload)
		}
	}
	t.Fatalf("gave up waiting for %s", typ)
	return nil
}

func wsSampleContent() domain.TestContent {
	return domain.TestContent{
		Test: domain.Test{ID: "test-1", CreatorID: "teacher-1", Title: "Geography warm-up"},
		Questions: []domain.Question{
			{
				ID:             "q1",
				TestID:         "test-1",
				Title:          "Which of these are EU capitals?",
				Type:           domain.MultipleChoice,
				Options:        []string{"Paris", "Oslo", "Vienna", "Zurich"},
				CorrectAnswers: []string{"Paris", "Vienna"},
			},
			{
				ID:             "q2",
				TestID:         "test-1",
				Title:          "The Danube flows through Budapest.",
				Type:           domain.TrueFalse,
				Options:        []string{"true", "false"},
				CorrectAnswers: []string{"true"},
			},
		},
	}
}
