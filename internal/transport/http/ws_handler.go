package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jasa1aw/eduBack/internal/app"
)

// WSHandler wires websocket connections into the competition coordinator.
type WSHandler struct {
	competitions *app.CompetitionService
	upgrader     websocket.Upgrader
}

func NewWSHandler(competitions *app.CompetitionService) *WSHandler {
	return &WSHandler{
		competitions: competitions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectTeamPayload struct {
	TeamID string `json:"teamId"`
}

type selectPlayerPayload struct {
	TeamID        string `json:"teamId"`
	ParticipantID string `json:"participantId"`
}

type answerPayload struct {
	QuestionID      string   `json:"questionId"`
	SelectedAnswers []string `json:"selectedAnswers"`
	UserAnswer      string   `json:"userAnswer"`
}

type chatPayload struct {
	Text string `json:"text"`
}

type joinedPayload struct {
	Participant any `json:"participant"`
	Competition any `json:"competition"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request, joins the caller into the competition room
// identified by the join code, and dispatches inbound commands.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	name := r.URL.Query().Get("name")
	if code == "" || name == "" {
		http.Error(w, "missing code or name", http.StatusBadRequest)
		return
	}
	var userID *string
	if u := r.URL.Query().Get("userId"); u != "" {
		userID = &u
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Subscribe before announcing the join so this client sees every event
	// caused by its own arrival.
	updates, cancel := h.competitions.Subscribe(code)
	defer cancel()

	participant, snapshot, err := h.competitions.JoinByCode(r.Context(), code, name, userID)
	if err != nil {
		_ = conn.WriteJSON(app.Event{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	send := make(chan app.Event, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// The welcome event goes out before the room pump starts so the client
	// always sees competitionJoined first.
	send <- app.Event{Type: app.EventCompetitionJoined, Payload: joinedPayload{Participant: participant, Competition: snapshot}}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- update:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "selectTeam":
			var payload selectTeamPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errEvent("invalid selectTeam payload")
				continue
			}
			if _, err := h.competitions.SelectTeam(r.Context(), participant.ID, payload.TeamID); err != nil {
				send <- errEvent(err.Error())
			}
		case "selectPlayer":
			var payload selectPlayerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errEvent("invalid selectPlayer payload")
				continue
			}
			target := payload.ParticipantID
			if target == "" {
				target = participant.ID
			}
			if _, err := h.competitions.SelectPlayer(r.Context(), payload.TeamID, target); err != nil {
				send <- errEvent(err.Error())
			}
		case "start":
			if userID == nil {
				send <- errEvent("only the creator may start")
				continue
			}
			if _, err := h.competitions.Start(r.Context(), *userID, snapshot.Competition.ID); err != nil {
				send <- errEvent(err.Error())
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errEvent("invalid answer payload")
				continue
			}
			if _, err := h.competitions.SubmitAnswer(r.Context(), participant.ID, payload.QuestionID, payload.SelectedAnswers, payload.UserAnswer); err != nil {
				send <- errEvent(err.Error())
			}
		case "teamMessage":
			var payload chatPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errEvent("invalid teamMessage payload")
				continue
			}
			if err := h.competitions.TeamMessage(r.Context(), participant.ID, payload.Text); err != nil {
				send <- errEvent(err.Error())
			}
		case "leaderboard":
			lb, err := h.competitions.Leaderboard(r.Context(), snapshot.Competition.ID)
			if err != nil {
				send <- errEvent(err.Error())
				continue
			}
			send <- app.Event{Type: app.EventLeaderboardUpdated, Payload: lb}
		default:
			send <- errEvent("unsupported message type")
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func errEvent(msg string) app.Event {
	return app.Event{Type: "error", Payload: errorPayload{Message: msg}}
}
