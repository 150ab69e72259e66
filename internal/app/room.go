package app

import "sync"

// Event names of the realtime contract. Delivery is at-most-once per client;
// ordering is causal per room (events publish in coordinator commit order).
const (
	EventCompetitionJoined    = "competitionJoined"
	EventParticipantJoined    = "participantJoined"
	EventCompetitionUpdated   = "competitionUpdated"
	EventCompetitionStarted   = "competitionStarted"
	EventTeamMessage          = "teamMessage"
	EventLeaderboardUpdated   = "leaderboardUpdated"
	EventCompetitionCompleted = "competitionCompleted"
	EventCurrentQuestion      = "currentQuestion"
	EventAnswerResult         = "answerResult"
)

// Event is one realtime message with a JSON-serializable payload snapshot.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// RoomRegistry tracks the live rooms, keyed by competition join code.
type RoomRegistry interface {
	GetOrCreate(code string) *Room
	Get(code string) (*Room, bool)
	DeleteIfEmpty(code string)
}

// Room fans Coordinator events out to the connected participants of one
// competition. It holds no authoritative state; every payload is a snapshot
// computed from the store after the corresponding write committed.
type Room struct {
	mu          sync.RWMutex
	members     int
	subscribers map[chan Event]struct{}
}

func NewRoom() *Room {
	return &Room{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a listener and returns its channel with a cancel
// function. The caller must invoke cancel to avoid leaks.
func (r *Room) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	r.members++
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			r.members--
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber. Slow clients lose their oldest
// buffered event rather than blocking the broadcast.
func (r *Room) Publish(ev Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for ch := range r.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// IsEmpty reports whether the room has no subscribers left.
func (r *Room) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members == 0
}
