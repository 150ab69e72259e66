package memory

import (
	"sync"

	"github.com/jasa1aw/eduBack/internal/app"
)

// RoomRegistry is the in-memory implementation of app.RoomRegistry.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*app.Room
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]*app.Room)}
}

func (r *RoomRegistry) GetOrCreate(code string) *app.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[code]; ok {
		return room
	}
	room := app.NewRoom()
	r.rooms[code] = room
	return room
}

func (r *RoomRegistry) Get(code string) (*app.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[code]
	return room, ok
}

func (r *RoomRegistry) DeleteIfEmpty(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[code]
	if !ok {
		return
	}
	if room.IsEmpty() {
		delete(r.rooms, code)
	}
}
