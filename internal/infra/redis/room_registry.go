package redis

import (
	"context"
	"sync"
	"time"

	"github.com/jasa1aw/eduBack/internal/app"
	"github.com/redis/go-redis/v9"
)

// RoomRegistry is a Redis-aware room registry. Rooms themselves stay local so
// the in-process broadcast path is untouched; Redis marks room liveness by
// join code so other instances (and operators) can discover active rooms.
// True cross-instance fan-out would pair this with a pub/sub republisher.
type RoomRegistry struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	rooms  map[string]*app.Room
}

func NewRoomRegistry(client *redis.Client, ttl time.Duration) *RoomRegistry {
	return &RoomRegistry{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*app.Room),
	}
}

func (r *RoomRegistry) GetOrCreate(code string) *app.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[code]; ok {
		return room
	}
	room := app.NewRoom()
	r.rooms[code] = room
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), r.key(code), "1", r.ttl).Err()
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
		_ = r.client.Del(context.Background(), r.key(code)).Err()
	}
}

func (r *RoomRegistry) key(code string) string {
	return "competition:room:" + code
}
