package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestRoomRegistryLiveness(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	registry := NewRoomRegistry(newClient(mr), time.Minute)

	room := registry.GetOrCreate("ABC234")
	if !mr.Exists("competition:room:ABC234") {
		t.Fatal("expected liveness key after room creation")
	}
	if again := registry.GetOrCreate("ABC234"); again != room {
		t.Fatal("expected the same room instance per code")
	}

	_, cancel := room.Subscribe()

	// A room with subscribers survives the delete attempt.
	registry.DeleteIfEmpty("ABC234")
	if _, ok := registry.Get("ABC234"); !ok {
		t.Fatal("expected occupied room to remain")
	}

	cancel()
	registry.DeleteIfEmpty("ABC234")
	if _, ok := registry.Get("ABC234"); ok {
		t.Fatal("expected empty room to be dropped")
	}
	if mr.Exists("competition:room:ABC234") {
		t.Fatal("expected liveness key cleared with the room")
	}
}
