package realtime

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegistry_MultipleConnections(t *testing.T) {
	reg := NewRegistry(NewMetrics())

	var offline []string
	reg.OnUserOffline(func(userID string) {
		offline = append(offline, userID)
	})

	for i := 0; i < 3; i++ {
		reg.Register(NewClient(fmt.Sprintf("c%d", i), "u1", "member", 1))
	}
	// Registering the same connection again changes nothing.
	reg.Register(NewClient("c0", "u1", "member", 1))

	if got := reg.CountForUser("u1"); got != 3 {
		t.Errorf("CountForUser() = %d, want 3", got)
	}
	if !reg.IsUserConnected("u1") {
		t.Error("IsUserConnected() = false, want true")
	}
	if got := reg.TotalConnectedUsers(); got != 1 {
		t.Errorf("TotalConnectedUsers() = %d, want 1", got)
	}

	if reg.Unregister("c0") {
		t.Error("Unregister(c0) reported last connection")
	}
	if reg.Unregister("c1") {
		t.Error("Unregister(c1) reported last connection")
	}
	if len(offline) != 0 {
		t.Fatalf("offline fired early: %v", offline)
	}

	if !reg.Unregister("c2") {
		t.Error("Unregister(c2) should report last connection")
	}
	if reg.Unregister("c2") {
		t.Error("second Unregister(c2) should be a no-op")
	}

	if reg.IsUserConnected("u1") {
		t.Error("IsUserConnected() = true after all connections closed")
	}
	if len(offline) != 1 || offline[0] != "u1" {
		t.Errorf("offline callbacks = %v, want [u1]", offline)
	}
}

func TestRegistry_UsersAreIndependent(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(NewClient("a1", "alice", "member", 1))
	reg.Register(NewClient("b1", "bob", "member", 1))
	reg.Register(NewClient("b2", "bob", "member", 1))

	tests := []struct {
		userID string
		want   int
	}{
		{"alice", 1},
		{"bob", 2},
		{"carol", 0},
	}
	for _, tt := range tests {
		if got := reg.CountForUser(tt.userID); got != tt.want {
			t.Errorf("CountForUser(%s) = %d, want %d", tt.userID, got, tt.want)
		}
	}
	if got := reg.TotalConnectedUsers(); got != 2 {
		t.Errorf("TotalConnectedUsers() = %d, want 2", got)
	}
	if got := reg.ConnectionCount(); got != 3 {
		t.Errorf("ConnectionCount() = %d, want 3", got)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry(NewMetrics())

	var mu sync.Mutex
	offline := 0
	reg.OnUserOffline(func(string) {
		mu.Lock()
		offline++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			reg.Register(NewClient(id, fmt.Sprintf("u%d", i%5), "member", 1))
			_ = reg.IsUserConnected("u0")
			reg.Unregister(id)
		}(i)
	}
	wg.Wait()

	if got := reg.ConnectionCount(); got != 0 {
		t.Errorf("ConnectionCount() = %d, want 0", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if offline < 5 {
		t.Errorf("offline callbacks = %d, want at least one per user", offline)
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	reg := NewRegistry(NewMetrics())
	fired := false
	reg.OnUserOffline(func(string) { fired = true })

	c := NewClient("c1", "u1", "member", 1)
	reg.Register(c)

	if n := reg.closeAll(); n != 1 {
		t.Errorf("closeAll() = %d, want 1", n)
	}
	if _, ok := <-c.Frames(); ok {
		t.Error("client queue should be closed")
	}
	if fired {
		t.Error("closeAll() must not fire offline callbacks")
	}
	if reg.IsUserConnected("u1") {
		t.Error("registry should be empty after closeAll()")
	}
}
