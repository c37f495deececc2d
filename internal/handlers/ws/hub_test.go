package ws

import (
	"testing"

	"github.com/pulsegrid/notify-backend/internal/models"
	"github.com/pulsegrid/notify-backend/internal/routing"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	t.Cleanup(hub.Stop)
	return hub
}

func containsCategory(categories []models.Category, want models.Category) bool {
	for _, c := range categories {
		if c == want {
			return true
		}
	}
	return false
}

func TestRegisterJoinsAllowedRooms(t *testing.T) {
	hub := newTestHub(t)

	categories := hub.Register(1, "conn-1", models.RoleUser, nil)
	if len(categories) != len(routing.AllowedCategories(models.RoleUser)) {
		t.Fatalf("connection joined %d rooms, want %d", len(categories), len(routing.AllowedCategories(models.RoleUser)))
	}
	if containsCategory(categories, models.CategoryAdmin) {
		t.Error("a user connection must not join the admin room")
	}
	if !containsCategory(categories, models.CategorySystem) {
		t.Error("a user connection should join the system room")
	}

	if !hub.IsOnline(1) {
		t.Error("user should be online after register")
	}
	if got := hub.Resolve(1, models.CategoryUser); len(got) != 1 || got[0] != "conn-1" {
		t.Errorf("Resolve = %v, want [conn-1]", got)
	}
	if got := hub.Resolve(1, models.CategoryAdmin); len(got) != 0 {
		t.Errorf("Resolve for admin category = %v, want none", got)
	}
}

func TestRegisterIsIdempotentPerConnection(t *testing.T) {
	hub := newTestHub(t)

	hub.Register(1, "conn-1", models.RoleUser, nil)
	hub.Register(1, "conn-1", models.RoleUser, nil)

	if got := hub.Count(); got != 1 {
		t.Errorf("Count = %d, want 1", got)
	}
	if got := hub.ConnectionCount(1); got != 1 {
		t.Errorf("ConnectionCount = %d, want 1", got)
	}
}

func TestMultipleConnectionsPerUser(t *testing.T) {
	hub := newTestHub(t)

	hub.Register(1, "tab-a", models.RoleUser, nil)
	hub.Register(1, "tab-b", models.RoleUser, nil)
	hub.Register(2, "other", models.RoleUser, nil)

	if got := hub.ConnectionCount(1); got != 2 {
		t.Errorf("ConnectionCount(1) = %d, want 2", got)
	}
	if got := len(hub.Resolve(1, models.CategoryUser)); got != 2 {
		t.Errorf("Resolve(1) returned %d connections, want 2", got)
	}
	if got := len(hub.OnlineUsers()); got != 2 {
		t.Errorf("OnlineUsers = %d users, want 2", got)
	}

	hub.Unregister("tab-a")
	if got := hub.ConnectionCount(1); got != 1 {
		t.Errorf("ConnectionCount(1) after unregister = %d, want 1", got)
	}
	if !hub.IsOnline(1) {
		t.Error("user 1 still has a live connection")
	}

	hub.Unregister("tab-b")
	if hub.IsOnline(1) {
		t.Error("user 1 should be offline after the last connection closes")
	}
}

func TestUnregisterUnknownConnectionIsSafe(t *testing.T) {
	hub := newTestHub(t)
	hub.Unregister("never-registered")

	hub.Register(1, "conn-1", models.RoleUser, nil)
	hub.Unregister("conn-1")
	hub.Unregister("conn-1")
	if got := hub.Count(); got != 0 {
		t.Errorf("Count = %d, want 0", got)
	}
}

func TestSubscribeHonorsPermissionRouter(t *testing.T) {
	hub := newTestHub(t)
	hub.Register(1, "user-conn", models.RoleUser, nil)
	hub.Register(2, "admin-conn", models.RoleAdmin, nil)

	if hub.Subscribe("user-conn", models.CategorySecurity) {
		t.Error("a user connection must not be able to join the security room")
	}
	if got := hub.Resolve(1, models.CategorySecurity); len(got) != 0 {
		t.Errorf("denied subscribe leaked into Resolve: %v", got)
	}

	if !hub.Subscribe("admin-conn", models.CategorySecurity) {
		t.Error("an admin connection should be able to join the security room")
	}
	if got := hub.Resolve(2, models.CategorySecurity); len(got) != 1 {
		t.Errorf("Resolve(admin, security) = %v, want one connection", got)
	}

	if hub.Subscribe("ghost", models.CategorySystem) {
		t.Error("subscribing an unknown connection must fail")
	}
}

func TestUnsubscribeLeavesRoom(t *testing.T) {
	hub := newTestHub(t)
	hub.Register(1, "conn-1", models.RoleUser, nil)

	hub.Unsubscribe("conn-1", models.CategoryJob)
	if got := hub.Resolve(1, models.CategoryJob); len(got) != 0 {
		t.Errorf("Resolve after unsubscribe = %v, want none", got)
	}
	// Other rooms are untouched
	if got := hub.Resolve(1, models.CategoryUser); len(got) != 1 {
		t.Errorf("Resolve for an unrelated category = %v, want one connection", got)
	}

	// Unknown connection or room: no-op
	hub.Unsubscribe("ghost", models.CategoryJob)
	hub.Unsubscribe("conn-1", models.CategoryJob)
}

func TestSendToUserOfflineIsNotAnError(t *testing.T) {
	hub := newTestHub(t)

	sent, err := hub.SendToUser(99, models.CategoryUser, map[string]string{"title": "x"})
	if err != nil {
		t.Fatalf("offline user should not produce an error, got %v", err)
	}
	if sent != 0 {
		t.Errorf("sent = %d, want 0", sent)
	}
}

func TestBroadcastEmptyRoom(t *testing.T) {
	hub := newTestHub(t)

	reached, err := hub.BroadcastToCategory(models.CategoryMaintenance, map[string]string{"title": "x"})
	if err != nil {
		t.Fatalf("empty room should not produce an error, got %v", err)
	}
	if len(reached) != 0 {
		t.Errorf("reached = %v, want empty", reached)
	}
}

func TestWriteToConnectionUnknownConnection(t *testing.T) {
	hub := newTestHub(t)

	if err := hub.WriteToConnection("gone", EventError, nil); err != ErrNoLiveConnection {
		t.Errorf("write to unknown connection = %v, want ErrNoLiveConnection", err)
	}
}

func TestWriteToConnectionUsesRegistryEntry(t *testing.T) {
	hub := newTestHub(t)
	hub.Register(1, "conn-1", models.RoleUser, nil)

	err := hub.WriteToConnection("conn-1", EventPong, map[string]interface{}{"ts": 1})
	if err != nil {
		t.Fatalf("write to live connection failed: %v", err)
	}
}
