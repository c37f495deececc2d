package service

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pulsegrid/notify-backend/internal/models"
	"github.com/pulsegrid/notify-backend/internal/testutil"
	"golang.org/x/crypto/bcrypt"
)

func newAuthFixture(t *testing.T) (*AuthService, *mockStore) {
	t.Helper()
	helper := testutil.NewTestHelper(t)
	helper.SetupTestEnv()
	t.Cleanup(helper.TeardownTestEnv)
	store := newMockStore()
	return NewAuthService(&mockUserRepo{store: store}), store
}

func seedUser(t *testing.T, store *mockStore, username, password, role string) *models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hashed),
		Role:         role,
	}
	if err := (&mockUserRepo{store: store}).Create(user); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return user
}

func TestLoginIssuesTokenWithRoleClaim(t *testing.T) {
	svc, store := newAuthFixture(t)
	user := seedUser(t, store, "alice", "s3cret", models.RoleAdmin)

	resp, err := svc.Login(LoginInput{Username: "alice", Password: "s3cret"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if resp.User.Username != "alice" {
		t.Errorf("user in response = %q, want alice", resp.User.Username)
	}

	parsed, err := jwt.Parse(resp.Token, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret-key-for-testing-only"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token does not verify: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["role"] != models.RoleAdmin {
		t.Errorf("role claim = %v, want %q", claims["role"], models.RoleAdmin)
	}
	if uint(claims["user_id"].(float64)) != user.ID {
		t.Errorf("user_id claim = %v, want %d", claims["user_id"], user.ID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, store := newAuthFixture(t)
	seedUser(t, store, "alice", "s3cret", models.RoleUser)

	if _, err := svc.Login(LoginInput{Username: "alice", Password: "wrong"}); err == nil {
		t.Error("wrong password must be rejected")
	}
	if _, err := svc.Login(LoginInput{Username: "nobody", Password: "s3cret"}); err == nil {
		t.Error("unknown user must be rejected")
	}
}

func TestEnsureAdminBootstrap(t *testing.T) {
	svc, store := newAuthFixture(t)

	if err := svc.EnsureAdmin("root", "root@example.com", "hunter2"); err != nil {
		t.Fatalf("EnsureAdmin failed: %v", err)
	}
	admins, err := (&mockUserRepo{store: store}).FindAdmins()
	if err != nil || len(admins) != 1 {
		t.Fatalf("admins = %v (err %v), want one", admins, err)
	}
	if admins[0].Username != "root" || !admins[0].IsAdmin() {
		t.Errorf("bootstrap admin = %+v", admins[0])
	}

	// Second call is a no-op
	if err := svc.EnsureAdmin("root", "root@example.com", "hunter2"); err != nil {
		t.Fatalf("repeated EnsureAdmin failed: %v", err)
	}
	admins, _ = (&mockUserRepo{store: store}).FindAdmins()
	if len(admins) != 1 {
		t.Errorf("repeated bootstrap created %d admins, want 1", len(admins))
	}

	// Missing credentials: skip silently
	if err := svc.EnsureAdmin("", "", ""); err != nil {
		t.Fatalf("empty bootstrap credentials should be a no-op, got %v", err)
	}
}
