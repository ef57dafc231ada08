package service

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ticketflow/ticketflow/internal/auth"
	"github.com/ticketflow/ticketflow/internal/domain"
)

func TestUserManagementRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	admin := testUser("admin", domain.RoleAdmin)
	agent := testUser("agent", domain.RoleSupportAgent)
	plain := testUser("plain", domain.RoleUser)
	users := newFakeUserRepo(admin, agent, plain)
	userService := NewUserService(users, bcrypt.MinCost)

	for _, actor := range []*domain.User{agent, plain} {
		if _, err := userService.List(ctx, actor); errCode(t, err) != "FORBIDDEN" {
			t.Errorf("%s list users = %v, want FORBIDDEN", actor.Username, err)
		}
		if _, err := userService.Create(ctx, actor, UserCreateInput{
			Username: "x", Email: "x@example.com", Password: "pw", Role: domain.RoleUser,
		}); errCode(t, err) != "FORBIDDEN" {
			t.Errorf("%s create user = %v, want FORBIDDEN", actor.Username, err)
		}
	}

	all, err := userService.List(ctx, admin)
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(users) = %d, want 3", len(all))
	}
}

func TestCreateUserWithRole(t *testing.T) {
	ctx := context.Background()
	admin := testUser("admin", domain.RoleAdmin)
	userService := NewUserService(newFakeUserRepo(admin), bcrypt.MinCost)

	created, err := userService.Create(ctx, admin, UserCreateInput{
		Username: "newagent",
		Email:    "newagent@example.com",
		Password: "pw",
		FullName: "New Agent",
		Role:     domain.RoleSupportAgent,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Role != domain.RoleSupportAgent || !created.Enabled {
		t.Errorf("created = %+v, want enabled SUPPORT_AGENT", created)
	}

	if _, err := userService.Create(ctx, admin, UserCreateInput{
		Username: "x", Email: "x@example.com", Password: "pw", Role: "SUPERVISOR",
	}); errCode(t, err) != "VALIDATION_FAILED" {
		t.Errorf("unknown role = %v, want VALIDATION_FAILED", err)
	}
}

func TestUpdateRoleAndToggle(t *testing.T) {
	ctx := context.Background()
	admin := testUser("admin", domain.RoleAdmin)
	target := testUser("target", domain.RoleUser)
	userService := NewUserService(newFakeUserRepo(admin, target), bcrypt.MinCost)

	promoted, err := userService.UpdateRole(ctx, admin, target.ID, domain.RoleSupportAgent)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if promoted.Role != domain.RoleSupportAgent {
		t.Errorf("role = %s, want SUPPORT_AGENT", promoted.Role)
	}

	toggled, err := userService.ToggleEnabled(ctx, admin, target.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if toggled.Enabled {
		t.Error("toggle should disable an enabled user")
	}
	toggled, err = userService.ToggleEnabled(ctx, admin, target.ID)
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if !toggled.Enabled {
		t.Error("second toggle should re-enable")
	}

	if _, err := userService.UpdateRole(ctx, admin, "missing", domain.RoleUser); errCode(t, err) != "NOT_FOUND" {
		t.Errorf("promote missing = %v, want NOT_FOUND", err)
	}
}

func TestListAgentsFiltersDisabled(t *testing.T) {
	ctx := context.Background()
	agent := testUser("agent", domain.RoleSupportAgent)
	sleeper := testUser("sleeper", domain.RoleSupportAgent)
	sleeper.Enabled = false
	admin := testUser("admin", domain.RoleAdmin)
	plain := testUser("plain", domain.RoleUser)
	userService := NewUserService(newFakeUserRepo(agent, sleeper, admin, plain), bcrypt.MinCost)

	agents, err := userService.ListAgents(ctx, agent)
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	if len(agents) != 1 || agents[0].ID != agent.ID {
		t.Fatalf("agents = %v, want just the enabled agent", agents)
	}

	if _, err := userService.ListAgents(ctx, plain); errCode(t, err) != "FORBIDDEN" {
		t.Errorf("plain user list agents = %v, want FORBIDDEN", err)
	}
}

func TestSeedDefaultUsers(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserRepo()
	logger := zap.NewNop()

	if err := SeedDefaultUsers(ctx, users, bcrypt.MinCost, logger); err != nil {
		t.Fatalf("seed: %v", err)
	}

	admin, err := users.GetByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("load admin: %v", err)
	}
	if admin.Role != domain.RoleAdmin {
		t.Errorf("admin role = %s", admin.Role)
	}
	if err := auth.ComparePassword(admin.PasswordHash, "admin123"); err != nil {
		t.Error("admin password does not verify")
	}

	count, _ := users.Count(ctx)
	if count != 3 {
		t.Fatalf("seeded %d users, want 3", count)
	}

	// idempotent on a non-empty table
	if err := SeedDefaultUsers(ctx, users, bcrypt.MinCost, logger); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	count, _ = users.Count(ctx)
	if count != 3 {
		t.Fatalf("second seed changed count to %d", count)
	}
}
