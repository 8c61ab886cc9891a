package policy

import (
	"context"
	"testing"
)

func TestHardcodedEngine(t *testing.T) {
	tests := []struct {
		name    string
		roles   []Role
		action  Action
		allowed bool
	}{
		{"admin can do anything", []Role{RoleAdmin}, ActionNotificationSend, true},
		{"user can view", []Role{RoleUser}, ActionNotificationView, true},
		{"user can edit", []Role{RoleUser}, ActionNotificationEdit, true},
		{"user cannot send", []Role{RoleUser}, ActionNotificationSend, false},
		{"viewer can view", []Role{RoleViewer}, ActionNotificationView, true},
		{"viewer cannot edit", []Role{RoleViewer}, ActionNotificationEdit, false},
		{"service can send", []Role{RoleService}, ActionNotificationSend, true},
		{"no roles", nil, ActionNotificationView, false},
		{"unknown role", []Role{Role("intern")}, ActionNotificationView, false},
	}

	engine := NewHardcodedEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Check(context.Background(), &Context{
				UserID: "u1",
				Roles:  tt.roles,
				Action: tt.action,
			})
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if result.Allowed != tt.allowed {
				t.Errorf("expected allowed=%v, got %+v", tt.allowed, result)
			}
		})
	}
}

func TestRequireAction(t *testing.T) {
	engine := NewHardcodedEngine()

	if err := RequireAction(context.Background(), engine, "u1", []Role{RoleUser}, ActionNotificationView); err != nil {
		t.Errorf("expected view to be allowed: %v", err)
	}
	if err := RequireAction(context.Background(), engine, "u1", []Role{RoleViewer}, ActionNotificationEdit); err == nil {
		t.Error("expected edit to be denied for viewer")
	}
}
