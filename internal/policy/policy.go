package policy

import (
	"context"
	"fmt"
)

// Action is a permission-controlled operation.
type Action string

const (
	ActionNotificationView Action = "notification.view"
	ActionNotificationEdit Action = "notification.edit"
	ActionNotificationSend Action = "notification.send"
)

// Role is a named set of permitted actions.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleUser    Role = "user"
	RoleService Role = "service"
	RoleViewer  Role = "viewer"
)

// Context carries what the engine needs to decide one check.
type Context struct {
	UserID string
	Roles  []Role
	Action Action
}

// Result reports the outcome of a policy check.
type Result struct {
	Allowed bool
	Reason  string
}

// Engine evaluates whether a caller may perform an action.
type Engine interface {
	Check(ctx context.Context, pctx *Context) (*Result, error)
}

// HardcodedEngine is the static role/action matrix used until policies
// move to configuration.
type HardcodedEngine struct{}

func NewHardcodedEngine() *HardcodedEngine {
	return &HardcodedEngine{}
}

func (e *HardcodedEngine) Check(ctx context.Context, pctx *Context) (*Result, error) {
	for _, role := range pctx.Roles {
		if roleAllowsAction(role, pctx.Action) {
			return &Result{
				Allowed: true,
				Reason:  fmt.Sprintf("allowed by role: %s", role),
			}, nil
		}
	}
	return &Result{Allowed: false, Reason: "no matching policy found"}, nil
}

func roleAllowsAction(role Role, action Action) bool {
	if role == RoleAdmin {
		return true
	}

	permissions := map[Role][]Action{
		RoleUser: {
			ActionNotificationView,
			ActionNotificationEdit,
		},
		RoleService: {
			ActionNotificationSend,
		},
		RoleViewer: {
			ActionNotificationView,
		},
	}

	for _, allowed := range permissions[role] {
		if allowed == action {
			return true
		}
	}
	return false
}

// RequireAction checks a single action for a caller and returns an error
// when it is denied.
func RequireAction(ctx context.Context, engine Engine, userID string, roles []Role, action Action) error {
	result, err := engine.Check(ctx, &Context{UserID: userID, Roles: roles, Action: action})
	if err != nil {
		return err
	}
	if !result.Allowed {
		return fmt.Errorf("action %s denied: %s", action, result.Reason)
	}
	return nil
}
