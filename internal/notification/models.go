package notification

import (
	"time"
)

// Type classifies the severity of a notification.
type Type string

const (
	TypeSuccess     Type = "Success"
	TypeFail        Type = "Fail"
	TypeWarning     Type = "Warning"
	TypeInformation Type = "Information"
)

// State tracks whether the recipient has read a notification.
type State string

const (
	StateUnread State = "Unread"
	StateRead   State = "Read"
)

// SystemPrincipal is recorded as the creator when no caller identity is available.
const SystemPrincipal = "system"

// Notification is one per-recipient row. A single logical event fans out
// to one Notification per user id; the copies share content, type and
// action but carry distinct ids.
type Notification struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	Type        Type       `json:"type"`
	ActionType  ActionType `json:"action_type"`
	Action      []byte     `json:"action"`
	CreatedDate time.Time  `json:"created_date"`
	CreatedBy   string     `json:"created_by"`
	UserID      string     `json:"user_id"`
	State       State      `json:"state"`
	Deleted     bool       `json:"deleted"`
}

// Model is the query-result projection of a Notification with the action
// payload decoded and enum values rendered as display text.
type Model struct {
	ID             string     `json:"id"`
	Content        string     `json:"content"`
	CreatedDate    time.Time  `json:"createdDate"`
	State          State      `json:"state"`
	StateText      string     `json:"stateText"`
	Type           Type       `json:"type"`
	TypeText       string     `json:"typeText"`
	Action         Action     `json:"action"`
	ActionType     ActionType `json:"actionType"`
	ActionTypeText string     `json:"actionTypeText"`
	From           string     `json:"from"`
}

// Filter carries the caller-supplied list query. SearchFields are ANDed
// equality predicates keyed by field name; the user id predicate is always
// injected server-side and cannot be supplied here.
type Filter struct {
	PageNumber    int               `json:"pageNumber"`
	PageSize      int               `json:"pageSize"`
	SortBy        string            `json:"sortBy"`
	SortDirection string            `json:"sortDirection"`
	SearchFields  map[string]string `json:"searchFields"`
}

// UpdateStateInput is the bulk read/unread transition request.
type UpdateStateInput struct {
	IsSetAll bool     `json:"isSetAll"`
	IDs      []string `json:"ids"`
	State    State    `json:"state"`
}

// PagedResult is a single page of models plus the pre-paging total.
type PagedResult struct {
	PageNumber int      `json:"pageNumber"`
	PageSize   int      `json:"pageSize"`
	TotalCount int      `json:"totalCount"`
	Items      []*Model `json:"items"`
}

// SummaryInfo bundles the counts and the most recent notifications for a user.
type SummaryInfo struct {
	UserID        string   `json:"userId"`
	Notifications []*Model `json:"notifications"`
	Total         int      `json:"total"`
	TotalRead     int      `json:"totalRead"`
	TotalUnread   int      `json:"totalUnread"`
}

// DispatchTask is the queue message other services publish to request a
// notification dispatch.
type DispatchTask struct {
	Content    string         `json:"content"`
	Type       Type           `json:"type"`
	ActionType ActionType     `json:"action_type"`
	Action     map[string]any `json:"action,omitempty"`
	UserIDs    []string       `json:"user_ids"`
	CreatedBy  string         `json:"created_by,omitempty"`
}

// NewNotificationEvent is the announce message published after a committed
// dispatch. It carries recipient ids only; clients re-query for content.
type NewNotificationEvent struct {
	Event   string   `json:"event"`
	UserIDs []string `json:"user_ids"`
}

// ValidState reports whether s is one of the two known read states.
func ValidState(s State) bool {
	return s == StateRead || s == StateUnread
}

// ValidType reports whether t is a known severity.
func ValidType(t Type) bool {
	switch t {
	case TypeSuccess, TypeFail, TypeWarning, TypeInformation:
		return true
	}
	return false
}
