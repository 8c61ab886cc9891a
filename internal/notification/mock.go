package notification

import (
	"context"
	"sort"
	"sync"
)

// MockRepository is a func-field test double for Repository. Unset fields
// fall back to an in-memory store so service tests can exercise real
// filtering and state semantics without a database.
type MockRepository struct {
	CreateBatchFunc func(ctx context.Context, batch []*Notification) error
	ListFunc        func(ctx context.Context, userID string, f *Filter) ([]*Notification, int, error)
	CountsFunc      func(ctx context.Context, userID string) (int, int, int, error)
	GetByIDFunc     func(ctx context.Context, userID, id string) (*Notification, error)
	UpdateStateFunc func(ctx context.Context, userID string, setAll bool, ids []string, state State) (int64, error)
	SoftDeleteFunc  func(ctx context.Context, userID, id string) (bool, error)

	mu   sync.Mutex
	rows []*Notification
}

func NewMockRepository() *MockRepository {
	return &MockRepository{}
}

// Rows returns a snapshot of the stored rows.
func (m *MockRepository) Rows() []*Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Notification, len(m.rows))
	copy(out, m.rows)
	return out
}

// Seed adds rows to the in-memory store.
func (m *MockRepository) Seed(rows ...*Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rows...)
}

func (m *MockRepository) CreateBatch(ctx context.Context, batch []*Notification) error {
	if m.CreateBatchFunc != nil {
		return m.CreateBatchFunc(ctx, batch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range batch {
		stored := *n
		m.rows = append(m.rows, &stored)
	}
	return nil
}

func (m *MockRepository) List(ctx context.Context, userID string, f *Filter) ([]*Notification, int, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID, f)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*Notification
	for _, n := range m.rows {
		if n.UserID != userID || n.Deleted {
			continue
		}
		if f != nil && !matchesSearchFields(n, f.SearchFields) {
			continue
		}
		matched = append(matched, n)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedDate.After(matched[j].CreatedDate)
	})

	count := len(matched)
	if f != nil && f.PageNumber > 0 && f.PageSize > 0 {
		start := (f.PageNumber - 1) * f.PageSize
		if start > count {
			start = count
		}
		end := start + f.PageSize
		if end > count {
			end = count
		}
		matched = matched[start:end]
	}
	return matched, count, nil
}

func (m *MockRepository) Counts(ctx context.Context, userID string) (int, int, int, error) {
	if m.CountsFunc != nil {
		return m.CountsFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var total, unread, read int
	for _, n := range m.rows {
		if n.UserID != userID || n.Deleted {
			continue
		}
		total++
		switch n.State {
		case StateUnread:
			unread++
		case StateRead:
			read++
		}
	}
	return total, unread, read, nil
}

func (m *MockRepository) GetByID(ctx context.Context, userID, id string) (*Notification, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, userID, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.rows {
		if n.ID == id && n.UserID == userID && !n.Deleted {
			snapshot := *n
			return &snapshot, nil
		}
	}
	return nil, nil
}

func (m *MockRepository) UpdateState(ctx context.Context, userID string, setAll bool, ids []string, state State) (int64, error) {
	if m.UpdateStateFunc != nil {
		return m.UpdateStateFunc(ctx, userID, setAll, ids, state)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	var affected int64
	for _, n := range m.rows {
		if n.UserID != userID || n.Deleted {
			continue
		}
		if !setAll {
			if _, ok := idSet[n.ID]; !ok {
				continue
			}
		}
		n.State = state
		affected++
	}
	return affected, nil
}

func (m *MockRepository) SoftDelete(ctx context.Context, userID, id string) (bool, error) {
	if m.SoftDeleteFunc != nil {
		return m.SoftDeleteFunc(ctx, userID, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.rows {
		if n.ID == id && n.UserID == userID && !n.Deleted {
			n.Deleted = true
			return true, nil
		}
	}
	return false, nil
}

func matchesSearchFields(n *Notification, fields map[string]string) bool {
	for field, value := range fields {
		if _, ok := searchColumns[field]; !ok {
			continue
		}
		switch field {
		case "content":
			if n.Content != value {
				return false
			}
		case "type":
			if string(n.Type) != value {
				return false
			}
		case "state":
			if string(n.State) != value {
				return false
			}
		case "actionType":
			if string(n.ActionType) != value {
				return false
			}
		case "createdBy":
			if n.CreatedBy != value {
				return false
			}
		}
	}
	return true
}
