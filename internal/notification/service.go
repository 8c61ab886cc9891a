package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sapliy/notification-center/pkg/observability"
)

// Announcer is the post-commit push hand-off. Implementations are
// best-effort: they must never block dispatch or surface failures to it.
type Announcer interface {
	Announce(ctx context.Context, userIDs []string)
}

const (
	defaultSummarySize = 5
	countsCacheTTL     = 30 * time.Second
)

// Service implements dispatch, querying, bulk state transitions and soft
// deletion for per-user notifications.
type Service struct {
	repo      Repository
	announcer Announcer
	redis     *redis.Client
	logger    *observability.Logger
}

// NewService wires a Service. announcer and redisClient may be nil; the
// service then skips push hand-off and count caching respectively.
func NewService(repo Repository, announcer Announcer, redisClient *redis.Client, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewLogger("notifications")
	}
	return &Service{
		repo:      repo,
		announcer: announcer,
		redis:     redisClient,
		logger:    logger,
	}
}

// SendSuccess dispatches a Success notification to every listed user.
func (s *Service) SendSuccess(ctx context.Context, content string, userIDs []string, action Action) error {
	return s.send(ctx, content, userIDs, TypeSuccess, action, SystemPrincipal)
}

// SendFail dispatches a Fail notification to every listed user.
func (s *Service) SendFail(ctx context.Context, content string, userIDs []string, action Action) error {
	return s.send(ctx, content, userIDs, TypeFail, action, SystemPrincipal)
}

// SendWarning dispatches a Warning notification to every listed user.
func (s *Service) SendWarning(ctx context.Context, content string, userIDs []string, action Action) error {
	return s.send(ctx, content, userIDs, TypeWarning, action, SystemPrincipal)
}

// SendInfo dispatches an Information notification to every listed user.
func (s *Service) SendInfo(ctx context.Context, content string, userIDs []string, action Action) error {
	return s.send(ctx, content, userIDs, TypeInformation, action, SystemPrincipal)
}

// Dispatch handles a queued dispatch task from another service.
func (s *Service) Dispatch(ctx context.Context, task *DispatchTask) error {
	if !ValidType(task.Type) {
		return fmt.Errorf("unknown notification type %q", task.Type)
	}
	createdBy := task.CreatedBy
	if createdBy == "" {
		createdBy = SystemPrincipal
	}
	action := decodeTaskAction(task)
	return s.send(ctx, task.Content, task.UserIDs, task.Type, action, createdBy)
}

// send builds one base record and fans it out: an independent copy per
// recipient with a fresh id. The batch insert is atomic; the announce runs
// only after the commit and never affects the result.
func (s *Service) send(ctx context.Context, content string, userIDs []string, typ Type, action Action, createdBy string) error {
	if len(userIDs) == 0 {
		return nil
	}

	actionType, actionData, err := EncodeAction(action)
	if err != nil {
		return fmt.Errorf("failed to encode action: %w", err)
	}

	base := Notification{
		Content:     content,
		Type:        typ,
		ActionType:  actionType,
		Action:      actionData,
		CreatedDate: time.Now().UTC(),
		CreatedBy:   createdBy,
		State:       StateUnread,
	}

	batch := make([]*Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		n := base
		n.ID = uuid.New().String()
		n.UserID = userID
		batch = append(batch, &n)
	}

	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		DispatchFailures.Inc()
		return fmt.Errorf("failed to persist notification batch: %w", err)
	}
	NotificationsDispatched.WithLabelValues(string(typ)).Add(float64(len(batch)))

	s.invalidateCounts(ctx, userIDs)

	if s.announcer != nil {
		s.announcer.Announce(ctx, userIDs)
	}
	return nil
}

// GetList returns a filtered, sorted, optionally paged view of the
// caller's notifications. The total count is computed before paging.
func (s *Service) GetList(ctx context.Context, userID string, f *Filter) (*BaseResponse, error) {
	timer := StartListTimer()
	defer timer.ObserveDuration()

	items, count, err := s.repo.List(ctx, userID, f)
	if err != nil {
		return nil, err
	}

	result := &PagedResult{
		TotalCount: count,
		Items:      s.toModels(items),
	}
	if f != nil {
		result.PageNumber = f.PageNumber
		result.PageSize = f.PageSize
	}
	return SuccessResponse(result), nil
}

// GetSummary returns the caller's counts plus the most recent
// notifications, limit defaulting to 5.
func (s *Service) GetSummary(ctx context.Context, userID string, limit int) (*BaseResponse, error) {
	if limit <= 0 {
		limit = defaultSummarySize
	}

	total, unread, read, err := s.counts(ctx, userID)
	if err != nil {
		return nil, err
	}

	recent, _, err := s.repo.List(ctx, userID, &Filter{PageNumber: 1, PageSize: limit})
	if err != nil {
		return nil, err
	}

	summary := &SummaryInfo{
		UserID:        userID,
		Notifications: s.toModels(recent),
		Total:         total,
		TotalRead:     read,
		TotalUnread:   unread,
	}
	return SuccessResponse(summary), nil
}

// SetState applies a bulk read/unread transition. "All" means all of the
// caller's rows; explicit ids not owned by the caller are skipped. Zero
// affected rows or a store fault surface as an update-fail envelope.
func (s *Service) SetState(ctx context.Context, userID string, input *UpdateStateInput) *BaseResponse {
	if input == nil || !ValidState(input.State) {
		return ErrorResponse(ErrCodeUpdateFail)
	}

	affected, err := s.repo.UpdateState(ctx, userID, input.IsSetAll, input.IDs, input.State)
	if err != nil {
		s.logger.Error("bulk state update failed", "user_id", userID, "error", err)
		return ErrorResponse(ErrCodeUpdateFail)
	}
	if affected == 0 {
		return ErrorResponse(ErrCodeUpdateFail)
	}

	s.invalidateCounts(ctx, []string{userID})
	return SuccessResponse(affected)
}

// Delete soft-deletes the caller's notification and returns the
// pre-deletion snapshot. Absent and already-deleted rows both yield
// not-found, making repeated deletes idempotent.
func (s *Service) Delete(ctx context.Context, userID, id string) (*BaseResponse, error) {
	n, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return ErrorResponse(ErrCodeNotFound), nil
	}

	deleted, err := s.repo.SoftDelete(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !deleted {
		// Lost a race with a concurrent delete.
		return ErrorResponse(ErrCodeNotFound), nil
	}

	s.invalidateCounts(ctx, []string{userID})
	return SuccessResponse(s.toModel(n)), nil
}

func (s *Service) toModels(items []*Notification) []*Model {
	models := make([]*Model, 0, len(items))
	for _, n := range items {
		models = append(models, s.toModel(n))
	}
	return models
}

// toModel projects a row into its API shape, decoding the action payload.
// Decode failures degrade to the base shape instead of dropping the row.
func (s *Service) toModel(n *Notification) *Model {
	return &Model{
		ID:             n.ID,
		Content:        n.Content,
		CreatedDate:    n.CreatedDate,
		State:          n.State,
		StateText:      string(n.State),
		Type:           n.Type,
		TypeText:       string(n.Type),
		Action:         DecodeAction(n.ActionType, n.Action),
		ActionType:     n.ActionType,
		ActionTypeText: string(n.ActionType),
		From:           n.CreatedBy,
	}
}

type cachedCounts struct {
	Total  int `json:"total"`
	Unread int `json:"unread"`
	Read   int `json:"read"`
}

func countsCacheKey(userID string) string {
	return "notif:counts:" + userID
}

// counts reads the per-user counters through the redis cache when one is
// configured; cache errors fall back to the store.
func (s *Service) counts(ctx context.Context, userID string) (int, int, int, error) {
	if s.redis != nil {
		if raw, err := s.redis.Get(ctx, countsCacheKey(userID)).Bytes(); err == nil {
			var c cachedCounts
			if err := json.Unmarshal(raw, &c); err == nil {
				return c.Total, c.Unread, c.Read, nil
			}
		}
	}

	total, unread, read, err := s.repo.Counts(ctx, userID)
	if err != nil {
		return 0, 0, 0, err
	}

	if s.redis != nil {
		if raw, err := json.Marshal(cachedCounts{Total: total, Unread: unread, Read: read}); err == nil {
			if err := s.redis.Set(ctx, countsCacheKey(userID), raw, countsCacheTTL).Err(); err != nil {
				s.logger.Warn("failed to cache notification counts", "user_id", userID, "error", err)
			}
		}
	}
	return total, unread, read, nil
}

func (s *Service) invalidateCounts(ctx context.Context, userIDs []string) {
	if s.redis == nil {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, countsCacheKey(id))
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("failed to invalidate notification counts", "error", err)
	}
}

func decodeTaskAction(task *DispatchTask) Action {
	if len(task.Action) == 0 {
		return nil
	}
	raw, err := json.Marshal(task.Action)
	if err != nil {
		return nil
	}
	return DecodeAction(task.ActionType, raw)
}
