package notification

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/sapliy/notification-center/internal/policy"
	"github.com/sapliy/notification-center/pkg/jsonutil"
	"github.com/sapliy/notification-center/pkg/observability"
)

// Handler exposes the notification operations over HTTP. It only binds
// requests and forwards to the service; every response is a BaseResponse
// envelope.
type Handler struct {
	svc      *Service
	hub      *Hub
	engine   policy.Engine
	logger   *observability.Logger
	upgrader websocket.Upgrader
}

func NewHandler(svc *Service, hub *Hub, engine policy.Engine, logger *observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NewLogger("notifications")
	}
	return &Handler{
		svc:    svc,
		hub:    hub,
		engine: engine,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts the notification routes on the router.
func (h *Handler) Register(r *mux.Router, jwtSecret string) {
	api := r.PathPrefix("/api/notifications").Subrouter()
	api.Use(h.Recover)
	api.Use(JWTAuth(jwtSecret))

	api.Handle("/get-summary-info", h.require(policy.ActionNotificationView, h.GetSummaryInfo)).Methods(http.MethodGet)
	api.Handle("/get-list", h.require(policy.ActionNotificationView, h.GetList)).Methods(http.MethodPost)
	api.Handle("/set-notification-state", h.require(policy.ActionNotificationEdit, h.SetState)).Methods(http.MethodPost)
	api.Handle("/ws", h.require(policy.ActionNotificationView, h.Subscribe)).Methods(http.MethodGet)
	api.Handle("/{id}", h.require(policy.ActionNotificationEdit, h.Delete)).Methods(http.MethodDelete)
	api.Handle("", h.require(policy.ActionNotificationView, h.GetListQuery)).Methods(http.MethodGet)
}

// Recover is the single outer boundary for unexpected faults: it logs the
// panic and maps it to a generic failure envelope.
func (h *Handler) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("unhandled fault", "path", r.URL.Path, "panic", rec)
				jsonutil.WriteJSON(w, http.StatusInternalServerError, ErrorResponse(ErrCodeInternal))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) require(action policy.Action, handler http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		roles := make([]policy.Role, 0, len(CallerRoles(r.Context())))
		for _, role := range CallerRoles(r.Context()) {
			roles = append(roles, policy.Role(role))
		}
		if err := policy.RequireAction(r.Context(), h.engine, CallerID(r.Context()), roles, action); err != nil {
			jsonutil.WriteJSON(w, http.StatusForbidden, ErrorResponse("PERMISSION_DENIED"))
			return
		}
		handler(w, r)
	})
}

// GetSummaryInfo handles GET /api/notifications/get-summary-info.
func (h *Handler) GetSummaryInfo(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("numberOfNoti"))

	resp, err := h.svc.GetSummary(r.Context(), CallerID(r.Context()), limit)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, resp)
}

// GetList handles POST /api/notifications/get-list with a JSON filter body.
func (h *Handler) GetList(w http.ResponseWriter, r *http.Request) {
	var filter Filter
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		jsonutil.WriteJSON(w, http.StatusBadRequest, ErrorResponse("INVALID_FILTER"))
		return
	}
	h.list(w, r, &filter)
}

// GetListQuery handles GET /api/notifications with the filter bound from
// the query string.
func (h *Handler) GetListQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		SortBy:        q.Get("sortBy"),
		SortDirection: q.Get("sortDirection"),
		SearchFields:  map[string]string{},
	}
	filter.PageNumber, _ = strconv.Atoi(q.Get("pageNumber"))
	filter.PageSize, _ = strconv.Atoi(q.Get("pageSize"))
	for field := range searchColumns {
		if v := q.Get(field); v != "" {
			filter.SearchFields[field] = v
		}
	}
	h.list(w, r, &filter)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, filter *Filter) {
	resp, err := h.svc.GetList(r.Context(), CallerID(r.Context()), filter)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, resp)
}

// SetState handles POST /api/notifications/set-notification-state.
func (h *Handler) SetState(w http.ResponseWriter, r *http.Request) {
	var input UpdateStateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		jsonutil.WriteJSON(w, http.StatusBadRequest, ErrorResponse("INVALID_INPUT"))
		return
	}
	resp := h.svc.SetState(r.Context(), CallerID(r.Context()), &input)
	jsonutil.WriteJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /api/notifications/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	resp, err := h.svc.Delete(r.Context(), CallerID(r.Context()), id)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, resp)
}

// Subscribe handles GET /api/notifications/ws, upgrading the connection
// and parking it in the hub until the client goes away.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	h.hub.Serve(CallerID(r.Context()), conn)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("request failed", "path", r.URL.Path, "error", err)
	jsonutil.WriteJSON(w, http.StatusInternalServerError, ErrorResponse(ErrCodeInternal))
}
