// Package v1 provides the control API handlers of the sync engine.
package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tqrg-bot/ambari-sync/internal/api/common"
	"github.com/tqrg-bot/ambari-sync/internal/gate"
	"github.com/tqrg-bot/ambari-sync/internal/query"
	"github.com/tqrg-bot/ambari-sync/internal/status"
	"github.com/tqrg-bot/ambari-sync/internal/store"
	"github.com/tqrg-bot/ambari-sync/internal/sync/coordinator"
	"github.com/tqrg-bot/ambari-sync/internal/sync/state"
	"github.com/tqrg-bot/ambari-sync/internal/updater"
)

// TaskView combines the scheduling state of a task with its last outcome
type TaskView struct {
	updater.Info
	Status *status.TaskStatus `json:"status,omitempty"`
}

// GateView describes the global gate
type GateView struct {
	Active  bool     `json:"active"`
	Pending []string `json:"pending,omitempty"`
}

// StatusResponse is the body of GET /status
type StatusResponse struct {
	Gate     GateView     `json:"gate"`
	Tasks    []TaskView   `json:"tasks"`
	Datasets []store.Info `json:"datasets"`
}

// RouteRequest is the body of PUT /route
type RouteRequest struct {
	Route string `yaml:"route"`
}

// ValueRequest is the body of the flag and condition endpoints
type ValueRequest struct {
	Value *bool `yaml:"value"`
}

// HostQueryRequest is the body of PUT /hosts/query. SORT entries in Filters
// become the sort order of the table.
type HostQueryRequest struct {
	Filters []query.Spec `yaml:"filters"`
}

// LoggingRequest is the optional body of POST /hosts/{host}/logging
type LoggingRequest struct {
	Fields []string `yaml:"fields"`
}

// Routes serves the control API
type Routes struct {
	coord  coordinator.Coordinator
	states state.TaskStateService
	store  *store.Store
	gate   *gate.Gate
	conds  *gate.Conditions
}

// Option configures Routes
type Option func(*Routes)

// WithStore exposes the dataset store
func WithStore(s *store.Store) Option {
	return func(r *Routes) {
		r.store = s
	}
}

// WithConditions exposes the gate and the conditions deriving it
func WithConditions(g *gate.Gate, conds *gate.Conditions) Option {
	return func(r *Routes) {
		r.gate = g
		r.conds = conds
	}
}

// NewRoutes creates Routes over the coordinator and its task state
func NewRoutes(coord coordinator.Coordinator, states state.TaskStateService, opts ...Option) *Routes {
	r := &Routes{coord: coord, states: states}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Router creates the control API router
func Router(coord coordinator.Coordinator, states state.TaskStateService, opts ...Option) http.Handler {
	routes := NewRoutes(coord, states, opts...)

	r := chi.NewRouter()
	r.Get("/status", routes.getStatus)
	r.Get("/datasets/{name}", routes.getDataset)
	r.Put("/route", routes.putRoute)
	r.Put("/conditions/{name}", routes.putCondition)
	r.Put("/flags/{name}", routes.putFlag)
	r.Put("/hosts/query", routes.putHostQuery)
	r.Post("/hosts/{host}/logging", routes.postLogging)
	r.Post("/tasks/{name}/refresh", routes.postRefresh)

	return r
}

func (rr *Routes) getStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := rr.states.ListStatuses(r.Context())
	if err != nil {
		slog.Error("Failed to list task statuses", "error", err)
		common.WriteErrorResponse(w, "Failed to list task statuses", http.StatusInternalServerError)
		return
	}

	infos := rr.coord.Tasks()
	resp := StatusResponse{
		Tasks:    make([]TaskView, 0, len(infos)),
		Datasets: []store.Info{},
	}
	for _, info := range infos {
		resp.Tasks = append(resp.Tasks, TaskView{Info: info, Status: statuses[info.Name]})
	}
	if rr.store != nil {
		resp.Datasets = rr.store.Infos()
	}
	if rr.gate != nil {
		resp.Gate.Active = rr.gate.Active()
	}
	if rr.conds != nil {
		resp.Gate.Pending = rr.conds.Pending()
	}

	common.WriteJSONResponse(w, resp, http.StatusOK)
}

func (rr *Routes) getDataset(w http.ResponseWriter, r *http.Request) {
	name, err := common.URLParam(r, "name")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if rr.store == nil {
		common.WriteErrorResponse(w, "Dataset store not configured", http.StatusNotImplemented)
		return
	}

	d, ok := rr.store.Get(name)
	if !ok {
		common.WriteErrorResponse(w, "Dataset not loaded: "+name, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", `"`+name+"-"+strconv.FormatUint(d.Version, 10)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(d.Raw)
}

func (rr *Routes) putRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if err := common.DecodeBody(r, &req); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Route == "" {
		common.WriteErrorResponse(w, "route is required", http.StatusBadRequest)
		return
	}

	rr.coord.Navigate(req.Route)
	w.WriteHeader(http.StatusNoContent)
}

func (rr *Routes) putCondition(w http.ResponseWriter, r *http.Request) {
	if rr.conds == nil {
		common.WriteErrorResponse(w, "Gate conditions not configured", http.StatusNotImplemented)
		return
	}
	name, value, ok := namedValue(w, r)
	if !ok {
		return
	}

	slog.Info("Setting gate condition", "condition", name, "value", value)
	rr.conds.Set(name, value)
	w.WriteHeader(http.StatusNoContent)
}

func (rr *Routes) putFlag(w http.ResponseWriter, r *http.Request) {
	name, value, ok := namedValue(w, r)
	if !ok {
		return
	}

	if err := rr.coord.SetFlag(name, value); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// compileHostQuery renders the query the way the hosts task does. Each sort is
// compiled on its own since only the last one is rendered with the filters.
func compileHostQuery(q coordinator.HostQuery) error {
	if _, err := query.Compile(q.Filters); err != nil {
		return err
	}
	for _, s := range q.Sort {
		if _, err := query.Compile([]query.Filter{s}); err != nil {
			return err
		}
	}
	return nil
}

func (rr *Routes) putHostQuery(w http.ResponseWriter, r *http.Request) {
	var req HostQueryRequest
	if err := common.DecodeBody(r, &req); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	filters, err := query.FromSpecs(req.Filters)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	var q coordinator.HostQuery
	for _, f := range filters {
		if s, ok := f.(query.Sort); ok {
			q.Sort = append(q.Sort, s)
			continue
		}
		q.Filters = append(q.Filters, f)
	}
	if err := compileHostQuery(q); err != nil {
		common.WriteErrorResponse(w, "invalid host query: "+err.Error(), http.StatusBadRequest)
		return
	}

	rr.coord.SetHostQuery(q)
	w.WriteHeader(http.StatusNoContent)
}

func (rr *Routes) postLogging(w http.ResponseWriter, r *http.Request) {
	host, err := common.URLParam(r, "host")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req LoggingRequest
	if err := common.DecodeBody(r, &req); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := rr.coord.UpdateLogging(r.Context(), host, req.Fields); err != nil {
		slog.Warn("Failed to update host logging", "host", host, "error", err)
		common.WriteErrorResponse(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rr *Routes) postRefresh(w http.ResponseWriter, r *http.Request) {
	name, err := common.URLParam(r, "name")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = rr.coord.Refresh(name)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, updater.ErrUnknownTask):
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, coordinator.ErrAlreadyInProgress):
		common.WriteErrorResponse(w, err.Error(), http.StatusConflict)
	case errors.Is(err, coordinator.ErrNotRunning):
		common.WriteErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
	default:
		common.WriteErrorResponse(w, err.Error(), http.StatusInternalServerError)
	}
}

// namedValue reads the {name} parameter and a required boolean body.
// On failure it writes the error reply and returns false.
func namedValue(w http.ResponseWriter, r *http.Request) (string, bool, bool) {
	name, err := common.URLParam(r, "name")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return "", false, false
	}
	var req ValueRequest
	if err := common.DecodeBody(r, &req); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return "", false, false
	}
	if req.Value == nil {
		common.WriteErrorResponse(w, "value is required", http.StatusBadRequest)
		return "", false, false
	}
	return name, *req.Value, true
}
