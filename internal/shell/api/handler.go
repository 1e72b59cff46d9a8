// Package api provides the HTTP surface of the dataflow server: application
// group definitions and deployments, per-kind member definition CRUD, the app
// registry, descriptor import, and the operational endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/definition"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/dsl"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/properties"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/state"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/shell/orchestrator"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/shell/registry"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/shell/store"
)

// ServerName identifies the server in the about endpoint and the OpenAPI
// document.
const ServerName = "dataflow-server"

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	orchestrator *orchestrator.Orchestrator
	registry     *registry.Service
	store        store.Store
	metrics      http.Handler
	openapi      http.HandlerFunc
	logger       *slog.Logger
	version      string
}

// NewHandler creates a new API handler. metrics serves the /metrics endpoint
// and may be nil when the server runs without one.
func NewHandler(orch *orchestrator.Orchestrator, reg *registry.Service, st store.Store, metrics http.Handler, version string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = http.NotFoundHandler()
	}
	if version == "" {
		version = "dev"
	}
	return &Handler{
		orchestrator: orch,
		registry:     reg,
		store:        st,
		metrics:      metrics,
		openapi:      specHandler(version),
		logger:       logger,
		version:      version,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	// Operational endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/about", h.handleAbout)
	r.Method(http.MethodGet, "/metrics", h.metrics)
	r.Get("/openapi.json", h.openapi)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/application-groups", func(r chi.Router) {
			r.Route("/definitions", func(r chi.Router) {
				r.Post("/", h.handleCreateGroup)
				r.Get("/", h.handleListGroups)
				r.Delete("/", h.handleDestroyAllGroups)
				r.Get("/{name}", h.handleGetGroup)
				r.Delete("/{name}", h.handleDestroyGroup)
			})
			r.Route("/deployments", func(r chi.Router) {
				r.Delete("/", h.handleUndeployAllGroups)
				r.Post("/{name}", h.handleDeployGroup)
				r.Put("/{name}", h.handleRedeployGroup)
				r.Get("/{name}", h.handleDeploymentState)
				r.Delete("/{name}", h.handleUndeployGroup)
			})
			r.Post("/import", h.handleImport)
		})

		r.Route("/apps", func(r chi.Router) {
			r.Get("/", h.handleListApps)
			r.Post("/{kind}/{name}", h.handleRegisterApp)
			r.Delete("/{kind}/{name}", h.handleUnregisterApp)
		})

		// Member definition CRUD, one route tree per kind.
		r.Route("/streams/definitions", h.definitionRoutes(dsl.KindStream))
		r.Route("/tasks/definitions", h.definitionRoutes(dsl.KindTask))
		r.Route("/standalone/definitions", h.definitionRoutes(dsl.KindStandalone))
	})

	return r
}

// definitionRoutes builds the shared member definition route tree for one
// kind.
func (h *Handler) definitionRoutes(kind dsl.Kind) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/", h.handleCreateDefinition(kind))
		r.Get("/", h.handleListDefinitions(kind))
		r.Get("/{name}", h.handleGetDefinition(kind))
		r.Delete("/{name}", h.handleDeleteDefinition(kind))
	}
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json. Handlers
// serving other formats, such as /metrics, override it.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Operational Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleAbout(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, AboutResponse{Name: ServerName, Version: h.version})
}

// =============================================================================
// Application Group Handlers
// =============================================================================

// CreateGroupResponse is the created group, plus the dispatch report when the
// request asked for an immediate deploy.
type CreateGroupResponse struct {
	GroupResponse
	Deployment *DeploymentResponse `json:"deployment,omitempty"`
}

func (h *Handler) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required", "validation_error")
		return
	}
	if req.DSL == "" {
		h.writeError(w, http.StatusBadRequest, "dsl is required", "validation_error")
		return
	}

	def, results, err := h.orchestrator.Create(r.Context(), req.Name, req.DSL, req.Force, req.Deploy)
	if err != nil {
		h.writeDomainError(w, err, "group", "create application group")
		return
	}

	resp := CreateGroupResponse{GroupResponse: h.groupToResponse(r.Context(), def)}
	if req.Deploy {
		dep := DeploymentResponse{Name: def.Name, Members: resultsToResponse(results)}
		// Create drops the deployment id; the marker still carries it.
		if id, err := h.store.FindMarker(r.Context(), def.Name); err == nil {
			dep.DeploymentID = id
		}
		resp.Deployment = &dep
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleListGroups(w http.ResponseWriter, r *http.Request) {
	defs, err := h.store.ListGroups(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "group", "list application groups")
		return
	}

	resp := ListGroupsResponse{Groups: make([]GroupResponse, 0, len(defs))}
	for _, def := range defs {
		resp.Groups = append(resp.Groups, h.groupToResponse(r.Context(), def))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	def, err := h.store.FindGroup(r.Context(), name)
	if err != nil {
		h.writeDomainError(w, err, "group", "get application group")
		return
	}
	h.writeJSON(w, http.StatusOK, h.groupToResponse(r.Context(), def))
}

func (h *Handler) handleDestroyGroup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.orchestrator.Delete(r.Context(), name); err != nil {
		h.writeDomainError(w, err, "group", "destroy application group")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDestroyAllGroups(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.DeleteAll(r.Context()); err != nil {
		h.writeDomainError(w, err, "group", "destroy application groups")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Deployment Handlers
// =============================================================================

func (h *Handler) handleDeployGroup(w http.ResponseWriter, r *http.Request) {
	h.dispatchDeploy(w, r, h.orchestrator.Deploy, "deploy application group")
}

func (h *Handler) handleRedeployGroup(w http.ResponseWriter, r *http.Request) {
	h.dispatchDeploy(w, r, h.orchestrator.Redeploy, "redeploy application group")
}

// dispatchDeploy is the shared body of deploy and redeploy: parse the
// property list, dispatch, report the deployment id and per-member results.
func (h *Handler) dispatchDeploy(w http.ResponseWriter, r *http.Request,
	dispatch func(ctx context.Context, name string, props map[string]string) (string, []orchestrator.MemberResult, error),
	action string,
) {
	name := chi.URLParam(r, "name")

	var req DeployRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
			return
		}
	}

	props, err := properties.ParseList(req.Properties)
	if err != nil {
		h.writeDomainError(w, err, "group", action)
		return
	}

	id, results, err := dispatch(r.Context(), name, props)
	if err != nil {
		h.writeDomainError(w, err, "group", action)
		return
	}

	h.writeJSON(w, http.StatusCreated, DeploymentResponse{
		Name:         name,
		DeploymentID: id,
		Members:      resultsToResponse(results),
	})
}

func (h *Handler) handleUndeployGroup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	results, err := h.orchestrator.Undeploy(r.Context(), name)
	if err != nil {
		h.writeDomainError(w, err, "group", "undeploy application group")
		return
	}

	h.writeJSON(w, http.StatusOK, DeploymentResponse{
		Name:    name,
		Members: resultsToResponse(results),
	})
}

func (h *Handler) handleUndeployAllGroups(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.UndeployAll(r.Context()); err != nil {
		h.writeDomainError(w, err, "group", "undeploy application groups")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeploymentState(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	st, err := h.orchestrator.CalculateState(r.Context(), name)
	if err != nil {
		h.writeDomainError(w, err, "group", "get deployment state")
		return
	}
	h.writeJSON(w, http.StatusOK, DeploymentStateResponse{Name: name, State: string(st)})
}

// =============================================================================
// Import Handler
// =============================================================================

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	if req.URI == "" {
		h.writeError(w, http.StatusBadRequest, "uri is required", "validation_error")
		return
	}

	summary, err := h.registry.ImportDescriptor(r.Context(), req.URI, req.Force)
	if err != nil {
		h.writeDomainError(w, err, "import", "import descriptor")
		return
	}

	h.writeJSON(w, http.StatusCreated, ImportResponse{
		Apps:        summary.Apps,
		Definitions: summary.Definitions,
		Groups:      summary.Groups,
	})
}

// =============================================================================
// App Registry Handlers
// =============================================================================

func (h *Handler) handleRegisterApp(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseAppKind(chi.URLParam(r, "kind"))
	if !ok {
		h.writeError(w, http.StatusBadRequest, "unknown app kind "+chi.URLParam(r, "kind"), "unknown_kind")
		return
	}
	name := chi.URLParam(r, "name")

	var req RegisterAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	if req.URI == "" {
		h.writeError(w, http.StatusBadRequest, "uri is required", "validation_error")
		return
	}

	if err := h.registry.Register(r.Context(), kind, name, req.URI, req.Force); err != nil {
		h.writeDomainError(w, err, "app", "register app")
		return
	}

	h.writeJSON(w, http.StatusCreated, AppResponse{
		Kind: string(kind),
		Name: name,
		URI:  req.URI,
	})
}

func (h *Handler) handleUnregisterApp(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseAppKind(chi.URLParam(r, "kind"))
	if !ok {
		h.writeError(w, http.StatusBadRequest, "unknown app kind "+chi.URLParam(r, "kind"), "unknown_kind")
		return
	}

	if err := h.registry.Unregister(r.Context(), kind, chi.URLParam(r, "name")); err != nil {
		h.writeDomainError(w, err, "app", "unregister app")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListApps(w http.ResponseWriter, r *http.Request) {
	regs, err := h.registry.List(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "app", "list apps")
		return
	}

	resp := ListAppsResponse{Apps: make([]AppResponse, 0, len(regs))}
	for _, reg := range regs {
		resp.Apps = append(resp.Apps, AppResponse{
			Kind: string(reg.Kind),
			Name: reg.Name,
			URI:  reg.URI,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// parseAppKind resolves a registration kind label. Only deployable kinds are
// valid; groups are compositions, not apps.
func parseAppKind(label string) (dsl.Kind, bool) {
	kind, ok := dsl.ParseKind(label)
	if !ok || kind == dsl.KindGroup {
		return "", false
	}
	return kind, true
}

// =============================================================================
// Member Definition Handlers
// =============================================================================

func (h *Handler) handleCreateDefinition(kind dsl.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDefinitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
			return
		}
		if req.Name == "" {
			h.writeError(w, http.StatusBadRequest, "name is required", "validation_error")
			return
		}
		if req.DSL == "" {
			h.writeError(w, http.StatusBadRequest, "dsl is required", "validation_error")
			return
		}

		def := definition.MemberDefinition{Kind: kind, Name: req.Name, DSLText: req.DSL}
		if err := h.store.SaveDefinition(r.Context(), def, req.Force); err != nil {
			h.writeDomainError(w, err, string(kind), "create "+string(kind)+" definition")
			return
		}

		h.logger.Info("created member definition", "kind", kind, "name", req.Name, "force", req.Force)
		h.writeJSON(w, http.StatusCreated, definitionToResponse(def))
	}
}

func (h *Handler) handleListDefinitions(kind dsl.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defs, err := h.store.ListDefinitions(r.Context(), kind)
		if err != nil {
			h.writeDomainError(w, err, string(kind), "list "+string(kind)+" definitions")
			return
		}

		resp := ListDefinitionsResponse{Definitions: make([]DefinitionResponse, 0, len(defs))}
		for _, def := range defs {
			resp.Definitions = append(resp.Definitions, definitionToResponse(def))
		}
		h.writeJSON(w, http.StatusOK, resp)
	}
}

func (h *Handler) handleGetDefinition(kind dsl.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		def, err := h.store.FindDefinition(r.Context(), kind, chi.URLParam(r, "name"))
		if err != nil {
			h.writeDomainError(w, err, string(kind), "get "+string(kind)+" definition")
			return
		}
		h.writeJSON(w, http.StatusOK, definitionToResponse(def))
	}
}

func (h *Handler) handleDeleteDefinition(kind dsl.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.DeleteDefinition(r.Context(), kind, chi.URLParam(r, "name")); err != nil {
			h.writeDomainError(w, err, string(kind), "delete "+string(kind)+" definition")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// writeDomainError maps domain errors onto HTTP statuses: definition text
// and property failures 400, missing entities 404, duplicates and deploy
// state conflicts 409, missing references 422 with the full report, anything
// else 500. entity scopes the not-found and conflict codes; action words the
// internal error message.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error, entity, action string) {
	var refErr *definition.ReferentialIntegrityError
	var parseErr *dsl.ParseError
	var lexErr *dsl.LexError
	var kindErr *dsl.UnknownKindError

	switch {
	case errors.As(err, &refErr):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error(), "missing_references")
	case errors.As(err, &parseErr), errors.As(err, &lexErr), errors.As(err, &kindErr):
		h.writeError(w, http.StatusBadRequest, err.Error(), "invalid_definition")
	case errors.Is(err, properties.ErrMalformedProperty):
		h.writeError(w, http.StatusBadRequest, err.Error(), "invalid_properties")
	case errors.Is(err, store.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error(), entity+"_not_found")
	case errors.Is(err, store.ErrAlreadyExists):
		h.writeError(w, http.StatusConflict, err.Error(), entity+"_exists")
	case errors.Is(err, orchestrator.ErrAlreadyDeployed):
		h.writeError(w, http.StatusConflict, err.Error(), "already_deployed")
	case errors.Is(err, orchestrator.ErrAlreadyDeploying):
		h.writeError(w, http.StatusConflict, err.Error(), "already_deploying")
	default:
		h.logger.Error("request failed", "action", action, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to "+action, "internal_error")
	}
}

// groupToResponse renders a definition with its freshly aggregated state.
func (h *Handler) groupToResponse(ctx context.Context, def definition.GroupDefinition) GroupResponse {
	members := make([]MemberResponse, 0, len(def.Members))
	for _, ref := range def.Members {
		members = append(members, MemberResponse{Name: ref.Name, Kind: string(ref.Kind)})
	}

	st, err := h.orchestrator.CalculateState(ctx, def.Name)
	if err != nil {
		st = state.StateError
	}

	return GroupResponse{
		Name:    def.Name,
		DSL:     def.DSLText,
		State:   string(st),
		Members: members,
	}
}

func definitionToResponse(def definition.MemberDefinition) DefinitionResponse {
	return DefinitionResponse{
		Kind: string(def.Kind),
		Name: def.Name,
		DSL:  def.DSLText,
	}
}

func resultsToResponse(results []orchestrator.MemberResult) []MemberResultResponse {
	out := make([]MemberResultResponse, 0, len(results))
	for _, res := range results {
		mr := MemberResultResponse{Name: res.Name, Kind: string(res.Kind)}
		if res.Err != nil {
			mr.Error = res.Err.Error()
		}
		out = append(out, mr)
	}
	return out
}
