package api

// =============================================================================
// Request Types
// =============================================================================

// CreateGroupRequest is the request body for creating an application group.
type CreateGroupRequest struct {
	Name   string `json:"name"`
	DSL    string `json:"dsl"`
	Force  bool   `json:"force,omitempty"`
	Deploy bool   `json:"deploy,omitempty"`
}

// DeployRequest carries deployment properties as a comma-delimited
// "key=value,key=value" list, scoped with "app.<member>." or "app.*."
// prefixes.
type DeployRequest struct {
	Properties string `json:"properties,omitempty"`
}

// ImportRequest is the request body for importing a descriptor artifact.
type ImportRequest struct {
	URI   string `json:"uri"`
	Force bool   `json:"force,omitempty"`
}

// RegisterAppRequest is the request body for registering an app artifact.
type RegisterAppRequest struct {
	URI   string `json:"uri"`
	Force bool   `json:"force,omitempty"`
}

// CreateDefinitionRequest is the request body for creating a member
// definition. The kind comes from the route.
type CreateDefinitionRequest struct {
	Name  string `json:"name"`
	DSL   string `json:"dsl"`
	Force bool   `json:"force,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// MemberResponse is one member reference of an application group.
type MemberResponse struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// GroupResponse is the API representation of an application group, including
// its freshly aggregated deployment state.
type GroupResponse struct {
	Name    string           `json:"name"`
	DSL     string           `json:"dsl"`
	State   string           `json:"state"`
	Members []MemberResponse `json:"members"`
}

// ListGroupsResponse is the response for listing application groups.
type ListGroupsResponse struct {
	Groups []GroupResponse `json:"groups"`
}

// MemberResultResponse is the outcome of one member dispatch. Error is empty
// when the dispatch succeeded or was skipped.
type MemberResultResponse struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Error string `json:"error,omitempty"`
}

// DeploymentResponse reports a deploy, redeploy, or undeploy dispatch. The
// deployment id is absent for undeploys.
type DeploymentResponse struct {
	Name         string                 `json:"name"`
	DeploymentID string                 `json:"deploymentId,omitempty"`
	Members      []MemberResultResponse `json:"members"`
}

// DeploymentStateResponse is the aggregated state of one group.
type DeploymentStateResponse struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// ImportResponse summarizes what a descriptor import created.
type ImportResponse struct {
	Apps        int `json:"apps"`
	Definitions int `json:"definitions"`
	Groups      int `json:"groups"`
}

// AppResponse is one app registration.
type AppResponse struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// ListAppsResponse is the response for listing app registrations.
type ListAppsResponse struct {
	Apps []AppResponse `json:"apps"`
}

// DefinitionResponse is one member definition.
type DefinitionResponse struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	DSL  string `json:"dsl"`
}

// ListDefinitionsResponse is the response for listing member definitions of
// one kind.
type ListDefinitionsResponse struct {
	Definitions []DefinitionResponse `json:"definitions"`
}

// AboutResponse identifies the server.
type AboutResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
