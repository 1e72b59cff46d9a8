// Package client is the Go client for the dataflow server's REST API. The
// dataflow CLI shell is its only in-tree consumer, but it stands on its own.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client calls the dataflow server's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds client configuration.
type Config struct {
	BaseURL string // server base URL, e.g. "http://localhost:9393"
	Timeout time.Duration
}

// NewClient creates a new API client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a non-2xx response from the server, carrying the decoded error
// envelope when the body held one.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned status %d", e.Status)
}

// =============================================================================
// Wire Types
// =============================================================================

// Member is one reference inside an application group.
type Member struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Group is an application group definition with its aggregate state.
type Group struct {
	Name    string   `json:"name"`
	DSL     string   `json:"dsl"`
	State   string   `json:"state"`
	Members []Member `json:"members"`
}

// MemberResult is the outcome of one member dispatch.
type MemberResult struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Error string `json:"error,omitempty"`
}

// Deployment reports a deploy, redeploy, or undeploy dispatch.
type Deployment struct {
	Name         string         `json:"name"`
	DeploymentID string         `json:"deploymentId,omitempty"`
	Members      []MemberResult `json:"members"`
}

// CreatedGroup is the created group, plus the dispatch report when the
// request asked for an immediate deploy.
type CreatedGroup struct {
	Group
	Deployment *Deployment `json:"deployment,omitempty"`
}

// DeploymentState is a group's aggregate lifecycle state.
type DeploymentState struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// ImportReport counts what a descriptor import touched.
type ImportReport struct {
	Apps        int `json:"apps"`
	Definitions int `json:"definitions"`
	Groups      int `json:"groups"`
}

// App is a registered deployable artifact.
type App struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// Definition is a per-kind member definition.
type Definition struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	DSL  string `json:"dsl"`
}

// About identifies the server.
type About struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type createGroupRequest struct {
	Name   string `json:"name"`
	DSL    string `json:"dsl"`
	Force  bool   `json:"force,omitempty"`
	Deploy bool   `json:"deploy,omitempty"`
}

type deployRequest struct {
	Properties string `json:"properties,omitempty"`
}

type importRequest struct {
	URI   string `json:"uri"`
	Force bool   `json:"force,omitempty"`
}

type registerAppRequest struct {
	URI   string `json:"uri"`
	Force bool   `json:"force,omitempty"`
}

type createDefinitionRequest struct {
	Name  string `json:"name"`
	DSL   string `json:"dsl"`
	Force bool   `json:"force,omitempty"`
}

type groupList struct {
	Groups []Group `json:"groups"`
}

type appList struct {
	Apps []App `json:"apps"`
}

type definitionList struct {
	Definitions []Definition `json:"definitions"`
}

type errorEnvelope struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// =============================================================================
// Application Group Operations
// =============================================================================

// CreateGroup creates an application group definition, optionally deploying
// it right away.
func (c *Client) CreateGroup(ctx context.Context, name, dsl string, force, deploy bool) (CreatedGroup, error) {
	var out CreatedGroup
	err := c.do(ctx, http.MethodPost, "/api/v1/application-groups/definitions",
		createGroupRequest{Name: name, DSL: dsl, Force: force, Deploy: deploy}, &out)
	return out, err
}

// ListGroups returns all application groups with their aggregate states.
func (c *Client) ListGroups(ctx context.Context) ([]Group, error) {
	var out groupList
	if err := c.do(ctx, http.MethodGet, "/api/v1/application-groups/definitions", nil, &out); err != nil {
		return nil, err
	}
	return out.Groups, nil
}

// GetGroup returns one application group.
func (c *Client) GetGroup(ctx context.Context, name string) (Group, error) {
	var out Group
	err := c.do(ctx, http.MethodGet, "/api/v1/application-groups/definitions/"+url.PathEscape(name), nil, &out)
	return out, err
}

// DestroyGroup undeploys the group, cascades its member definitions, and
// deletes it.
func (c *Client) DestroyGroup(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/application-groups/definitions/"+url.PathEscape(name), nil, nil)
}

// DestroyAllGroups destroys every application group.
func (c *Client) DestroyAllGroups(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/application-groups/definitions", nil, nil)
}

// DeployGroup deploys the group with the given comma-delimited property list.
func (c *Client) DeployGroup(ctx context.Context, name, properties string) (Deployment, error) {
	var out Deployment
	err := c.do(ctx, http.MethodPost, "/api/v1/application-groups/deployments/"+url.PathEscape(name),
		deployRequest{Properties: properties}, &out)
	return out, err
}

// RedeployGroup undeploys and deploys the group again.
func (c *Client) RedeployGroup(ctx context.Context, name, properties string) (Deployment, error) {
	var out Deployment
	err := c.do(ctx, http.MethodPut, "/api/v1/application-groups/deployments/"+url.PathEscape(name),
		deployRequest{Properties: properties}, &out)
	return out, err
}

// UndeployGroup undeploys the group.
func (c *Client) UndeployGroup(ctx context.Context, name string) (Deployment, error) {
	var out Deployment
	err := c.do(ctx, http.MethodDelete, "/api/v1/application-groups/deployments/"+url.PathEscape(name), nil, &out)
	return out, err
}

// UndeployAllGroups undeploys every application group.
func (c *Client) UndeployAllGroups(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/application-groups/deployments", nil, nil)
}

// GetDeploymentState returns the group's freshly aggregated lifecycle state.
func (c *Client) GetDeploymentState(ctx context.Context, name string) (DeploymentState, error) {
	var out DeploymentState
	err := c.do(ctx, http.MethodGet, "/api/v1/application-groups/deployments/"+url.PathEscape(name), nil, &out)
	return out, err
}

// ImportDescriptor imports an application group descriptor artifact.
func (c *Client) ImportDescriptor(ctx context.Context, uri string, force bool) (ImportReport, error) {
	var out ImportReport
	err := c.do(ctx, http.MethodPost, "/api/v1/application-groups/import",
		importRequest{URI: uri, Force: force}, &out)
	return out, err
}

// =============================================================================
// App Registry Operations
// =============================================================================

// RegisterApp registers a deployable app under (kind, name).
func (c *Client) RegisterApp(ctx context.Context, kind, name, uri string, force bool) (App, error) {
	var out App
	err := c.do(ctx, http.MethodPost, "/api/v1/apps/"+url.PathEscape(kind)+"/"+url.PathEscape(name),
		registerAppRequest{URI: uri, Force: force}, &out)
	return out, err
}

// ListApps returns all app registrations ordered by kind then name.
func (c *Client) ListApps(ctx context.Context) ([]App, error) {
	var out appList
	if err := c.do(ctx, http.MethodGet, "/api/v1/apps", nil, &out); err != nil {
		return nil, err
	}
	return out.Apps, nil
}

// UnregisterApp removes an app registration.
func (c *Client) UnregisterApp(ctx context.Context, kind, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/apps/"+url.PathEscape(kind)+"/"+url.PathEscape(name), nil, nil)
}

// =============================================================================
// Member Definition Operations
// =============================================================================

// kindPath maps a definition kind to its API route segment.
func kindPath(kind string) (string, error) {
	switch kind {
	case "stream":
		return "/api/v1/streams/definitions", nil
	case "task":
		return "/api/v1/tasks/definitions", nil
	case "standalone":
		return "/api/v1/standalone/definitions", nil
	}
	return "", fmt.Errorf("unknown definition kind %q", kind)
}

// CreateDefinition creates a member definition of the given kind.
func (c *Client) CreateDefinition(ctx context.Context, kind, name, dsl string, force bool) (Definition, error) {
	var out Definition
	base, err := kindPath(kind)
	if err != nil {
		return out, err
	}
	err = c.do(ctx, http.MethodPost, base, createDefinitionRequest{Name: name, DSL: dsl, Force: force}, &out)
	return out, err
}

// ListDefinitions returns all member definitions of the given kind.
func (c *Client) ListDefinitions(ctx context.Context, kind string) ([]Definition, error) {
	base, err := kindPath(kind)
	if err != nil {
		return nil, err
	}
	var out definitionList
	if err := c.do(ctx, http.MethodGet, base, nil, &out); err != nil {
		return nil, err
	}
	return out.Definitions, nil
}

// GetDefinition returns one member definition.
func (c *Client) GetDefinition(ctx context.Context, kind, name string) (Definition, error) {
	var out Definition
	base, err := kindPath(kind)
	if err != nil {
		return out, err
	}
	err = c.do(ctx, http.MethodGet, base+"/"+url.PathEscape(name), nil, &out)
	return out, err
}

// DeleteDefinition removes a member definition.
func (c *Client) DeleteDefinition(ctx context.Context, kind, name string) error {
	base, err := kindPath(kind)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, base+"/"+url.PathEscape(name), nil, nil)
}

// =============================================================================
// Operational Endpoints
// =============================================================================

// About returns the server's name and version.
func (c *Client) About(ctx context.Context) (About, error) {
	var out About
	err := c.do(ctx, http.MethodGet, "/about", nil, &out)
	return out, err
}

// =============================================================================
// Transport
// =============================================================================

// do sends one request and decodes the response. A nil body sends no payload;
// a nil out discards the response body. Non-2xx statuses decode the server's
// error envelope into an APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError turns an error response into an APIError, falling back to the
// raw body when it is not the JSON envelope.
func (c *Client) decodeError(resp *http.Response) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Status: resp.StatusCode}
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error == "" {
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	return &APIError{Status: resp.StatusCode, Message: envelope.Error, Code: envelope.Code}
}
