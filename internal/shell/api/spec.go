package api

import (
	"net/http"
	"strings"

	"github.com/donovanmuller/spring-cloud-dataflow/internal/shell/api/openapi"
)

// specHandler builds the OpenAPI document covering every route the server
// exposes and returns the handler that serves it.
func specHandler(version string) http.HandlerFunc {
	g := openapi.NewGenerator(
		openapi.WithTitle("Dataflow API"),
		openapi.WithVersion(version),
		openapi.WithDescription("Application group orchestration API"),
		openapi.WithServer("http://localhost:9393"),
	)

	ops := []openapi.Operation{
		// Application group definitions
		{
			Method: http.MethodPost, Path: "/api/v1/application-groups/definitions",
			OperationID: "createApplicationGroup", Summary: "Create an application group",
			Tag: "ApplicationGroups", Request: CreateGroupRequest{}, Response: CreateGroupResponse{},
			Status: http.StatusCreated,
		},
		{
			Method: http.MethodGet, Path: "/api/v1/application-groups/definitions",
			OperationID: "listApplicationGroups", Summary: "List application groups",
			Tag: "ApplicationGroups", Response: ListGroupsResponse{},
		},
		{
			Method: http.MethodDelete, Path: "/api/v1/application-groups/definitions",
			OperationID: "destroyAllApplicationGroups", Summary: "Destroy all application groups",
			Tag: "ApplicationGroups", Status: http.StatusNoContent,
		},
		{
			Method: http.MethodGet, Path: "/api/v1/application-groups/definitions/{name}",
			OperationID: "getApplicationGroup", Summary: "Get an application group",
			Tag: "ApplicationGroups", Response: GroupResponse{},
		},
		{
			Method: http.MethodDelete, Path: "/api/v1/application-groups/definitions/{name}",
			OperationID: "destroyApplicationGroup", Summary: "Destroy an application group",
			Tag: "ApplicationGroups", Status: http.StatusNoContent,
		},

		// Deployments
		{
			Method: http.MethodPost, Path: "/api/v1/application-groups/deployments/{name}",
			OperationID: "deployApplicationGroup", Summary: "Deploy an application group",
			Tag: "Deployments", Request: DeployRequest{}, Response: DeploymentResponse{},
			Status: http.StatusCreated,
		},
		{
			Method: http.MethodPut, Path: "/api/v1/application-groups/deployments/{name}",
			OperationID: "redeployApplicationGroup", Summary: "Redeploy an application group",
			Tag: "Deployments", Request: DeployRequest{}, Response: DeploymentResponse{},
			Status: http.StatusCreated,
		},
		{
			Method: http.MethodGet, Path: "/api/v1/application-groups/deployments/{name}",
			OperationID: "getDeploymentState", Summary: "Get the aggregated deployment state",
			Tag: "Deployments", Response: DeploymentStateResponse{},
		},
		{
			Method: http.MethodDelete, Path: "/api/v1/application-groups/deployments/{name}",
			OperationID: "undeployApplicationGroup", Summary: "Undeploy an application group",
			Tag: "Deployments", Response: DeploymentResponse{},
		},
		{
			Method: http.MethodDelete, Path: "/api/v1/application-groups/deployments",
			OperationID: "undeployAllApplicationGroups", Summary: "Undeploy all application groups",
			Tag: "Deployments", Status: http.StatusNoContent,
		},
		{
			Method: http.MethodPost, Path: "/api/v1/application-groups/import",
			OperationID: "importDescriptor", Summary: "Import a descriptor artifact",
			Tag: "ApplicationGroups", Request: ImportRequest{}, Response: ImportResponse{},
			Status: http.StatusCreated,
		},

		// App registry
		{
			Method: http.MethodGet, Path: "/api/v1/apps",
			OperationID: "listApps", Summary: "List app registrations",
			Tag: "Apps", Response: ListAppsResponse{},
		},
		{
			Method: http.MethodPost, Path: "/api/v1/apps/{kind}/{name}",
			OperationID: "registerApp", Summary: "Register an app artifact",
			Tag: "Apps", Request: RegisterAppRequest{}, Response: AppResponse{},
			Status: http.StatusCreated,
		},
		{
			Method: http.MethodDelete, Path: "/api/v1/apps/{kind}/{name}",
			OperationID: "unregisterApp", Summary: "Unregister an app",
			Tag: "Apps", Status: http.StatusNoContent,
		},

		// Operational
		{
			Method: http.MethodGet, Path: "/about",
			OperationID: "about", Summary: "Server name and version",
			Tag: "Operational", Response: AboutResponse{},
		},
		{
			Method: http.MethodGet, Path: "/health",
			OperationID: "health", Summary: "Liveness check",
			Tag: "Operational", Response: HealthResponse{},
		},
	}

	// Member definition CRUD, repeated per kind.
	for _, kind := range []struct {
		prefix string
		label  string
		tag    string
	}{
		{"/api/v1/streams/definitions", "Stream", "Streams"},
		{"/api/v1/tasks/definitions", "Task", "Tasks"},
		{"/api/v1/standalone/definitions", "Standalone", "Standalone"},
	} {
		lower := strings.ToLower(kind.label)
		ops = append(ops,
			openapi.Operation{
				Method: http.MethodPost, Path: kind.prefix,
				OperationID: "create" + kind.label + "Definition", Summary: "Create a " + lower + " definition",
				Tag: kind.tag, Request: CreateDefinitionRequest{}, Response: DefinitionResponse{},
				Status: http.StatusCreated,
			},
			openapi.Operation{
				Method: http.MethodGet, Path: kind.prefix,
				OperationID: "list" + kind.label + "Definitions", Summary: "List " + lower + " definitions",
				Tag: kind.tag, Response: ListDefinitionsResponse{},
			},
			openapi.Operation{
				Method: http.MethodGet, Path: kind.prefix + "/{name}",
				OperationID: "get" + kind.label + "Definition", Summary: "Get a " + lower + " definition",
				Tag: kind.tag, Response: DefinitionResponse{},
			},
			openapi.Operation{
				Method: http.MethodDelete, Path: kind.prefix + "/{name}",
				OperationID: "delete" + kind.label + "Definition", Summary: "Delete a " + lower + " definition",
				Tag: kind.tag, Status: http.StatusNoContent,
			},
		)
	}

	for _, op := range ops {
		g.RegisterOperation(op)
	}

	return g.Handler()
}
