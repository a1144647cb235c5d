package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"slices"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/tabletop/internal/handler/health"
)

const bearerScheme = "bearerAuth"

// newOpenAPISpec describes every route of the table. An error means the
// table and its request types disagree, e.g. a path placeholder without a
// matching path field.
func newOpenAPISpec(table []route, version, baseURL string) (*openapi3.Spec, error) {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Tabletop API"
	r.Spec.Info.Version = version
	r.Spec.Info.WithDescription("Gateway for the tabletop abstract strategy game platform.")
	if baseURL != "" {
		r.Spec.WithServers(openapi3.Server{URL: baseURL})
	}
	r.Spec.SetHTTPBearerTokenSecurity(bearerScheme, "JWT",
		"The shared API token, or an HS256 token signed with it whose subject is the user id.")

	getHealth, err := r.NewOperationContext(http.MethodGet, "/health")
	if err != nil {
		return nil, err
	}
	getHealth.SetTags("platform")
	getHealth.SetSummary("Health check")
	getHealth.SetDescription("Reports the service version and the state of its dependencies.")
	getHealth.AddRespStructure(health.Response{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealth.AddRespStructure(health.Response{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	if err := r.AddOperation(getHealth); err != nil {
		return nil, err
	}

	for _, rt := range table {
		oc, err := r.NewOperationContext(rt.method, rt.path)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", rt.method, rt.path, err)
		}
		oc.SetTags(rt.tag)
		oc.SetSummary(rt.summary)
		if rt.description != "" {
			oc.SetDescription(rt.description)
		}
		if rt.auth {
			oc.AddSecurity(bearerScheme)
		}

		if hasFields(rt.endpoint.in) {
			oc.AddReqStructure(rt.endpoint.in)
		}

		switch {
		case rt.endpoint.contentType != "":
			oc.AddRespStructure(nil, openapi.WithHTTPStatus(rt.endpoint.status),
				openapi.WithContentType(rt.endpoint.contentType))
		case rt.endpoint.status == http.StatusNoContent:
			oc.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
		default:
			oc.AddRespStructure(rt.endpoint.out, openapi.WithHTTPStatus(rt.endpoint.status))
		}

		for _, status := range errorStatuses(rt) {
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(status))
		}

		if err := r.AddOperation(oc); err != nil {
			return nil, fmt.Errorf("%s %s: %w", rt.method, rt.path, err)
		}
	}

	return r.Spec, nil
}

// errorStatuses lists the error responses a route can produce: the ones
// every route shares plus the route's own.
func errorStatuses(rt route) []int {
	statuses := []int{http.StatusBadRequest, http.StatusTooManyRequests, http.StatusInternalServerError}
	if rt.auth {
		statuses = append(statuses, http.StatusUnauthorized)
	}
	for _, s := range rt.errors {
		if !slices.Contains(statuses, s) {
			statuses = append(statuses, s)
		}
	}
	slices.Sort(statuses)
	return statuses
}

func hasFields(v any) bool {
	t := reflect.TypeOf(v)
	return t != nil && t.Kind() == reflect.Struct && t.NumField() > 0
}

func handleOpenAPI(spec *openapi3.Spec) http.HandlerFunc {
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
