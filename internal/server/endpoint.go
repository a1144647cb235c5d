package server

import (
	"log/slog"
	"net/http"
	"reflect"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// api carries what every endpoint needs besides the request services.
type api struct {
	logger         *slog.Logger
	validate       *validator.Validate
	checkResponses bool
	broker         *Broker
	baseURL        string
}

// noInput is the request type of endpoints without parameters or body.
type noInput struct{}

// noContent is the response type of 204 endpoints.
type noContent struct{}

// endpoint is a handler together with the types the API description is
// generated from.
type endpoint struct {
	in          any
	out         any
	status      int
	contentType string
	handler     http.HandlerFunc
}

// op adapts fn into an endpoint: the request is bound and validated into
// an In before fn runs, and fn's result is written with status.
func op[In, Out any](a *api, status int, fn func(r *http.Request, in *In) (Out, error)) endpoint {
	return build(a, status, fn, nil)
}

// created is op for 201 responses; location gives the new resource's path.
func created[In, Out any](a *api, fn func(r *http.Request, in *In) (Out, error), location func(Out) string) endpoint {
	return build(a, http.StatusCreated, fn, location)
}

func build[In, Out any](a *api, status int, fn func(r *http.Request, in *In) (Out, error), location func(Out) string) endpoint {
	var in In
	var out Out
	return endpoint{
		in:     in,
		out:    out,
		status: status,
		handler: func(w http.ResponseWriter, r *http.Request) {
			var in In
			if err := a.bind(r, &in); err != nil {
				a.fail(w, r, err)
				return
			}
			out, err := fn(r, &in)
			if err != nil {
				a.fail(w, r, err)
				return
			}
			if location != nil {
				w.Header().Set("Location", a.baseURL+location(out))
			}
			a.respond(w, r, status, out)
		},
	}
}

func (a *api) respond(w http.ResponseWriter, r *http.Request, status int, out any) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	if a.checkResponses {
		if err := a.checkResponse(out); err != nil {
			a.logger.Error("response failed validation",
				"type", reflect.TypeOf(out).String(),
				"request_id", middleware.GetReqID(r.Context()),
				"error", err,
			)
			writeError(w, r, newAPIError(http.StatusInternalServerError, CodeInternal, "internal server error"))
			return
		}
	}
	writeJSON(w, status, out)
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	ae, unexpected := toAPIError(err)
	if unexpected {
		a.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	writeError(w, r, ae)
}
