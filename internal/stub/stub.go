// Package stub is a development backend implementing the slice of the
// Riberry HTTP API this client consumes: token issuance, self profile,
// forms, job summary, and multipart job submission. Integration tests and
// local CLI runs point at it instead of a real deployment.
package stub

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
)

// Config for the stub handler.
type Config struct {
	World     *World
	JWTSecret string
}

// envelope is the {data, error} wrapper every endpoint returns.
type envelope struct {
	Data  any `json:"data"`
	Error any `json:"error,omitempty" jsonschema:"type=string"`
}

type envelopeResponse struct {
	Body envelope `json:"body"`
}

func dataResponse(data any) (*envelopeResponse, error) {
	return &envelopeResponse{Body: envelope{Data: data}}, nil
}

// New returns an HTTP handler exposing the stub API.
func New(cfg Config) (http.Handler, error) {
	world := cfg.World
	if world == nil {
		world = NewWorld()
	}
	secret := cfg.JWTSecret
	if secret == "" {
		secret = "riberry-stub"
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(secret))
	hcfg := huma.DefaultConfig("Riberry Stub API", "0.1.0")
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)

	registerAuth(api, world, secret)
	registerSelf(api, world)
	registerForms(api, world)
	registerSummary(api, world)
	registerCreateJob(router, world)

	return router, nil
}

func registerAuth(api huma.API, world *World, secret string) {
	huma.Register(api, huma.Operation{
		OperationID: "create-session",
		Method:      http.MethodPost,
		Path:        "/auth/token",
		Summary:     "Exchange credentials for a bearer token",
	}, func(ctx context.Context, input *struct {
		Body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		} `json:"body"`
	}) (*envelopeResponse, error) {
		if !world.checkCredentials(input.Body.Username, input.Body.Password) {
			// Login failures ride the envelope, not the status code: the
			// client inspects the error field.
			return &envelopeResponse{Body: envelope{Error: "invalid credentials"}}, nil
		}
		token, err := signToken(secret, input.Body.Username, world.nowFn())
		if err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		return dataResponse(map[string]string{"token": token})
	})
}

func registerSelf(api huma.API, world *World) {
	huma.Register(api, huma.Operation{
		OperationID: "self-profile",
		Method:      http.MethodGet,
		Path:        "/self/",
		Summary:     "Current user profile",
	}, func(ctx context.Context, input *struct {
		Expand string `query:"expand"`
	}) (*envelopeResponse, error) {
		username, ok := principalFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}
		return dataResponse(world.userPayload(username, parseExpansion(input.Expand)))
	})
}

func registerForms(api huma.API, world *World) {
	huma.Register(api, huma.Operation{
		OperationID: "list-forms",
		Method:      http.MethodGet,
		Path:        "/forms/",
		Summary:     "List forms",
	}, func(ctx context.Context, input *struct {
		Expand string `query:"expand"`
	}) (*envelopeResponse, error) {
		exp := parseExpansion(input.Expand)
		return dataResponse([]any{world.formPayload(exp)})
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-form",
		Method:      http.MethodGet,
		Path:        "/forms/{id}",
		Summary:     "Fetch one form",
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		Expand string `query:"expand"`
	}) (*envelopeResponse, error) {
		if input.ID != "1" {
			return nil, huma.Error404NotFound("form not found")
		}
		return dataResponse(world.formPayload(parseExpansion(input.Expand)))
	})
}

func registerSummary(api huma.API, world *World) {
	huma.Register(api, huma.Operation{
		OperationID: "job-summary",
		Method:      http.MethodGet,
		Path:        "/jobs/summary",
		Summary:     "Execution counters for the current user",
	}, func(ctx context.Context, _ *struct{}) (*envelopeResponse, error) {
		return dataResponse(world.summaryPayload())
	})
}

// registerCreateJob handles the multipart submission directly on the
// router; huma's typed bodies do not fit a dynamic part-per-input-file
// request.
func registerCreateJob(router chi.Router, world *World) {
	router.Post("/forms/{id}/jobs", func(w http.ResponseWriter, req *http.Request) {
		username, ok := principalFromContext(req.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if chi.URLParam(req, "id") != "1" {
			respondError(w, http.StatusNotFound, "form not found")
			return
		}
		if err := req.ParseMultipartForm(32 << 20); err != nil {
			respondError(w, http.StatusBadRequest, "multipart body required")
			return
		}
		name := req.FormValue("jobName")
		if name == "" {
			respondError(w, http.StatusBadRequest, "jobName is required")
			return
		}
		executeNow := req.FormValue("executeNow") == "1"
		world.createJob(name, username, executeNow)
		w.WriteHeader(http.StatusCreated)
	})
}
