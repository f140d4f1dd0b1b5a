package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"shootboard/internal/domain"
	"shootboard/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Repo     repo.Repo
	BasePath string
	Auth     AuthConfig
	Logger   *zap.Logger
	// Registry receives the request metrics. A private registry is used when nil.
	Registry *prometheus.Registry
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"task abc not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"field\":\"status\"}"`
}

type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the shootboard store API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = logger
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m, err := newMetrics(reg)
	if err != nil {
		return nil, err
	}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	hcfg := huma.DefaultConfig("Shootboard API", "0.1.0")
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h := handlers{repo: cfg.Repo, logger: logger, metrics: m}
	registerHealth(group)
	for _, k := range domain.Kinds() {
		h.registerKind(group, k)
	}
	h.registerEvents(group)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	var fe domain.FieldError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": fe.Field})
	}
	if errors.Is(err, repo.ErrUnknownField) || errors.Is(err, repo.ErrUnknownKind) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "foreign key"),
		strings.Contains(lowered, "constraint"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	// Built on first request, after every operation is registered.
	spec := sync.OnceValue(func() []byte {
		oas := api.OpenAPI()
		ensureDefaultErrorResponses(oas)
		b, _ := json.Marshal(oas)
		return b
	})
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec())
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

type handlers struct {
	repo    repo.Repo
	logger  *zap.Logger
	metrics *metrics
}

// registerKind exposes list/insert/update/delete for one collection.
func (h handlers) registerKind(api huma.API, k domain.Kind) {
	name := string(k)
	singular := k.Singular()
	collection := "/" + name
	item := collection + "/{id}"

	huma.Register(api, huma.Operation{
		OperationID: "list-" + name,
		Method:      http.MethodGet,
		Path:        collection,
		Summary:     "List " + name,
		Tags:        []string{name},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Record `json:"body"`
	}, error) {
		items, err := h.repo.List(ctx, k)
		h.metrics.observe(k, "list", err)
		if err != nil {
			return nil, h.handleError(ctx, k, "list", err)
		}
		if items == nil {
			items = []domain.Record{}
		}
		return &struct {
			Body []domain.Record `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "insert-" + singular,
		Method:        http.MethodPost,
		Path:          collection,
		Summary:       "Insert " + singular,
		Tags:          []string{name},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body domain.Record `json:"body"`
	}) (*struct {
		Body CreatedResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := validateInsert(k, input.Body); err != nil {
			h.metrics.observe(k, "insert", err)
			return nil, handleError(err)
		}
		id, err := h.repo.Create(ctx, k, input.Body)
		h.metrics.observe(k, "insert", err)
		if err != nil {
			return nil, h.handleError(ctx, k, "insert", err)
		}
		return &struct {
			Body CreatedResponse `json:"body"`
		}{Body: CreatedResponse{ID: id}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-" + singular,
		Method:      http.MethodPatch,
		Path:        item,
		Summary:     "Update " + singular + " fields",
		Tags:        []string{name},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body domain.Record `json:"body"`
	}) (*struct {
		Body UpdatedResponse `json:"body"`
	}, error) {
		if err := domain.ValidateFields(k, input.Body); err != nil {
			h.metrics.observe(k, "update", err)
			return nil, handleError(err)
		}
		err := h.repo.Update(ctx, k, input.ID, input.Body)
		h.metrics.observe(k, "update", err)
		if err != nil {
			return nil, h.handleError(ctx, k, "update", err)
		}
		return &struct {
			Body UpdatedResponse `json:"body"`
		}{Body: UpdatedResponse{ID: input.ID, Fields: len(input.Body)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-" + singular,
		Method:        http.MethodDelete,
		Path:          item,
		Summary:       "Delete " + singular,
		Tags:          []string{name},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		err := h.repo.Delete(ctx, k, input.ID)
		h.metrics.observe(k, "delete", err)
		if err != nil {
			return nil, h.handleError(ctx, k, "delete", err)
		}
		return nil, nil
	})
}

func (h handlers) registerEvents(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent writes",
		Tags:        []string{"events"},
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body EventsResponse `json:"body"`
	}, error) {
		items, err := h.repo.LatestEvents(ctx, normalizeLimit(input.Limit), input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := EventsResponse{Items: []domain.Event{}}
		resp.Items = append(resp.Items, items...)
		return &struct {
			Body EventsResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func (h handlers) handleError(ctx context.Context, k domain.Kind, op string, err error) huma.StatusError {
	se := handleError(err)
	fields := []zap.Field{zap.String("kind", string(k)), zap.String("op", op), zap.Error(err)}
	if p, ok := principalFromContext(ctx); ok {
		fields = append(fields, zap.String("actor", p.ActorID), zap.String("auth", p.Source))
	}
	if se.GetStatus() >= http.StatusInternalServerError {
		h.logger.Error("store operation failed", fields...)
	} else {
		h.logger.Debug("store operation rejected", fields...)
	}
	return se
}

// validateInsert requires the identifying fields a new record needs.
func validateInsert(k domain.Kind, rec domain.Record) error {
	for _, col := range domain.RequiredOnInsert(k) {
		if _, ok := rec[col]; !ok {
			return domain.FieldError{Kind: k, Field: col, Msg: "is required"}
		}
	}
	return domain.ValidateFields(k, rec)
}

func bodyBytes(ctx context.Context) []byte {
	if v, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return v
	}
	return nil
}

func normalizeLimit(in int) int {
	switch {
	case in <= 0:
		return 50
	case in > 500:
		return 500
	default:
		return in
	}
}
