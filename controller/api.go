package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/imagerelay/imagerelay/internal/domain"
	"github.com/imagerelay/imagerelay/internal/pipeline"
	"github.com/imagerelay/imagerelay/internal/repo"
	"github.com/imagerelay/imagerelay/internal/varstore"
)

type eventHandler interface {
	HandleEvent(ctx context.Context, event domain.ImagePushEvent) domain.Invocation
}

type bindingWriter interface {
	Upsert(ctx context.Context, binding domain.Binding) error
	TargetsForBucket(ctx context.Context, bucketKey string) ([]domain.Binding, error)
	Get(ctx context.Context, bucketKey, targetKey string) (domain.Binding, error)
}

type relayAPI struct {
	logger   *slog.Logger
	orch     eventHandler
	bindings bindingWriter
	vars     varstore.Store
}

func newRelayAPI(logger *slog.Logger, orch eventHandler, bindings bindingWriter, vars varstore.Store) *relayAPI {
	return &relayAPI{
		logger:   logger,
		orch:     orch,
		bindings: bindings,
		vars:     vars,
	}
}

func (api *relayAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/events/image-push", api.handleImagePush)
	mux.HandleFunc("PUT /v1/subscriptions", api.handleUpsertSubscription)
	mux.HandleFunc("GET /v1/subscriptions", api.handleListSubscriptions)
	mux.HandleFunc("GET /v1/pipelines/{pipeline}/executions/{execution_id}/variables", api.handleExecutionVariables)
}

// handleImagePush ingests one registry push notification and runs the
// fan-out synchronously. The invocation outcome is always reported in
// the body; only an unreadable request is an HTTP error.
func (api *relayAPI) handleImagePush(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_body")
		return
	}

	event, err := domain.ParseImagePushEvent(body)
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	invocation := api.orch.HandleEvent(r.Context(), event)
	api.writeJSON(w, http.StatusOK, invocation)
}

func (api *relayAPI) handleUpsertSubscription(w http.ResponseWriter, r *http.Request) {
	var binding domain.Binding
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&binding); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	binding.Normalize()
	if err := binding.Validate(); err != nil {
		api.logger.Warn("invalid subscription", "error", err)
		api.writeError(w, r, http.StatusBadRequest, "invalid_subscription")
		return
	}

	if err := api.bindings.Upsert(r.Context(), binding); err != nil {
		api.logger.Error("upsert subscription failed", "bucket_key", binding.BucketKey, "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusOK, binding)
}

// handleListSubscriptions lists every binding on a bucket key; with
// target_key it returns that single binding or 404.
func (api *relayAPI) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	bucketKey := strings.TrimSpace(r.URL.Query().Get("bucket_key"))
	if bucketKey == "" {
		api.writeError(w, r, http.StatusBadRequest, "bucket_key_required")
		return
	}

	if targetKey := strings.TrimSpace(r.URL.Query().Get("target_key")); targetKey != "" {
		binding, err := api.bindings.Get(r.Context(), bucketKey, targetKey)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				api.writeError(w, r, http.StatusNotFound, "not_found")
				return
			}
			api.logger.Error("get subscription failed", "bucket_key", bucketKey, "target_key", targetKey, "error", err)
			api.writeError(w, r, http.StatusInternalServerError, "internal_error")
			return
		}
		api.writeJSON(w, http.StatusOK, binding)
		return
	}

	items, err := api.bindings.TargetsForBucket(r.Context(), bucketKey)
	if err != nil {
		api.logger.Error("list subscriptions failed", "bucket_key", bucketKey, "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	if items == nil {
		items = []domain.Binding{}
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleExecutionVariables lets pipeline stages fetch the variable set
// stored for their execution.
func (api *relayAPI) handleExecutionVariables(w http.ResponseWriter, r *http.Request) {
	if api.vars == nil {
		api.writeError(w, r, http.StatusNotFound, "variable_store_disabled")
		return
	}
	name := strings.TrimSpace(r.PathValue("pipeline"))
	executionID := strings.TrimSpace(r.PathValue("execution_id"))
	if name == "" || executionID == "" {
		api.writeError(w, r, http.StatusBadRequest, "pipeline_and_execution_required")
		return
	}

	vars, err := pipeline.ReadVariables(r.Context(), api.vars, name, executionID)
	if err != nil {
		if errors.Is(err, varstore.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.logger.Error("read execution variables failed", "pipeline", name, "execution_id", executionID, "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"variables": vars})
}

func (api *relayAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *relayAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}
