// Package handler exposes operator endpoints for the oauth_client table
// behind the admin token.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"passport-id/internal/client/store"
	"passport-id/internal/platform/middleware"
	dErrors "passport-id/pkg/domain-errors"
	"passport-id/pkg/platform/httputil"
)

// ClientStore is the persistent client registry.
type ClientStore interface {
	ClientIDs(ctx context.Context) ([]string, error)
	Register(ctx context.Context, r store.Registration) error
}

// CacheInvalidator drops a cached allowlist after a write.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Handler serves /admin/clients.
type Handler struct {
	store      ClientStore
	cache      CacheInvalidator
	adminToken string
	logger     *slog.Logger
}

// New creates the admin client handler. cache may be nil.
func New(clients ClientStore, cache CacheInvalidator, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{store: clients, cache: cache, adminToken: adminToken, logger: logger}
}

// Register mounts the admin routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin/clients", func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(h.adminToken, h.logger))
		r.Get("/", h.handleList)
		r.Post("/", h.handleRegister)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ids, err := h.store.ClientIDs(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list clients",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "client registry unavailable"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &clientListResponse{Clients: ids})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[registerClientRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.store.Register(ctx, req.toRegistration()); err != nil {
		h.logger.ErrorContext(ctx, "failed to register client",
			"request_id", requestID,
			"client_id", req.ClientID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register client"))
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx); err != nil {
			h.logger.WarnContext(ctx, "client allowlist cache not invalidated",
				"request_id", requestID,
				"error", err,
			)
		}
	}

	h.logger.InfoContext(ctx, "client registered",
		"request_id", requestID,
		"client_id", req.ClientID,
	)
	httputil.WriteJSON(w, http.StatusCreated, &registerClientResponse{ClientID: req.ClientID})
}
