package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"passport-id/internal/authflow"
	"passport-id/internal/platform/device"
	"passport-id/internal/platform/middleware"
	"passport-id/internal/platform/privacy"
	dErrors "passport-id/pkg/domain-errors"
	"passport-id/pkg/platform/httputil"
)

// Service is the session manager as seen by the HTTP layer.
type Service interface {
	Start(ctx context.Context, query url.Values) *authflow.Session
	Get(id string) (*authflow.Session, error)
	Remove(id string)
	Decide(ctx context.Context, id string, allow bool) (string, error)
	Clients(ctx context.Context) ([]string, error)
}

// Handler exposes authorization sessions as a JSON API.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a new authorization flow Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the authorization routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/authorize", func(r chi.Router) {
		r.Get("/clients", h.handleListClients)
		r.Post("/sessions", h.handleStart)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Delete("/", h.handleClose)
			r.Put("/identity", h.handleSetIdentity)
			r.Post("/scan", h.handleSubmit)
			r.Delete("/scan", h.handleCancelScan)
			r.Put("/totp", h.handleSetTOTP)
			r.Post("/decision", h.handleDecide)
		})
	})
}

// handleStart opens a session for the authorize query string the user
// arrived with (client_id, scope, and anything else to pass through).
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	query := r.URL.Query()
	if err := validateStartQuery(query); err != nil {
		h.fail(ctx, w, "invalid authorize query", "", err)
		return
	}
	sess := h.service.Start(ctx, query)
	st := sess.Snapshot()
	h.logger.InfoContext(ctx, "authorization session started",
		"request_id", requestID,
		"session_id", st.SessionID,
		"client_id", st.ClientID,
		"phase", st.Phase,
		"device", device.DisplayName(r.UserAgent()),
		"client_ip", privacy.AnonymizeRemoteAddr(r.RemoteAddr),
	)
	httputil.WriteJSON(w, http.StatusCreated, st)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess.Snapshot())
}

// handleClose is the navigation-away path: the session and its poller go.
func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.service.Remove(sess.ID())
	h.logger.InfoContext(r.Context(), "authorization session closed",
		"request_id", middleware.GetRequestID(r.Context()),
		"session_id", sess.ID(),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[identityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := sess.SetIdentityInput(req.Input); err != nil {
		h.fail(ctx, w, "failed to set identity input", sess.ID(), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Submit(ctx); err != nil {
		h.fail(ctx, w, "failed to submit passport number", sess.ID(), err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, sess.Snapshot())
}

func (h *Handler) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.CancelScan(ctx); err != nil {
		h.fail(ctx, w, "failed to cancel scan", sess.ID(), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *Handler) handleSetTOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[totpRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := sess.SetTOTPCode(req.Code); err != nil {
		h.fail(ctx, w, "failed to set totp code", sess.ID(), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	sessionID := chi.URLParam(r, middleware.SessionIDParam)

	req, ok := httputil.DecodeAndPrepare[decisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	target, err := h.service.Decide(ctx, sessionID, *req.Allow)
	if err != nil {
		h.fail(ctx, w, "failed to record decision", sessionID, err)
		return
	}
	h.logger.InfoContext(ctx, "authorization decided",
		"request_id", requestID,
		"session_id", sessionID,
		"allow", *req.Allow,
	)
	httputil.WriteJSON(w, http.StatusOK, &decisionResponse{RedirectTo: target})
}

func (h *Handler) handleListClients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ids, err := h.service.Clients(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to list clients", "", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &clientsResponse{ValidClients: ids})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*authflow.Session, bool) {
	sessionID := chi.URLParam(r, middleware.SessionIDParam)
	sess, err := h.service.Get(sessionID)
	if err != nil {
		h.fail(r.Context(), w, "session lookup failed", sessionID, err)
		return nil, false
	}
	return sess, true
}

// fail logs at a level matching the error and writes the error envelope.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg, sessionID string, err error) {
	attrs := []any{
		"request_id", middleware.GetRequestID(ctx),
		"session_id", sessionID,
		"error", err,
	}
	if dErrors.HasCode(err, dErrors.CodeInternal) || dErrors.HasCode(err, dErrors.CodeUnavailable) {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
