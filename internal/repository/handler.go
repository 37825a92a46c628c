package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/sundayezeilo/repocatalog/internal/errx"
	"github.com/sundayezeilo/repocatalog/internal/httpx"
	"github.com/sundayezeilo/repocatalog/internal/idgen"
)

const (
	// IDPathParam is the path wildcard carrying a record identifier.
	IDPathParam = "id"

	InvalidIDMessage = "Invalid repository ID."
	NotFoundMessage  = "Repository not found!"
)

// HTTPRepositoryRequest is the JSON body accepted by create and update.
// Field values of any JSON type are kept as sent.
type HTTPRepositoryRequest struct {
	Title json.RawMessage `json:"title"`
	URL   json.RawMessage `json:"url"`
	Techs json.RawMessage `json:"techs"`
}

// RepositoryResponse is the JSON representation of a record.
type RepositoryResponse struct {
	ID    string          `json:"id"`
	Title json.RawMessage `json:"title"`
	URL   json.RawMessage `json:"url"`
	Techs json.RawMessage `json:"techs"`
	Likes int64           `json:"likes"`
}

func toResponse(r Repository) RepositoryResponse {
	r = r.withDefaults()
	return RepositoryResponse{
		ID:    r.ID.String(),
		Title: r.Title,
		URL:   r.URL,
		Techs: r.Techs,
		Likes: r.Likes,
	}
}

// Handler provides HTTP handlers for the repository catalog.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
	}
}

// ListRepositories handles GET /repositories with an optional title filter.
func (h *Handler) ListRepositories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	title := r.URL.Query().Get("title")

	repos, err := h.service.List(ctx, ListFilter{TitleContains: title})
	if err != nil {
		h.handleError(ctx, w, err, h.requestLogger(r))
		return
	}

	resp := make([]RepositoryResponse, 0, len(repos))
	for _, repo := range repos {
		resp = append(resp, toResponse(repo))
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// CreateRepository handles POST /repositories.
func (h *Handler) CreateRepository(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, ok := h.decodeRequest(w, r, logger)
	if !ok {
		return
	}

	repo, err := h.service.Create(ctx, CreateRequest{
		Title: req.Title,
		URL:   req.URL,
		Techs: req.Techs,
	})
	if err != nil {
		h.handleError(ctx, w, err, logger)
		return
	}

	logger.InfoContext(ctx, "repository created",
		"repository_id", repo.ID.String(),
		"title", string(repo.Title),
	)

	httpx.WriteJSON(w, http.StatusOK, toResponse(repo))
}

// UpdateRepository handles PUT /repositories/{id}. Likes are preserved.
func (h *Handler) UpdateRepository(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	id, ok := h.pathID(w, r, logger)
	if !ok {
		return
	}

	req, ok := h.decodeRequest(w, r, logger)
	if !ok {
		return
	}

	repo, err := h.service.Update(ctx, id, UpdateRequest{
		Title: req.Title,
		URL:   req.URL,
		Techs: req.Techs,
	})
	if err != nil {
		h.handleError(ctx, w, err, logger.With("repository_id", id.String()))
		return
	}

	logger.InfoContext(ctx, "repository updated", "repository_id", id.String())

	httpx.WriteJSON(w, http.StatusOK, toResponse(repo))
}

// DeleteRepository handles DELETE /repositories/{id}.
func (h *Handler) DeleteRepository(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	id, ok := h.pathID(w, r, logger)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, id); err != nil {
		h.handleError(ctx, w, err, logger.With("repository_id", id.String()))
		return
	}

	logger.InfoContext(ctx, "repository deleted", "repository_id", id.String())

	httpx.WriteNoContent(w)
}

// LikeRepository handles POST /repositories/{id}/like.
func (h *Handler) LikeRepository(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	id, ok := h.pathID(w, r, logger)
	if !ok {
		return
	}

	repo, err := h.service.Like(ctx, id)
	if err != nil {
		h.handleError(ctx, w, err, logger.With("repository_id", id.String()))
		return
	}

	logger.DebugContext(ctx, "repository liked",
		"repository_id", id.String(),
		"likes", repo.Likes,
	)

	httpx.WriteJSON(w, http.StatusOK, toResponse(repo))
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// decodeRequest reads a create/update body. Missing bodies, unknown fields
// and fields of any JSON type are tolerated; only a body that is not a JSON
// object is rejected.
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (HTTPRepositoryRequest, bool) {
	const op = "repository.handler.decodeRequest"

	req, err := httpx.DecodeJSON[HTTPRepositoryRequest](r,
		httpx.AllowEmptyBody(),
		httpx.AllowUnknownFields(),
	)
	if err != nil {
		h.handleError(r.Context(), w, errx.E(op, errx.Invalid, err), logger)
		return HTTPRepositoryRequest{}, false
	}
	return req, true
}

// pathID parses the {id} wildcard. Routes are wrapped in httpx.ValidateUUID,
// so a failure here means the route was registered without it.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (uuid.UUID, bool) {
	raw := r.PathValue(IDPathParam)
	id, err := idgen.Parse(raw)
	if err != nil {
		logger.WarnContext(r.Context(), "invalid repository id", "id", raw)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_id", InvalidIDMessage, nil)
		return uuid.Nil, false
	}
	return id, true
}

// handleError maps service errors to responses. Unknown identifiers answer
// 400 rather than 404; existing clients depend on that.
func (h *Handler) handleError(ctx context.Context, w http.ResponseWriter, err error, logger *slog.Logger) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.NotFound:
		logger.WarnContext(ctx, "repository not found", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "not_found", NotFoundMessage, nil)

	case errx.Invalid:
		logger.WarnContext(ctx, "invalid repository request", logAttrs...)
		httpx.WriteError(w, httpx.ErrorKindToStatus(kind), httpx.ErrorKindToCode(kind), causeOf(err).Error(), nil)

	default:
		logger.ErrorContext(ctx, "unexpected repository error", logAttrs...)
		httpx.WriteError(w, httpx.ErrorKindToStatus(kind), httpx.ErrorKindToCode(kind),
			"Unable to process the request at this time. Please try again.", nil)
	}
}

// causeOf strips every errx layer from err, leaving the message a client can act on.
func causeOf(err error) error {
	var e *errx.Error
	for errors.As(err, &e) && e.Err != nil {
		err = e.Err
	}
	return err
}
