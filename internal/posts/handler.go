package posts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/inkwell-press/inkwell/internal/authz"
	"github.com/inkwell-press/inkwell/internal/platform/httpx"
	"github.com/inkwell-press/inkwell/internal/shared"
)

// Handler wires the post endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     authz.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountRoutes registers post routes on the provided router. Reads are
// public; writes go through the coarse permission gate first and the
// ownership policy second.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPublished)
	r.Get("/{postID}", h.getPost)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(authz.PermCreatePost))
		r.Post("/", h.createPost)
		r.Get("/mine", h.listMine)
	})
	// Edit and delete select between own-post and others-post
	// permissions per request, so authorization happens inside the
	// service policy rather than in a fixed route guard.
	r.Put("/{postID}", h.updatePost)
	r.Delete("/{postID}", h.deletePost)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireContextualPermission(authz.PermPublishPost, "postID:post_id"))
		r.Post("/{postID}/publish", h.publishPost)
	})
}

type postView struct {
	ID          int64  `json:"id"`
	AuthorID    int64  `json:"author_id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Body        string `json:"body,omitempty"`
	Status      string `json:"status"`
	PublishedAt string `json:"published_at,omitempty"`
}

func viewOf(post Post, includeBody bool) postView {
	v := postView{
		ID:       post.ID,
		AuthorID: post.AuthorID,
		Title:    post.Title,
		Slug:     post.Slug,
		Status:   post.Status,
	}
	if includeBody {
		v.Body = post.Body
	}
	if post.PublishedAt != nil {
		v.PublishedAt = post.PublishedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return v
}

func (h *Handler) listPublished(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	list, err := h.service.ListPublished(r.Context(), limit, offset)
	if err != nil {
		h.respondError(w, "list posts", err)
		return
	}
	views := make([]postView, 0, len(list))
	for _, post := range list {
		views = append(views, viewOf(post, false))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"posts": views})
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	list, err := h.service.ListByAuthor(r.Context(), shared.CurrentUserID(r.Context()), limit, offset)
	if err != nil {
		h.respondError(w, "list own posts", err)
		return
	}
	views := make([]postView, 0, len(list))
	for _, post := range list {
		views = append(views, viewOf(post, false))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"posts": views})
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request) {
	id, ok := postIDFromPath(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "post id must be numeric")
		return
	}
	post, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get post", err)
		return
	}
	// Drafts are only visible to users who could edit them.
	if !post.Published() {
		allowed, err := h.service.policy.CanEdit(r.Context(), shared.CurrentUserID(r.Context()), post)
		if err != nil {
			h.respondError(w, "get post", err)
			return
		}
		if !allowed {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, viewOf(post, true))
}

type postRequest struct {
	Title string `json:"title" validate:"required,min=3,max=200"`
	Body  string `json:"body" validate:"required"`
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	post, err := h.service.Create(r.Context(), shared.CurrentUserID(r.Context()), req.Title, req.Body)
	if err != nil {
		h.respondError(w, "create post", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, viewOf(post, true))
}

func (h *Handler) updatePost(w http.ResponseWriter, r *http.Request) {
	if shared.CurrentUserID(r.Context()) == 0 {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, ok := postIDFromPath(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "post id must be numeric")
		return
	}
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	post, err := h.service.Update(r.Context(), shared.CurrentUserID(r.Context()), id, req.Title, req.Body)
	if err != nil {
		h.respondError(w, "update post", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(post, true))
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	if shared.CurrentUserID(r.Context()) == 0 {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, ok := postIDFromPath(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "post id must be numeric")
		return
	}
	if err := h.service.Delete(r.Context(), shared.CurrentUserID(r.Context()), id); err != nil {
		h.respondError(w, "delete post", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) publishPost(w http.ResponseWriter, r *http.Request) {
	id, ok := postIDFromPath(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "post id must be numeric")
		return
	}
	post, err := h.service.Publish(r.Context(), shared.CurrentUserID(r.Context()), id)
	if err != nil {
		h.respondError(w, "publish post", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(post, true))
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrDenied):
		httpx.RespondError(w, httpx.ErrForbidden)
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func postIDFromPath(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "postID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
