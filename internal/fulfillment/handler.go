// AngelaMos | 2026
// handler.go

package fulfillment

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/middleware"
)

type Handler struct {
	downloads *DownloadService
	roles     *RoleService
	sweeper   *TokenSweeper
}

func NewHandler(downloads *DownloadService, roles *RoleService, sweeper *TokenSweeper) *Handler {
	return &Handler{downloads: downloads, roles: roles, sweeper: sweeper}
}

// RegisterDownloadRoutes mounts the download endpoint. It lives outside
// the versioned API so links stay stable.
func (h *Handler) RegisterDownloadRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.With(authenticator).Get("/download/{token}", h.Download)
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/admin/role-assignments", h.ListAssignments)
		r.Post("/admin/role-assignments/{assignmentID}/requeue", h.Requeue)
		r.Post("/admin/download-tokens/cleanup", h.Cleanup)
		r.Post("/admin/download-tokens/backfill", h.Backfill)
	})
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	token := chi.URLParam(r, "token")

	t, path, err := h.downloads.Redeem(r.Context(), token, userID)
	if errors.Is(err, ErrFileMissing) || errors.Is(err, core.ErrForbidden) {
		slog.Error("download file unavailable",
			"purchase_id", t.PurchaseID,
			"file", t.FilePath,
			"error", err,
		)
		core.NotFound(w, "download")
		return
	}
	if err != nil {
		h.refuse(w, r, err)
		return
	}

	f, err := os.Open(path) //nolint:gosec // path is confined to the upload dir by Resolve
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only file

	info, err := f.Stat()
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	name := t.OriginalFilename
	if name == "" {
		name = info.Name()
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (h *Handler) refuse(w http.ResponseWriter, r *http.Request, err error) {
	reason := "error"
	switch {
	case errors.Is(err, ErrTokenUnknown):
		reason = "unknown"
	case errors.Is(err, ErrTokenExpired):
		reason = "expired"
	case errors.Is(err, ErrTokenConsumed):
		reason = "consumed"
	case errors.Is(err, ErrTokenForeign):
		reason = "foreign"
	default:
		core.InternalServerError(w, err)
		return
	}

	slog.Info("download refused",
		"reason", reason,
		"user_id", middleware.GetUserID(r.Context()),
		"request_id", middleware.GetRequestID(r.Context()),
	)

	if reason == "expired" || reason == "consumed" {
		core.Gone(w, "this download link is no longer valid")
		return
	}
	core.NotFound(w, "download")
}

func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	list, total, err := h.roles.List(r.Context(), RoleStatus(q.Get("status")), page, size)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToAssignmentResponseList(list), page, size, total)
}

func (h *Handler) Requeue(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "assignmentID"), 10, 64)
	if err != nil || id < 1 {
		core.BadRequest(w, "invalid assignment id")
		return
	}

	a, err := h.roles.Requeue(r.Context(), id)
	switch {
	case err == nil:
		core.Created(w, ToAssignmentResponse(*a))
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "role assignment")
	case errors.Is(err, ErrLiveAssignment):
		core.Conflict(w, "purchase already has a pending or completed role assignment")
	case errors.Is(err, core.ErrInvalidInput):
		core.Conflict(w, "only failed role assignments can be requeued")
	default:
		core.InternalServerError(w, err)
	}
}

func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	n, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	core.OK(w, map[string]int64{"deleted": n})
}

func (h *Handler) Backfill(w http.ResponseWriter, r *http.Request) {
	n, err := h.downloads.BackfillMissingTokens(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	core.OK(w, map[string]int{"created": n})
}

type AssignmentResponse struct {
	ID            int64      `json:"id"`
	UserID        string     `json:"user_id"`
	RoleID        string     `json:"role_id"`
	PurchaseID    int64      `json:"purchase_id"`
	Status        RoleStatus `json:"status"`
	Attempts      int        `json:"attempts"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func ToAssignmentResponse(a RoleAssignment) AssignmentResponse {
	return AssignmentResponse{
		ID:            a.ID,
		UserID:        a.UserID,
		RoleID:        a.RoleID,
		PurchaseID:    a.PurchaseID,
		Status:        a.Status,
		Attempts:      a.Attempts,
		NextAttemptAt: a.NextAttemptAt,
		Error:         a.Error,
		CreatedAt:     a.CreatedAt,
		CompletedAt:   a.CompletedAt,
	}
}

func ToAssignmentResponseList(list []RoleAssignment) []AssignmentResponse {
	out := make([]AssignmentResponse, len(list))
	for i, a := range list {
		out[i] = ToAssignmentResponse(a)
	}
	return out
}
