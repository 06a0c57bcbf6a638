// AngelaMos | 2026
// handler.go

package ledger

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/middleware"
)

type Handler struct {
	service   *Service
	progress  AchievementProgress
	validator *validator.Validate
}

func NewHandler(service *Service, progress AchievementProgress) *Handler {
	return &Handler{
		service:   service,
		progress:  progress,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)

		r.Put("/users/me/birthday", h.SetBirthday)
		r.Get("/users/me/limits", h.Limits)
		r.Get("/users/me/ledger", h.History)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/admin/users/{userID}/give", h.Give)
		r.Get("/admin/users/{userID}/ledger", h.UserHistory)
		r.Post("/admin/give-all", h.GiveAll)
	})
}

func (h *Handler) SetBirthday(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req SetBirthdayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	res, err := h.service.SetBirthday(r.Context(), userID, req.Month, req.Day)
	if err != nil {
		core.EconomyErrorResponse(w, err)
		return
	}

	if res.Applied && h.progress != nil {
		if err := h.progress.AfterOneShot(r.Context(), userID); err != nil {
			slog.Error("evaluate after birthday failed", "user_id", userID, "error", err)
		}
	}

	core.OK(w, ToResultResponse(res))
}

func (h *Handler) Limits(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	limits, err := h.service.Limits(r.Context(), userID, h.progress)
	if err != nil {
		core.EconomyErrorResponse(w, err)
		return
	}

	core.OK(w, limits)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	h.writeHistory(w, r, middleware.GetUserID(r.Context()))
}

func (h *Handler) UserHistory(w http.ResponseWriter, r *http.Request) {
	h.writeHistory(w, r, chi.URLParam(r, "userID"))
}

func (h *Handler) writeHistory(w http.ResponseWriter, r *http.Request, userID string) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		limit = historyDefault
	}

	entries, err := h.service.History(r.Context(), userID, limit)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToEntryResponseList(entries))
}

func (h *Handler) Give(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req GiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	res, err := h.service.Give(r.Context(), userID, req.Amount)
	if err != nil {
		core.EconomyErrorResponse(w, err)
		return
	}

	core.OK(w, ToResultResponse(res))
}

func (h *Handler) GiveAll(w http.ResponseWriter, r *http.Request) {
	var req GiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	n, err := h.service.GiveAll(r.Context(), req.Amount)
	if err != nil {
		core.EconomyErrorResponse(w, err)
		return
	}

	core.OK(w, GiveAllResponse{Amount: req.Amount, Users: n})
}
