// AngelaMos | 2026
// handler.go

package achievement

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Get("/achievements", h.List)

	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Get("/users/me/achievements", h.Mine)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/admin/achievements", h.Create)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToAchievementResponseList(list))
}

func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	held, err := h.service.ListForUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToHeldResponseList(held))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	a := &Achievement{
		Name:        req.Name,
		Description: req.Description,
		Points:      req.Points,
		Type:        req.Type,
		Requirement: req.Requirement,
	}

	if err := h.service.Create(r.Context(), a); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			core.JSONError(w, core.DuplicateError("achievement"))
			return
		}
		core.EconomyErrorResponse(w, err)
		return
	}

	core.Created(w, ToAchievementResponse(*a))
}
