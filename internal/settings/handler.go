// AngelaMos | 2026
// handler.go

package settings

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
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

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/economy", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.Get)
		r.Put("/config", h.UpdateConfig)
		r.Post("/enable", h.Enable)
		r.Post("/disable", h.Disable)
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Get(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToSettingsResponse(s))
}

func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	s, err := h.service.UpdateConfig(r.Context(), req)
	if err != nil {
		core.EconomyErrorResponse(w, err)
		return
	}

	core.OK(w, ToSettingsResponse(s))
}

func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Enable(r.Context())
	if err != nil {
		core.EconomyErrorResponse(w, err)
		return
	}

	core.OK(w, toToggleResponse(res))
}

func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Disable(r.Context())
	if err != nil {
		core.EconomyErrorResponse(w, err)
		return
	}

	core.OK(w, toToggleResponse(res))
}

func toToggleResponse(res *ToggleResult) ToggleResponse {
	return ToggleResponse{
		Settings:         ToSettingsResponse(res.Settings),
		Changed:          res.Changed,
		FirstTime:        res.FirstTime,
		BootstrapStarted: res.BootstrapStarted,
	}
}
