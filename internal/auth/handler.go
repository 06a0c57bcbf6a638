// AngelaMos | 2026
// handler.go

package auth

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

// RegisterRoutes mounts the Discord login flow. Login and refresh are
// public; everything touching a member's sessions needs a bearer token.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.Get("/discord/login", h.LoginURL)
		r.Post("/discord/callback", h.Callback)
		r.Post("/refresh", h.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/me", h.member(h.me))
			r.Post("/logout", h.member(h.logout))
			r.Post("/logout-all", h.member(h.logoutAll))
			r.Get("/sessions", h.member(h.sessions))
			r.Delete("/sessions/{sessionID}", h.member(h.revokeSession))
		})
	})
}

type memberHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (h *Handler) member(next memberHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())
		if userID == "" {
			core.Unauthorized(w, "")
			return
		}
		next(w, r, userID)
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}
	return true
}

// writeError maps login and session failures. Token problems keep their
// distinct codes so the web client knows whether to refresh or re-login.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidState):
		core.BadRequest(w, "login expired, start again")
	case errors.Is(err, ErrTokenReuse):
		core.JSONError(w, core.NewAppError(
			"TOKEN_REUSE_DETECTED",
			"refresh token was already used, all sessions in this login were revoked",
			http.StatusUnauthorized,
			core.ErrTokenRevoked,
		))
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenRevoked):
		core.JSONError(w, core.TokenRevokedError())
	case errors.Is(err, core.ErrTokenInvalid):
		core.JSONError(w, core.TokenInvalidError())
	case errors.Is(err, core.ErrUnauthorized):
		core.JSONError(w, core.UnauthorizedError("discord rejected the login"))
	case errors.Is(err, core.ErrForbidden):
		core.Forbidden(w, "that session belongs to another member")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "session")
	default:
		core.InternalServerError(w, err)
	}
}

func (h *Handler) LoginURL(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.LoginURL(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	core.OK(w, resp)
}

func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	var req CallbackRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Callback(r.Context(), req, r.UserAgent(), middleware.ClientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	core.OK(w, resp)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Refresh(r.Context(), req.RefreshToken, r.UserAgent(), middleware.ClientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	core.OK(w, resp)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request, userID string) {
	u, err := h.service.GetCurrentUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}
	core.OK(w, u)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request, userID string) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken, userID); err != nil {
		writeError(w, err)
		return
	}
	core.NoContent(w)
}

func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.service.LogoutAll(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	core.NoContent(w)
}

func (h *Handler) sessions(w http.ResponseWriter, r *http.Request, userID string) {
	list, err := h.service.GetActiveSessions(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	core.OK(w, SessionsResponse{Sessions: list})
}

func (h *Handler) revokeSession(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.service.RevokeSession(r.Context(), userID, chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, err)
		return
	}
	core.NoContent(w)
}
