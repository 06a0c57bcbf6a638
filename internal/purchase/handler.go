// AngelaMos | 2026
// handler.go

package purchase

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/middleware"
)

type Handler struct {
	coordinator *Coordinator
	validator   *validator.Validate
}

func NewHandler(coordinator *Coordinator) *Handler {
	return &Handler{
		coordinator: coordinator,
		validator:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts the member routes. limit guards the purchase
// endpoint per user and may be nil.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	limit func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)

		buy := r
		if limit != nil {
			buy = r.With(limit)
		}
		buy.Post("/products/{productID}/purchase", h.Purchase)
		r.Get("/users/me/purchases", h.History)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/admin/purchases", h.AdminList)
		r.Put("/admin/purchases/{purchaseID}/resolve", h.Resolve)
	})
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID < 1 {
		core.BadRequest(w, "invalid product id")
		return
	}

	receipt, err := h.coordinator.Purchase(r.Context(), middleware.GetUserID(r.Context()), productID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "product")
			return
		}
		core.EconomyErrorResponse(w, err)
		return
	}

	core.Created(w, ToReceiptResponse(receipt))
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	params := listParams(r)

	items, total, err := h.coordinator.History(r.Context(), middleware.GetUserID(r.Context()), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToHistoryResponseList(items), params.Page, params.PageSize, total)
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	params := listParams(r)
	params.Status = Status(r.URL.Query().Get("status"))
	params.UserID = r.URL.Query().Get("user_id")

	list, total, err := h.coordinator.AdminList(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToAdminPurchaseResponseList(list), params.Page, params.PageSize, total)
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "purchaseID"), 10, 64)
	if err != nil || id < 1 {
		core.BadRequest(w, "invalid purchase id")
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	p, err := h.coordinator.Resolve(r.Context(), id, req)
	switch {
	case err == nil:
		core.OK(w, ToPurchaseResponse(p))
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "purchase")
	case errors.Is(err, ErrAlreadyResolved):
		core.Conflict(w, "purchase is already completed or failed")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, err.Error())
	default:
		core.InternalServerError(w, err)
	}
}

func listParams(r *http.Request) ListParams {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	params := ListParams{Page: page, PageSize: size}
	params.Normalize()
	return params
}
