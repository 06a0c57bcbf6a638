// AngelaMos | 2026
// handler.go

package product

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
)

type Handler struct {
	service   *Service
	roles     RoleLister
	validator *validator.Validate
}

// NewHandler builds the catalogue routes. roles may be nil when the api
// runs without a chat token; the role picker then answers 503.
func NewHandler(service *Service, roles RoleLister) *Handler {
	return &Handler{
		service:   service,
		roles:     roles,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/products", h.Browse)
	r.Get("/products/categories", h.Categories)
	r.Get("/products/{productID}", h.Get)
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/admin/products", h.AdminList)
		r.Post("/admin/products", h.Create)
		r.Get("/admin/products/{productID}", h.AdminGet)
		r.Put("/admin/products/{productID}", h.Update)
		r.Delete("/admin/products/{productID}", h.Delete)
		r.Post("/admin/products/{productID}/archive", h.Archive)
		r.Post("/admin/products/{productID}/restore", h.Restore)

		r.Get("/admin/discord-roles", h.GuildRoles)
		r.Get("/admin/role-products", h.RoleProducts)
	})
}

func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	params := listParams(r)

	products, total, err := h.service.Browse(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToProductResponseList(products), params.Page, params.PageSize, total)
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.Categories(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	core.OK(w, cats)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToProductResponse(p))
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	params := listParams(r)
	params.IncludeInactive = true
	params.IncludeArchived = r.URL.Query().Get("archived") == "true"

	products, total, err := h.service.AdminList(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToAdminProductResponseList(products), params.Page, params.PageSize, total)
}

func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	p, err := h.service.AdminGet(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToAdminProductResponse(p))
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

	p, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToAdminProductResponse(p))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	p, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToAdminProductResponse(p))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	res, err := h.service.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, res)
}

func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	if err := h.service.Archive(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	if err := h.service.Restore(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "product")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, err.Error())
	default:
		core.InternalServerError(w, err)
	}
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || id < 1 {
		core.BadRequest(w, "invalid product id")
		return 0, false
	}
	return id, true
}

func listParams(r *http.Request) ListParams {
	q := r.URL.Query()
	params := ListParams{
		Page:     parseIntQuery(q.Get("page"), 1),
		PageSize: parseIntQuery(q.Get("page_size"), 24),
		Category:       q.Get("category"),
		Search:         q.Get("search"),
		DeliveryMethod: DeliveryMethod(q.Get("delivery_method")),
	}
	params.Normalize()
	return params
}

func parseIntQuery(val string, defaultVal int) int {
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
