// AngelaMos | 2026
// roles.go

package product

import (
	"context"
	"fmt"
	"net/http"

	"github.com/carterperez-dev/pitchfork-economy/internal/chat"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
)

const roleProductsLimit = 100

// RoleLister is the slice of the chat adapter the role picker needs.
type RoleLister interface {
	AssignableRoles(ctx context.Context) ([]chat.Role, error)
}

type GuildRoleResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Position int    `json:"position"`
}

type GuildRolesResponse struct {
	Roles []GuildRoleResponse `json:"roles"`
}

type RoleProductsResponse struct {
	Products []AdminProductResponse `json:"products"`
}

// GuildRoles lists the roles an auto_role product may grant.
func (h *Handler) GuildRoles(w http.ResponseWriter, r *http.Request) {
	if h.roles == nil {
		core.EconomyErrorResponse(w, core.ErrChatUnavailable)
		return
	}

	roles, err := h.roles.AssignableRoles(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	out := GuildRolesResponse{Roles: make([]GuildRoleResponse, 0, len(roles))}
	for _, role := range roles {
		out.Roles = append(out.Roles, GuildRoleResponse{
			ID:       role.ID,
			Name:     role.Name,
			Color:    fmt.Sprintf("#%06x", role.Color),
			Position: role.Position,
		})
	}
	core.OK(w, out)
}

// RoleProducts lists every auto_role product, archived ones included, so
// the picker can show which roles are already on sale.
func (h *Handler) RoleProducts(w http.ResponseWriter, r *http.Request) {
	products, _, err := h.service.AdminList(r.Context(), ListParams{
		Page:            1,
		PageSize:        roleProductsLimit,
		DeliveryMethod:  DeliveryAutoRole,
		IncludeInactive: true,
		IncludeArchived: true,
	})
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, RoleProductsResponse{Products: ToAdminProductResponseList(products)})
}
