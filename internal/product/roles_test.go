// AngelaMos | 2026
// roles_test.go

package product_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pitchfork-economy/internal/chat/chattest"
	"github.com/carterperez-dev/pitchfork-economy/internal/product"
)

func passThrough(next http.Handler) http.Handler { return next }

func adminRouter(svc *product.Service, roles product.RoleLister) http.Handler {
	r := chi.NewRouter()
	product.NewHandler(svc, roles).RegisterAdminRoutes(r, passThrough, passThrough)
	return r
}

func getJSON(t *testing.T, h http.Handler, path string, dst any) int {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	if dst != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, dst))
	}
	return rec.Code
}

func TestGuildRolesForPicker(t *testing.T) {
	svc, _ := newService(t)

	guild := chattest.New()
	guild.AddGuildRole("r-member", "Member")
	guild.AddGuildRole("r-vip", "VIP")

	var out product.GuildRolesResponse
	code := getJSON(t, adminRouter(svc, guild), "/admin/discord-roles", &out)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, out.Roles, 2)
	require.Equal(t, "r-vip", out.Roles[0].ID)
	require.Equal(t, "#000000", out.Roles[0].Color)
	require.Equal(t, "r-member", out.Roles[1].ID)

	code = getJSON(t, adminRouter(svc, nil), "/admin/discord-roles", nil)
	require.Equal(t, http.StatusServiceUnavailable, code)
}

func TestRoleProductsListsOnlyAutoRole(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	vip, err := svc.Create(ctx, product.CreateRequest{
		Name:           "VIP",
		Price:          500,
		Type:           product.TypeRole,
		DeliveryMethod: product.DeliveryAutoRole,
		DeliveryConfig: product.DeliveryConfig{product.ConfigRoleID: "r-vip"},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Archive(ctx, vip.ID))

	_, err = svc.Create(ctx, product.CreateRequest{
		Name:           "Sticker",
		Price:          40,
		Type:           product.TypePhysical,
		DeliveryMethod: product.DeliveryNone,
	})
	require.NoError(t, err)

	var out product.RoleProductsResponse
	code := getJSON(t, adminRouter(svc, nil), "/admin/role-products", &out)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, out.Products, 1)
	require.Equal(t, vip.ID, out.Products[0].ID)
	require.Equal(t, "r-vip", out.Products[0].DeliveryConfig.String(product.ConfigRoleID))
}
