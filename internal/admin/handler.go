// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/pitchfork-economy/internal/achievement"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/ledger"
	"github.com/carterperez-dev/pitchfork-economy/internal/purchase"
	"github.com/carterperez-dev/pitchfork-economy/internal/user"
)

const drillDownEntries = 25

type LedgerSource interface {
	Totals(ctx context.Context) (*ledger.Totals, error)
	History(ctx context.Context, userID string, limit int) ([]ledger.Entry, error)
}

type UserSource interface {
	GetUser(ctx context.Context, id string) (*user.User, error)
}

type AchievementSource interface {
	ListForUser(ctx context.Context, userID string) ([]achievement.Held, error)
}

type PurchaseSource interface {
	AdminList(ctx context.Context, params purchase.ListParams) ([]purchase.Detail, int, error)
}

type Handler struct {
	dbStats      func() sql.DBStats
	redisStats   func() *redis.PoolStats
	redisPing    func(ctx context.Context) error
	dbPing       func(ctx context.Context) error
	ledger       LedgerSource
	users        UserSource
	achievements AchievementSource
	purchases    PurchaseSource
}

type HandlerConfig struct {
	DBStats      func() sql.DBStats
	RedisStats   func() *redis.PoolStats
	RedisPing    func(ctx context.Context) error
	DBPing       func(ctx context.Context) error
	Ledger       LedgerSource
	Users        UserSource
	Achievements AchievementSource
	Purchases    PurchaseSource
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		dbStats:      cfg.DBStats,
		redisStats:   cfg.RedisStats,
		redisPing:    cfg.RedisPing,
		dbPing:       cfg.DBPing,
		ledger:       cfg.Ledger,
		users:        cfg.Users,
		achievements: cfg.Achievements,
		purchases:    cfg.Purchases,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/admin/stats", h.GetSystemStats)
		r.Get("/admin/stats/db", h.GetDatabaseStats)
		r.Get("/admin/stats/redis", h.GetRedisStats)
		r.Get("/admin/stats/runtime", h.GetRuntimeStats)
		r.Get("/admin/users/{userID}", h.GetUserDetail)
	})
}

// GetSystemStats reports infrastructure health next to the economy totals
// the console dashboard shows.
func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbHealthy := true
	if h.dbPing != nil {
		if err := h.dbPing(ctx); err != nil {
			dbHealthy = false
		}
	}

	redisHealthy := h.redisPing != nil
	if h.redisPing != nil {
		if err := h.redisPing(ctx); err != nil {
			redisHealthy = false
		}
	}

	response := SystemStatsResponse{
		Database: DatabaseStatus{
			Healthy: dbHealthy,
			Stats:   h.getDBStats(),
		},
		Redis: RedisStatus{
			Healthy: redisHealthy,
			Stats:   h.getRedisStats(),
		},
		Runtime: readRuntime(),
	}

	if h.ledger != nil {
		totals, err := h.ledger.Totals(ctx)
		if err != nil {
			core.InternalServerError(w, err)
			return
		}
		response.Economy = toEconomyTotals(totals)
	}

	core.OK(w, response)
}

// GetUserDetail is the console drill-down: profile, recent ledger entries,
// held achievements and the first page of purchases.
func (h *Handler) GetUserDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	u, err := h.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	entries, err := h.ledger.History(ctx, userID, drillDownEntries)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	held, err := h.achievements.ListForUser(ctx, userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	params := purchase.ListParams{UserID: userID}
	params.Normalize()
	purchases, total, err := h.purchases.AdminList(ctx, params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, UserDetailResponse{
		User:           user.ToUserResponse(u),
		Ledger:         ledger.ToEntryResponseList(entries),
		Achievements:   achievement.ToHeldResponseList(held),
		Purchases:      purchase.ToAdminPurchaseResponseList(purchases),
		PurchasesTotal: total,
	})
}

func (h *Handler) GetDatabaseStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getDBStats())
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getRedisStats())
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, readRuntime())
}

func readRuntime() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		StaleConns: stats.StaleConns,
	}
}

type SystemStatsResponse struct {
	Database DatabaseStatus `json:"database"`
	Redis    RedisStatus    `json:"redis"`
	Runtime  RuntimeStats   `json:"runtime"`
	Economy  *EconomyTotals `json:"economy,omitempty"`
}

type EconomyTotals struct {
	Users           int   `json:"users"`
	Circulating     int64 `json:"circulating"`
	EverEarned      int64 `json:"ever_earned"`
	Spent           int64 `json:"spent"`
	LedgerEntries   int64 `json:"ledger_entries"`
	ActiveEarners7d int   `json:"active_earners_7d"`
}

func toEconomyTotals(t *ledger.Totals) *EconomyTotals {
	return &EconomyTotals{
		Users:           t.Users,
		Circulating:     t.Circulating,
		EverEarned:      t.EverEarned,
		Spent:           t.EverEarned - t.Circulating,
		LedgerEntries:   t.Entries,
		ActiveEarners7d: t.ActiveEarners7d,
	}
}

type UserDetailResponse struct {
	User           user.UserResponse                 `json:"user"`
	Ledger         []ledger.EntryResponse            `json:"ledger"`
	Achievements   []achievement.AchievementResponse `json:"achievements"`
	Purchases      []purchase.AdminPurchaseResponse  `json:"purchases"`
	PurchasesTotal int                               `json:"purchases_total"`
}

type DatabaseStatus struct {
	Healthy bool         `json:"healthy"`
	Stats   *DBPoolStats `json:"stats,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
	MaxIdleClosed      int64  `json:"max_idle_closed"`
	MaxIdleTimeClosed  int64  `json:"max_idle_time_closed"`
	MaxLifetimeClosed  int64  `json:"max_lifetime_closed"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
	StaleConns uint32 `json:"stale_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}
