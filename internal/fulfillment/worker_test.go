// AngelaMos | 2026
// worker_test.go

package fulfillment_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pitchfork-economy/internal/chat"
	"github.com/carterperez-dev/pitchfork-economy/internal/chat/chattest"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/fulfillment"
	"github.com/carterperez-dev/pitchfork-economy/internal/memstore"
	"github.com/carterperez-dev/pitchfork-economy/internal/notify"
	"github.com/carterperez-dev/pitchfork-economy/internal/purchase"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type roleFixture struct {
	store    *memstore.Store
	clock    *core.ManualClock
	adapter  *chattest.Adapter
	roles    *fulfillment.RoleService
	worker   *fulfillment.RoleWorker
	recorder *notify.Recorder
}

func newRoleFixture(t *testing.T, maxAttempts int) *roleFixture {
	t.Helper()

	clock := core.NewManualClock(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC))
	store := memstore.New(clock)
	adapter := chattest.New()
	adapter.AddGuildRole("vip", "VIP")
	rec := &notify.Recorder{}

	worker := fulfillment.NewRoleWorker(
		store,
		store.Fulfillment,
		adapter,
		rec,
		clock,
		fulfillment.RoleWorkerConfig{
			Interval:    time.Second,
			MaxAttempts: maxAttempts,
			BackoffBase: time.Minute,
			BackoffMax:  10 * time.Minute,
		},
		quiet,
	)

	return &roleFixture{
		store:    store,
		clock:    clock,
		adapter:  adapter,
		roles:    fulfillment.NewRoleService(store.DB(), store.Fulfillment),
		worker:   worker,
		recorder: rec,
	}
}

// enqueue records a pending purchase for userID and queues its grant.
func (f *roleFixture) enqueue(t *testing.T, userID string) *fulfillment.RoleAssignment {
	t.Helper()
	ctx := context.Background()

	p := &purchase.Purchase{UserID: userID, ProductID: 1, PointsSpent: 10, Status: purchase.StatusPendingDelivery}
	require.NoError(t, f.store.Purchases(nil).Create(ctx, p))

	a, err := f.roles.Enqueue(ctx, f.store.DB(), userID, "vip", p.ID)
	require.NoError(t, err)
	return a
}

func (f *roleFixture) purchase(t *testing.T, userID string) purchase.Purchase {
	t.Helper()
	list := f.store.PurchasesOf(userID)
	require.Len(t, list, 1)
	return list[0]
}

func TestRoleGrantRetriesThenSucceeds(t *testing.T) {
	f := newRoleFixture(t, 5)
	ctx := context.Background()

	f.adapter.AddMember("u1", "ursula")
	f.adapter.AddRoleErrors = []error{
		&chat.RateLimitError{RetryAfter: 5 * time.Minute},
		errors.New("gateway timeout"),
	}
	a := f.enqueue(t, "u1")

	report, err := f.worker.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, fulfillment.TickReport{Claimed: 1, Rescheduled: 1}, report)

	queued := f.store.RoleAssignments(a.PurchaseID)
	require.Equal(t, f.clock.Now().Add(5*time.Minute), queued[0].NextAttemptAt)

	report, err = f.worker.Tick(ctx)
	require.NoError(t, err)
	require.Zero(t, report.Claimed)

	f.clock.Advance(5 * time.Minute)
	report, err = f.worker.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Rescheduled)

	f.clock.Advance(2 * time.Minute)
	report, err = f.worker.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Completed)

	queued = f.store.RoleAssignments(a.PurchaseID)
	require.Equal(t, fulfillment.RoleCompleted, queued[0].Status)
	require.Equal(t, 3, queued[0].Attempts)
	require.NotNil(t, queued[0].CompletedAt)

	p := f.purchase(t, "u1")
	require.Equal(t, purchase.StatusCompleted, p.Status)
	require.Equal(t, "Role granted: vip", p.DeliveryInfo)

	m, err := f.adapter.Member(ctx, "u1")
	require.NoError(t, err)
	require.True(t, m.HasRole("vip"))

	events := f.recorder.Events()
	require.Len(t, events, 1)
	require.Equal(t, notify.KindRoleGranted, events[0].Kind)
}

func TestRoleGrantTerminalFailure(t *testing.T) {
	f := newRoleFixture(t, 5)
	ctx := context.Background()

	a := f.enqueue(t, "ghost")

	report, err := f.worker.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)

	queued := f.store.RoleAssignments(a.PurchaseID)
	require.Equal(t, fulfillment.RoleFailed, queued[0].Status)
	require.Equal(t, 1, f.adapter.AddCalls)

	p := f.purchase(t, "ghost")
	require.Equal(t, purchase.StatusFailed, p.Status)
	require.Equal(t, "member or role not found", p.DeliveryInfo)
	require.Zero(t, f.recorder.Count(notify.KindRoleGranted))
}

func TestRoleGrantGivesUp(t *testing.T) {
	f := newRoleFixture(t, 2)
	ctx := context.Background()

	f.adapter.AddMember("u1", "ursula")
	flaky := errors.New("connection reset")
	f.adapter.AddRoleErrors = []error{flaky, flaky, flaky}
	a := f.enqueue(t, "u1")

	report, err := f.worker.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Rescheduled)

	f.clock.Advance(time.Minute)
	report, err = f.worker.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)

	queued := f.store.RoleAssignments(a.PurchaseID)
	require.Equal(t, fulfillment.RoleFailed, queued[0].Status)
	require.Contains(t, queued[0].Error, "gave up after 2 attempts")
	require.Equal(t, purchase.StatusFailed, f.purchase(t, "u1").Status)
}

func TestRequeueFailedAssignment(t *testing.T) {
	f := newRoleFixture(t, 5)
	ctx := context.Background()

	a := f.enqueue(t, "u1")
	_, err := f.roles.Requeue(ctx, a.ID)
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = f.worker.Tick(ctx)
	require.NoError(t, err)

	f.adapter.AddMember("u1", "ursula")
	fresh, err := f.roles.Requeue(ctx, a.ID)
	require.NoError(t, err)
	require.NotEqual(t, a.ID, fresh.ID)
	require.Equal(t, fulfillment.RolePending, fresh.Status)

	_, err = f.roles.Requeue(ctx, a.ID)
	require.ErrorIs(t, err, fulfillment.ErrLiveAssignment)

	report, err := f.worker.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Completed)

	queued := f.store.RoleAssignments(a.PurchaseID)
	require.Len(t, queued, 2)
	require.Equal(t, fulfillment.RoleFailed, queued[0].Status)
	require.Equal(t, fulfillment.RoleCompleted, queued[1].Status)

	_, err = f.roles.Requeue(ctx, 999)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestLeasedAssignmentIsNotClaimedTwice(t *testing.T) {
	f := newRoleFixture(t, 5)
	ctx := context.Background()

	f.enqueue(t, "u1")
	claimed, err := f.store.Fulfillment(nil).ClaimRoleAssignments(ctx, f.clock.Now(), time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	report, err := f.worker.Tick(ctx)
	require.NoError(t, err)
	require.Zero(t, report.Claimed)

	f.clock.Advance(2 * time.Minute)
	report, err = f.worker.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Claimed)
}

func TestBackoff(t *testing.T) {
	f := newRoleFixture(t, 5)

	require.Equal(t, time.Minute, f.worker.Backoff(0))
	require.Equal(t, time.Minute, f.worker.Backoff(1))
	require.Equal(t, 2*time.Minute, f.worker.Backoff(2))
	require.Equal(t, 8*time.Minute, f.worker.Backoff(4))
	require.Equal(t, 10*time.Minute, f.worker.Backoff(5))
	require.Equal(t, 10*time.Minute, f.worker.Backoff(30))
}
