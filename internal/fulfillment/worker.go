// AngelaMos | 2026
// worker.go

package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/pitchfork-economy/internal/chat"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/notify"
)

type RoleWorkerConfig struct {
	Interval       time.Duration
	Batch          int
	Lease          time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	CallsPerSecond float64
	CallTimeout    time.Duration
}

type TickReport struct {
	Claimed     int
	Completed   int
	Failed      int
	Rescheduled int
}

// RoleWorker drains the role-assignment queue. Claims happen in a short
// transaction; the chat call runs with no lock held.
type RoleWorker struct {
	tx       core.Transactor
	newRepo  func(core.DBTX) Repository
	chat     chat.Adapter
	notifier notify.Notifier
	clock    core.Clock
	limiter  *rate.Limiter
	cfg      RoleWorkerConfig
	logger   *slog.Logger
}

func NewRoleWorker(
	tx core.Transactor,
	newRepo func(core.DBTX) Repository,
	adapter chat.Adapter,
	notifier notify.Notifier,
	clock core.Clock,
	cfg RoleWorkerConfig,
	logger *slog.Logger,
) *RoleWorker {
	if cfg.Batch < 1 {
		cfg.Batch = 10
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 12
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 2 * time.Minute
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}

	limit := rate.Inf
	if cfg.CallsPerSecond > 0 {
		limit = rate.Limit(cfg.CallsPerSecond)
	}

	return &RoleWorker{
		tx:       tx,
		newRepo:  newRepo,
		chat:     adapter,
		notifier: notifier,
		clock:    clock,
		limiter:  rate.NewLimiter(limit, 1),
		cfg:      cfg,
		logger:   logger.With("component", "role_worker"),
	}
}

func (w *RoleWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.logger.Info("role worker started",
		"interval", w.cfg.Interval,
		"batch", w.cfg.Batch,
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("role worker stopped")
			return nil
		case <-ticker.C:
			if _, err := w.Tick(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("role worker tick failed", "error", err)
			}
		}
	}
}

// Tick claims one batch of due assignments and processes each of them.
func (w *RoleWorker) Tick(ctx context.Context) (TickReport, error) {
	ctx, span := core.StartSpan(ctx, "fulfillment.role_tick")
	defer span.End()

	var report TickReport
	var claimed []RoleAssignment

	err := w.tx.WithTx(ctx, func(db core.DBTX) error {
		var err error
		claimed, err = w.newRepo(db).ClaimRoleAssignments(ctx, w.clock.Now(), w.cfg.Lease, w.cfg.Batch)
		return err
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return report, err
	}

	report.Claimed = len(claimed)
	span.SetAttributes(attribute.Int("role.claimed", len(claimed)))

	for i := range claimed {
		if ctx.Err() != nil {
			break
		}

		outcome, err := w.process(ctx, &claimed[i])
		if err != nil {
			w.logger.Error("finalise role assignment failed",
				"assignment_id", claimed[i].ID,
				"error", err,
			)
			continue
		}

		switch outcome {
		case RoleCompleted:
			report.Completed++
		case RoleFailed:
			report.Failed++
		default:
			report.Rescheduled++
		}
	}

	return report, nil
}

func (w *RoleWorker) process(ctx context.Context, a *RoleAssignment) (RoleStatus, error) {
	log := w.logger.With(
		"assignment_id", a.ID,
		"user_id", a.UserID,
		"role_id", a.RoleID,
		"attempt", a.Attempts,
	)

	grantErr := w.grant(ctx, a)
	now := w.clock.Now()

	switch {
	case grantErr == nil:
		if err := w.finish(ctx, a, RoleCompleted, fmt.Sprintf("Role granted: %s", a.RoleID)); err != nil {
			return "", err
		}
		log.Info("role granted")

		notify.Send(ctx, w.notifier, notify.RoleGranted(a.UserID, notify.RolePayload{
			RoleID:     a.RoleID,
			RoleName:   w.roleName(ctx, a.RoleID),
			PurchaseID: a.PurchaseID,
		}))
		return RoleCompleted, nil

	case chat.IsTerminal(grantErr):
		reason := terminalReason(grantErr)
		if err := w.finish(ctx, a, RoleFailed, reason); err != nil {
			return "", err
		}
		log.Warn("role grant failed permanently", "error", grantErr)
		return RoleFailed, nil

	case a.Attempts >= w.cfg.MaxAttempts:
		reason := fmt.Sprintf("gave up after %d attempts: %v", a.Attempts, grantErr)
		if err := w.finish(ctx, a, RoleFailed, reason); err != nil {
			return "", err
		}
		log.Warn("role grant gave up", "error", grantErr)
		return RoleFailed, nil
	}

	delay := w.Backoff(a.Attempts)
	if retryAfter, ok := chat.RetryAfter(grantErr); ok && retryAfter > delay {
		delay = retryAfter
	}

	err := w.tx.WithTx(ctx, func(db core.DBTX) error {
		return w.newRepo(db).RescheduleRoleAssignment(ctx, a.ID, now.Add(delay), grantErr.Error())
	})
	if err != nil {
		return "", err
	}

	log.Info("role grant deferred", "delay", delay, "error", grantErr)
	return RolePending, nil
}

func (w *RoleWorker) grant(ctx context.Context, a *RoleAssignment) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, w.cfg.CallTimeout)
	defer cancel()

	return w.chat.AddRole(callCtx, a.UserID, a.RoleID)
}

// finish writes the terminal state of the assignment and its purchase in
// one transaction. A record already finalised elsewhere is left alone.
func (w *RoleWorker) finish(ctx context.Context, a *RoleAssignment, status RoleStatus, info string) error {
	return w.tx.WithTx(ctx, func(db core.DBTX) error {
		repo := w.newRepo(db)

		var moved bool
		var err error
		if status == RoleCompleted {
			moved, err = repo.CompleteRoleAssignment(ctx, a.ID, w.clock.Now())
		} else {
			moved, err = repo.FailRoleAssignment(ctx, a.ID, info)
		}
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}

		purchaseStatus := PurchaseCompleted
		if status == RoleFailed {
			purchaseStatus = PurchaseFailed
		}
		_, err = repo.FinishPurchase(ctx, a.PurchaseID, purchaseStatus, info)
		return err
	})
}

// Backoff is base·2^(attempts-1), capped at the configured maximum.
func (w *RoleWorker) Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	delay := w.cfg.BackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if w.cfg.BackoffMax > 0 && delay >= w.cfg.BackoffMax {
			return w.cfg.BackoffMax
		}
	}
	if w.cfg.BackoffMax > 0 && delay > w.cfg.BackoffMax {
		return w.cfg.BackoffMax
	}
	return delay
}

func (w *RoleWorker) roleName(ctx context.Context, roleID string) string {
	role, err := w.chat.Role(ctx, roleID)
	if err != nil {
		return ""
	}
	return role.Name
}

func terminalReason(err error) string {
	switch {
	case errors.Is(err, chat.ErrForbidden):
		return "bot lacks permission to assign this role"
	case errors.Is(err, chat.ErrNotFound):
		return "member or role not found"
	}
	return err.Error()
}
