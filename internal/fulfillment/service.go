// AngelaMos | 2026
// service.go

package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
)

// ErrLiveAssignment means the purchase already has a pending or completed
// assignment.
var ErrLiveAssignment = errors.New("purchase already has a live role assignment")

type RoleService struct {
	db      core.DBTX
	newRepo func(core.DBTX) Repository
}

func NewRoleService(db core.DBTX, newRepo func(core.DBTX) Repository) *RoleService {
	return &RoleService{db: db, newRepo: newRepo}
}

// Enqueue adds a pending assignment on db, normally the purchase
// transaction.
func (s *RoleService) Enqueue(ctx context.Context, db core.DBTX, userID, roleID string, purchaseID int64) (*RoleAssignment, error) {
	a := &RoleAssignment{
		UserID:     userID,
		RoleID:     roleID,
		PurchaseID: purchaseID,
	}
	if err := s.newRepo(db).InsertRoleAssignment(ctx, a); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrLiveAssignment
		}
		return nil, err
	}
	return a, nil
}

func (s *RoleService) List(ctx context.Context, status RoleStatus, page, pageSize int) ([]RoleAssignment, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.newRepo(s.db).ListRoleAssignments(ctx, status, pageSize, (page-1)*pageSize)
}

// Requeue retries a failed assignment by inserting a fresh pending row for
// the same purchase. The failed row is kept as history.
func (s *RoleService) Requeue(ctx context.Context, id int64) (*RoleAssignment, error) {
	repo := s.newRepo(s.db)

	old, err := repo.GetRoleAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if old.Status != RoleFailed {
		return nil, fmt.Errorf("requeue assignment %d in status %s: %w", id, old.Status, core.ErrInvalidInput)
	}

	a, err := s.Enqueue(ctx, s.db, old.UserID, old.RoleID, old.PurchaseID)
	if err != nil {
		return nil, err
	}

	slog.Info("role assignment requeued",
		"assignment_id", id,
		"new_assignment_id", a.ID,
		"purchase_id", a.PurchaseID,
	)
	return a, nil
}
