// AngelaMos | 2026
// service.go

package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/fulfillment"
	"github.com/carterperez-dev/pitchfork-economy/internal/ledger"
	"github.com/carterperez-dev/pitchfork-economy/internal/notify"
	"github.com/carterperez-dev/pitchfork-economy/internal/product"
	"github.com/carterperez-dev/pitchfork-economy/internal/user"
)

var ErrAlreadyResolved = errors.New("purchase already resolved")

type Config struct {
	Closed  bool
	Retries int
}

// Coordinator sells products. The debit, the stock decrement, the purchase
// row and its fulfillment record commit together or not at all.
type Coordinator struct {
	tx          core.Transactor
	db          core.DBTX
	newRepo     func(core.DBTX) Repository
	newProducts func(core.DBTX) product.Repository
	ledger      *ledger.Service
	downloads   *fulfillment.DownloadService
	roles       *fulfillment.RoleService
	notifier    notify.Notifier
	cfg         Config
}

func NewCoordinator(
	tx core.Transactor,
	db core.DBTX,
	newRepo func(core.DBTX) Repository,
	newProducts func(core.DBTX) product.Repository,
	ledgerSvc *ledger.Service,
	downloads *fulfillment.DownloadService,
	roles *fulfillment.RoleService,
	notifier notify.Notifier,
	cfg Config,
) *Coordinator {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Coordinator{
		tx:          tx,
		db:          db,
		newRepo:     newRepo,
		newProducts: newProducts,
		ledger:      ledgerSvc,
		downloads:   downloads,
		roles:       roles,
		notifier:    notifier,
		cfg:         cfg,
	}
}

func (c *Coordinator) Purchase(ctx context.Context, userID string, productID int64) (*Receipt, error) {
	ctx, span := core.StartSpan(ctx, "purchase.create",
		attribute.String("user.id", userID),
		attribute.Int64("product.id", productID),
	)
	defer span.End()

	if c.cfg.Closed {
		return nil, core.ErrClosed
	}

	var (
		receipt *Receipt
		buyer   *user.User
		prod    *product.Product
	)

	err := core.RetryTx(ctx, c.tx, c.cfg.Retries, func(db core.DBTX) error {
		var err error
		receipt, buyer, prod, err = c.purchaseIn(ctx, db, userID, productID)
		return err
	})
	if err != nil {
		if _, ok := core.EconomyError(err); !ok && !errors.Is(err, core.ErrNotFound) {
			core.SetSpanError(ctx, err)
		}
		return nil, err
	}

	slog.Info("purchase completed",
		"purchase_id", receipt.Purchase.ID,
		"user_id", userID,
		"product_id", productID,
		"points_spent", receipt.Purchase.PointsSpent,
		"status", receipt.Purchase.Status,
	)

	notify.Send(ctx, c.notifier, notify.PurchaseCreated(userID, buyer.Username, notify.PurchasePayload{
		PurchaseID:   receipt.Purchase.ID,
		ProductID:    prod.ID,
		ProductName:  prod.Name,
		ProductType:  string(prod.Type),
		PointsSpent:  receipt.Purchase.PointsSpent,
		Status:       string(receipt.Purchase.Status),
		DeliveryInfo: receipt.Purchase.DeliveryInfo,
		StockLeft:    receipt.StockLeft,
	}))

	return receipt, nil
}

func (c *Coordinator) purchaseIn(
	ctx context.Context,
	db core.DBTX,
	userID string,
	productID int64,
) (*Receipt, *user.User, *product.Product, error) {
	products := c.newProducts(db)
	repo := c.newRepo(db)
	lt := c.ledger.Bind(db)

	p, err := products.LockForPurchase(ctx, productID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !p.Available() {
		return nil, nil, nil, fmt.Errorf("product %d: %w", p.ID, core.ErrUnavailable)
	}
	if err := p.ValidateDelivery(); err != nil {
		slog.Warn("product has unusable delivery config", "product_id", p.ID, "error", err)
		return nil, nil, nil, fmt.Errorf("product %d: %w", p.ID, core.ErrUnavailable)
	}

	u, err := lt.LockUser(ctx, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	if u.Balance < p.Price {
		return nil, nil, nil, fmt.Errorf("balance %d below price %d: %w", u.Balance, p.Price, core.ErrInsufficient)
	}

	debit, err := lt.Debit(ctx, ledger.DebitRequest{
		UserID: userID,
		Amount: p.Price,
		Reason: ledger.PurchaseReason(p.ID),
	})
	if err != nil {
		return nil, nil, nil, err
	}
	if !debit.Applied {
		return nil, nil, nil, core.ErrInsufficient
	}

	var stockLeft *int
	if !p.Unlimited() {
		if stockLeft, err = products.DecrementStock(ctx, p.ID); err != nil {
			return nil, nil, nil, err
		}
	}

	pur := &Purchase{
		UserID:      userID,
		ProductID:   p.ID,
		PointsSpent: p.Price,
	}
	pur.Status, pur.DeliveryInfo = plan(p, u)

	if err := repo.Create(ctx, pur); err != nil {
		return nil, nil, nil, err
	}

	receipt := &Receipt{
		Purchase:    *pur,
		ProductName: p.Name,
		Balance:     debit.Balance,
		StockLeft:   stockLeft,
	}

	switch p.Fulfillment() {
	case product.DeliveryAutoRole:
		if _, err := c.roles.Enqueue(ctx, db, userID, p.RoleID(), pur.ID); err != nil {
			return nil, nil, nil, err
		}
	case product.DeliveryDownload:
		tok, err := c.downloads.Issue(ctx, db, fulfillment.IssueRequest{
			UserID:     userID,
			PurchaseID: pur.ID,
			FilePath:   p.FilePath(),
			FileName:   p.FileName(),
		})
		if err != nil {
			return nil, nil, nil, err
		}
		receipt.Purchase.DeliveryInfo = tok.URL()
		receipt.DownloadURL = tok.URL()
		if err := repo.SetDelivery(ctx, pur.ID, StatusCompleted, tok.URL()); err != nil {
			return nil, nil, nil, err
		}
	}

	return receipt, u, p, nil
}

// plan decides the initial status and delivery info for a sale. Download
// info is filled in once the token exists.
func plan(p *product.Product, u *user.User) (Status, string) {
	switch p.Fulfillment() {
	case product.DeliveryAutoRole:
		return StatusPendingDelivery, ""
	case product.DeliveryCodeGen:
		return StatusCompleted, GenerateCode(p.CodeTemplate())
	case product.DeliveryManual:
		return StatusPendingDelivery, manualNotePrefix + u.UUID.String()
	default:
		return StatusCompleted, ""
	}
}

// GenerateCode fills every placeholder in template with one fresh UUID.
func GenerateCode(template string) string {
	return strings.ReplaceAll(template, product.CodePlaceholder, uuid.NewString())
}

// Resolve finishes a pending purchase from the admin console. Terminal
// purchases are immutable.
func (c *Coordinator) Resolve(ctx context.Context, id int64, req ResolveRequest) (*Purchase, error) {
	if !req.Status.Terminal() {
		return nil, fmt.Errorf("resolve status %q: %w", req.Status, core.ErrInvalidInput)
	}

	repo := c.newRepo(c.db)

	ok, err := repo.Resolve(ctx, id, req.Status, req.DeliveryInfo)
	if err != nil {
		return nil, err
	}

	p, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("purchase %d is %s: %w", id, p.Status, ErrAlreadyResolved)
	}

	slog.Info("purchase resolved", "purchase_id", id, "status", req.Status)
	return p, nil
}

func (c *Coordinator) AdminList(ctx context.Context, params ListParams) ([]Detail, int, error) {
	params.Normalize()
	return c.newRepo(c.db).List(ctx, params)
}

type HistoryItem struct {
	Detail
	DownloadURL string
}

// History lists a member's purchases, attaching a still-valid download
// link where one exists.
func (c *Coordinator) History(ctx context.Context, userID string, params ListParams) ([]HistoryItem, int, error) {
	params.UserID = userID
	params.Normalize()

	list, total, err := c.newRepo(c.db).List(ctx, params)
	if err != nil {
		return nil, 0, err
	}

	tokens, err := c.downloads.ActiveTokens(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	links := make(map[int64]string, len(tokens))
	for _, t := range tokens {
		if _, seen := links[t.PurchaseID]; !seen {
			links[t.PurchaseID] = t.URL()
		}
	}

	out := make([]HistoryItem, len(list))
	for i, d := range list {
		out[i] = HistoryItem{Detail: d, DownloadURL: links[d.ID]}
	}
	return out, total, nil
}
