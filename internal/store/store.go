package store

import (
	"context"
	"errors"
	"time"

	"tokoku/backend/internal/domain"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInsufficientPayment   = errors.New("insufficient payment")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidState          = errors.New("invalid order state")
	ErrMalformedInput        = errors.New("malformed input")
	ErrInvalidArgument       = errors.New("invalid argument")
)

// Repository is the single serialization boundary around the catalog, the
// order ledger, the sale state and the running accounting totals. Every
// mutating method applies all of its effects atomically or none of them;
// a failed precondition leaves the store unchanged. Read methods observe
// the result of some completed prefix of mutations, never a partial one.
type Repository interface {
	// Catalog. Item ids are sequential and assigned by the store.
	CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error)
	UpdateItemPrice(ctx context.Context, itemID int64, priceCents int64) (*domain.Item, error)
	// AdjustInventory changes availability by delta (positive to release or
	// restock, negative to reserve). A decrease past zero fails with
	// ErrInsufficientInventory; quantities are never clamped.
	AdjustInventory(ctx context.Context, itemID int64, delta int64) (*domain.Item, error)
	GetItem(ctx context.Context, itemID int64) (*domain.Item, error)
	GetItemsByIDs(ctx context.Context, itemIDs []int64) (map[int64]domain.Item, error)
	ListItems(ctx context.Context) ([]domain.Item, error)
	CreatePriceHistory(ctx context.Context, entry domain.ItemPriceHistory) error
	ListPriceHistory(ctx context.Context, itemID int64, limit int) ([]domain.ItemPriceHistory, error)

	// Ledger. PlaceOrder runs the whole placement transaction: price lookup,
	// availability and payment checks, sale discount, shipping snapshot,
	// sequential id assignment, inventory reservation, accounting update and
	// balance accrual.
	PlaceOrder(ctx context.Context, placedBy string, lines []domain.OrderLine, paidCents int64) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID int64, caller string) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, next domain.OrderStatus) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	ListOrdersByPlacer(ctx context.Context, caller string) ([]domain.Order, error)

	// Sale state.
	GetSaleState(ctx context.Context) (domain.SaleState, error)
	ToggleSale(ctx context.Context) (domain.SaleState, error)
	SetDiscountPercent(ctx context.Context, pct int64) (domain.SaleState, error)

	// Accounting and funds.
	GetStatistics(ctx context.Context) (domain.Statistics, error)
	// WithdrawBalance zeroes the accrued store balance and returns the
	// withdrawn amount.
	WithdrawBalance(ctx context.Context) (int64, error)

	// Shipping address book.
	SetShippingAddress(ctx context.Context, caller string, address string) error
	GetShippingAddress(ctx context.Context, caller string) (string, error)

	// Audit trail.
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	// Auth credentials.
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
