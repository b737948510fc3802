package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"tokoku/backend/internal/domain"
	"tokoku/backend/internal/notify"
	"tokoku/backend/internal/store"
	"tokoku/backend/internal/transfer"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Engine is the single entry point for every store operation. It binds the
// caller identity from the context, performs the capability check for
// merchant-only operations, delegates the atomic state change to the
// repository, and emits change notifications and external transfers only
// after the change has committed.
type Engine struct {
	repo      store.Repository
	events    notify.Publisher
	transfers transfer.Gateway
	merchant  string
}

func New(repo store.Repository, events notify.Publisher, transfers transfer.Gateway, merchantUsername string) *Engine {
	if merchantUsername == "" {
		merchantUsername = "merchant"
	}
	if events == nil {
		events = notify.NoopPublisher{}
	}
	if transfers == nil {
		transfers = transfer.LogGateway{}
	}

	return &Engine{
		repo:      repo,
		events:    events,
		transfers: transfers,
		merchant:  merchantUsername,
	}
}

// Merchant returns the privileged identity fixed at construction.
func (e *Engine) Merchant() string {
	return e.merchant
}

func (e *Engine) requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || strings.TrimSpace(actor.Username) == "" {
		return domain.Actor{}, fmt.Errorf("%w: caller identity required", store.ErrUnauthorized)
	}
	return actor, nil
}

// requireMerchant is the capability check for merchant-only operations:
// the caller identity must equal the merchant identity fixed at
// construction AND carry the merchant role. Both checks matter: a
// registered customer who claimed the merchant username still lacks the
// role, and a merchant-role token for another username is misissued.
func (e *Engine) requireMerchant(ctx context.Context) (domain.Actor, error) {
	actor, err := e.requireActor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if actor.Username != e.merchant || actor.Role != domain.RoleMerchant {
		return domain.Actor{}, fmt.Errorf("%w: merchant identity required", store.ErrUnauthorized)
	}
	return actor, nil
}

// --- Catalog ---

func (e *Engine) AddItem(ctx context.Context, req domain.ItemCreateRequest) (domain.Item, error) {
	actor, err := e.requireMerchant(ctx)
	if err != nil {
		return domain.Item{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.DetailURI = strings.TrimSpace(req.DetailURI)
	if req.Name == "" {
		return domain.Item{}, fmt.Errorf("%w: item name required", store.ErrInvalidArgument)
	}
	if req.PriceCents < 0 || req.InitialQty < 0 {
		return domain.Item{}, fmt.Errorf("%w: price and quantity must be non-negative", store.ErrInvalidArgument)
	}

	created, err := e.repo.CreateItem(ctx, domain.Item{
		Name:         req.Name,
		DetailURI:    req.DetailURI,
		PriceCents:   req.PriceCents,
		AvailableQty: req.InitialQty,
	})
	if err != nil {
		return domain.Item{}, err
	}

	e.logAudit(ctx, actor, "item_add", "item", fmt.Sprintf("%d", created.ID),
		fmt.Sprintf("name=%s,price=%d,qty=%d", created.Name, created.PriceCents, created.AvailableQty))

	return *created, nil
}

func (e *Engine) UpdateItemPrice(ctx context.Context, itemID int64, req domain.ItemPriceUpdateRequest) (domain.Item, error) {
	actor, err := e.requireMerchant(ctx)
	if err != nil {
		return domain.Item{}, err
	}
	if req.PriceCents < 0 {
		return domain.Item{}, fmt.Errorf("%w: price must be non-negative", store.ErrInvalidArgument)
	}

	existing, err := e.repo.GetItem(ctx, itemID)
	if err != nil {
		return domain.Item{}, err
	}

	updated, err := e.repo.UpdateItemPrice(ctx, itemID, req.PriceCents)
	if err != nil {
		return domain.Item{}, err
	}

	if existing.PriceCents != updated.PriceCents {
		if err := e.repo.CreatePriceHistory(ctx, domain.ItemPriceHistory{
			ItemID:        updated.ID,
			OldPriceCents: existing.PriceCents,
			NewPriceCents: updated.PriceCents,
			ChangedBy:     actor.Username,
			ChangedAt:     time.Now().UTC(),
		}); err != nil {
			log.Printf("[engine] WARN: failed to record price history item=%d: %v", updated.ID, err)
		}
	}

	e.logAudit(ctx, actor, "item_price_update", "item", fmt.Sprintf("%d", updated.ID),
		fmt.Sprintf("old=%d,new=%d", existing.PriceCents, updated.PriceCents))

	return *updated, nil
}

func (e *Engine) ListItemPriceHistory(ctx context.Context, itemID int64, limit int) ([]domain.ItemPriceHistory, error) {
	if _, err := e.requireMerchant(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 50
	}
	return e.repo.ListPriceHistory(ctx, itemID, limit)
}

func (e *Engine) IncreaseInventory(ctx context.Context, itemID int64, qty int64) (domain.Item, error) {
	return e.adjustInventory(ctx, itemID, qty, +1, "inventory_increase")
}

func (e *Engine) DecreaseInventory(ctx context.Context, itemID int64, qty int64) (domain.Item, error) {
	return e.adjustInventory(ctx, itemID, qty, -1, "inventory_decrease")
}

func (e *Engine) adjustInventory(ctx context.Context, itemID int64, qty int64, sign int64, action string) (domain.Item, error) {
	actor, err := e.requireMerchant(ctx)
	if err != nil {
		return domain.Item{}, err
	}
	if qty < 1 {
		return domain.Item{}, fmt.Errorf("%w: quantity must be positive", store.ErrInvalidArgument)
	}

	updated, err := e.repo.AdjustInventory(ctx, itemID, sign*qty)
	if err != nil {
		return domain.Item{}, err
	}

	e.logAudit(ctx, actor, action, "item", fmt.Sprintf("%d", itemID),
		fmt.Sprintf("qty=%d,available=%d", qty, updated.AvailableQty))

	return *updated, nil
}

func (e *Engine) GetItemDetail(ctx context.Context, itemID int64) (domain.Item, error) {
	item, err := e.repo.GetItem(ctx, itemID)
	if err != nil {
		return domain.Item{}, err
	}
	return *item, nil
}

func (e *Engine) ListItems(ctx context.Context) ([]domain.Item, error) {
	return e.repo.ListItems(ctx)
}

// --- Orders ---

func (e *Engine) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResponse, error) {
	actor, err := e.requireActor(ctx)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	lines, err := zipLines(req.ItemIDs, req.Quantities)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	order, err := e.repo.PlaceOrder(ctx, actor.Username, lines, req.PaidCents)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	e.logAudit(ctx, actor, "order_place", "order", fmt.Sprintf("%d", order.ID),
		fmt.Sprintf("gross=%d,discount=%d,net=%d,paid=%d", order.GrossCents, order.DiscountCents, order.NetCents, order.PaidCents))
	e.emit(ctx, notify.Event{
		Type:        notify.EventOrderPlaced,
		OrderID:     order.ID,
		AmountCents: order.NetCents,
	})

	return domain.OrderResponse{Order: *order}, nil
}

func (e *Engine) CancelOrder(ctx context.Context, orderID int64) (domain.OrderResponse, error) {
	actor, err := e.requireActor(ctx)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	order, err := e.repo.CancelOrder(ctx, orderID, actor.Username)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	// The refund is best-effort: the cancellation has already committed and
	// a transfer failure does not roll it back (see DESIGN.md).
	if err := e.transfers.Credit(ctx, order.PlacedBy, order.NetCents, "order refund"); err != nil {
		log.Printf("[engine] WARN: refund transfer failed order=%d account=%s: %v", order.ID, order.PlacedBy, err)
	}

	e.logAudit(ctx, actor, "order_cancel", "order", fmt.Sprintf("%d", order.ID),
		fmt.Sprintf("refund=%d", order.NetCents))
	e.emit(ctx, notify.Event{
		Type:        notify.EventOrderCancelled,
		OrderID:     order.ID,
		AmountCents: order.NetCents,
	})

	return domain.OrderResponse{Order: *order}, nil
}

func (e *Engine) UpdateOrderStatus(ctx context.Context, orderID int64, next domain.OrderStatus) (domain.OrderResponse, error) {
	actor, err := e.requireMerchant(ctx)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	order, err := e.repo.UpdateOrderStatus(ctx, orderID, next)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	e.logAudit(ctx, actor, "order_status_update", "order", fmt.Sprintf("%d", order.ID),
		fmt.Sprintf("status=%s", order.Status))

	return domain.OrderResponse{Order: *order}, nil
}

func (e *Engine) GetOrderDetail(ctx context.Context, orderID int64) (domain.OrderResponse, error) {
	if _, err := e.requireActor(ctx); err != nil {
		return domain.OrderResponse{}, err
	}

	order, err := e.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	return domain.OrderResponse{Order: *order}, nil
}

func (e *Engine) GetMyOrders(ctx context.Context) (domain.OrderListResponse, error) {
	actor, err := e.requireActor(ctx)
	if err != nil {
		return domain.OrderListResponse{}, err
	}

	orders, err := e.repo.ListOrdersByPlacer(ctx, actor.Username)
	if err != nil {
		return domain.OrderListResponse{}, err
	}
	return domain.OrderListResponse{Orders: orders}, nil
}

// CalculateTotal is a pure pricing helper: it sums current catalog prices
// over the given lines with no discount applied (a discount depends on the
// sale state at placement time, not at quoting time).
func (e *Engine) CalculateTotal(ctx context.Context, req domain.TotalRequest) (domain.TotalResponse, error) {
	lines, err := zipLines(req.ItemIDs, req.Quantities)
	if err != nil {
		return domain.TotalResponse{}, err
	}

	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ItemID)
	}
	items, err := e.repo.GetItemsByIDs(ctx, ids)
	if err != nil {
		return domain.TotalResponse{}, err
	}

	grossCents := int64(0)
	for _, line := range lines {
		item, exists := items[line.ItemID]
		if !exists {
			return domain.TotalResponse{}, fmt.Errorf("%w: item %d", store.ErrNotFound, line.ItemID)
		}
		lineCents := item.PriceCents * line.Qty
		if item.PriceCents != 0 && (lineCents/item.PriceCents != line.Qty || lineCents < 0) {
			return domain.TotalResponse{}, fmt.Errorf("%w: line total overflows", store.ErrInvalidArgument)
		}
		grossCents += lineCents
		if grossCents < 0 {
			return domain.TotalResponse{}, fmt.Errorf("%w: total overflows", store.ErrInvalidArgument)
		}
	}

	return domain.TotalResponse{GrossCents: grossCents}, nil
}

// --- Sale ---

func (e *Engine) GetSaleState(ctx context.Context) (domain.SaleState, error) {
	return e.repo.GetSaleState(ctx)
}

func (e *Engine) ToggleSale(ctx context.Context) (domain.SaleState, error) {
	actor, err := e.requireMerchant(ctx)
	if err != nil {
		return domain.SaleState{}, err
	}

	state, err := e.repo.ToggleSale(ctx)
	if err != nil {
		return domain.SaleState{}, err
	}

	e.logAudit(ctx, actor, "sale_toggle", "sale", "sale",
		fmt.Sprintf("active=%t,discount=%d", state.Active, state.DiscountPercent))
	if state.Active {
		e.emit(ctx, notify.Event{Type: notify.EventSaleStarted, DiscountPercent: state.DiscountPercent})
	} else {
		e.emit(ctx, notify.Event{Type: notify.EventSaleEnded})
	}

	return state, nil
}

func (e *Engine) SetDiscountPercent(ctx context.Context, req domain.DiscountUpdateRequest) (domain.SaleState, error) {
	actor, err := e.requireMerchant(ctx)
	if err != nil {
		return domain.SaleState{}, err
	}
	if req.DiscountPercent < 0 || req.DiscountPercent > 100 {
		return domain.SaleState{}, fmt.Errorf("%w: discount percent must be in [0,100]", store.ErrInvalidArgument)
	}

	state, err := e.repo.SetDiscountPercent(ctx, req.DiscountPercent)
	if err != nil {
		return domain.SaleState{}, err
	}

	e.logAudit(ctx, actor, "sale_discount_update", "sale", "sale",
		fmt.Sprintf("discount=%d", state.DiscountPercent))

	return state, nil
}

// --- Accounting and funds ---

func (e *Engine) GetStatistics(ctx context.Context) (domain.Statistics, error) {
	if _, err := e.requireMerchant(ctx); err != nil {
		return domain.Statistics{}, err
	}
	return e.repo.GetStatistics(ctx)
}

func (e *Engine) WithdrawFunds(ctx context.Context) (domain.WithdrawResponse, error) {
	actor, err := e.requireMerchant(ctx)
	if err != nil {
		return domain.WithdrawResponse{}, err
	}

	amount, err := e.repo.WithdrawBalance(ctx)
	if err != nil {
		return domain.WithdrawResponse{}, err
	}

	if amount != 0 {
		if err := e.transfers.Credit(ctx, e.merchant, amount, "merchant withdrawal"); err != nil {
			log.Printf("[engine] WARN: withdrawal transfer failed amount=%d: %v", amount, err)
		}
	}

	e.logAudit(ctx, actor, "funds_withdraw", "balance", "balance", fmt.Sprintf("amount=%d", amount))

	return domain.WithdrawResponse{AmountCents: amount}, nil
}

// --- Shipping addresses ---

func (e *Engine) UpdateShippingAddress(ctx context.Context, req domain.ShippingAddressRequest) error {
	actor, err := e.requireActor(ctx)
	if err != nil {
		return err
	}
	return e.repo.SetShippingAddress(ctx, actor.Username, strings.TrimSpace(req.Address))
}

func (e *Engine) GetShippingAddress(ctx context.Context) (domain.ShippingAddressResponse, error) {
	actor, err := e.requireActor(ctx)
	if err != nil {
		return domain.ShippingAddressResponse{}, err
	}

	address, err := e.repo.GetShippingAddress(ctx, actor.Username)
	if err != nil {
		return domain.ShippingAddressResponse{}, err
	}
	return domain.ShippingAddressResponse{Address: address}, nil
}

// GetOrderShippingAddress returns the snapshot taken at placement time,
// not the placer's current address.
func (e *Engine) GetOrderShippingAddress(ctx context.Context, orderID int64) (domain.ShippingAddressResponse, error) {
	if _, err := e.requireMerchant(ctx); err != nil {
		return domain.ShippingAddressResponse{}, err
	}

	order, err := e.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.ShippingAddressResponse{}, err
	}
	return domain.ShippingAddressResponse{Address: order.ShippingAddress}, nil
}

// --- Audit ---

func (e *Engine) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if _, err := e.requireMerchant(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}
	return e.repo.ListAuditLogs(ctx, from, to, limit)
}

// --- helpers ---

// maxLineQty bounds a single line's quantity so price*qty arithmetic
// stays far from int64 overflow even for quote-only requests, which are
// not bounded by available inventory.
const maxLineQty = 1_000_000

func zipLines(itemIDs []int64, quantities []int64) ([]domain.OrderLine, error) {
	if len(itemIDs) != len(quantities) {
		return nil, fmt.Errorf("%w: item and quantity arrays differ in length", store.ErrMalformedInput)
	}
	if len(itemIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one line item required", store.ErrMalformedInput)
	}

	lines := make([]domain.OrderLine, 0, len(itemIDs))
	for i, id := range itemIDs {
		if quantities[i] < 1 {
			return nil, fmt.Errorf("%w: quantity must be positive", store.ErrInvalidArgument)
		}
		if quantities[i] > maxLineQty {
			return nil, fmt.Errorf("%w: quantity exceeds %d per line", store.ErrInvalidArgument, maxLineQty)
		}
		lines = append(lines, domain.OrderLine{ItemID: id, Qty: quantities[i]})
	}
	return lines, nil
}

func (e *Engine) emit(ctx context.Context, event notify.Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	if err := e.events.Publish(ctx, event); err != nil {
		log.Printf("[engine] WARN: failed to publish %s event: %v", event.Type, err)
	}
}

func (e *Engine) logAudit(ctx context.Context, actor domain.Actor, action string, entityType string, entityID string, detail string) {
	err := e.repo.CreateAuditLog(ctx, domain.AuditLog{
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[engine] WARN: failed to record audit log action=%s: %v", action, err)
	}
}
