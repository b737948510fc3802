package domain

import (
	"fmt"
	"time"
)

// Item is a catalog entry. Items are never deleted; a sold-out item keeps
// its record with AvailableQty == 0.
type Item struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	DetailURI    string `json:"detail_uri"`
	PriceCents   int64  `json:"price_cents"`
	AvailableQty int64  `json:"available_qty"`
}

type ItemCreateRequest struct {
	Name       string `json:"name"`
	DetailURI  string `json:"detail_uri"`
	PriceCents int64  `json:"price_cents"`
	InitialQty int64  `json:"initial_qty"`
}

type ItemPriceUpdateRequest struct {
	PriceCents int64 `json:"price_cents"`
}

type ItemPriceHistory struct {
	ID            string    `json:"id"`
	ItemID        int64     `json:"item_id"`
	OldPriceCents int64     `json:"old_price_cents"`
	NewPriceCents int64     `json:"new_price_cents"`
	ChangedBy     string    `json:"changed_by"`
	ChangedAt     time.Time `json:"changed_at"`
}

type InventoryAdjustRequest struct {
	Qty int64 `json:"qty"`
}

// OrderStatus is an ordered enumeration. Accepted < Dispatched < Delivered
// drives eligibility checks (an order is cancelable strictly before
// Dispatched). Cancelled sits outside the ordering and is terminal.
type OrderStatus int

const (
	OrderAccepted OrderStatus = iota
	OrderDispatched
	OrderDelivered
	OrderCancelled
)

var statusNames = map[OrderStatus]string{
	OrderAccepted:   "accepted",
	OrderDispatched: "dispatched",
	OrderDelivered:  "delivered",
	OrderCancelled:  "cancelled",
}

func (s OrderStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func ParseOrderStatus(raw string) (OrderStatus, error) {
	for status, name := range statusNames {
		if name == raw {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown order status %q", raw)
}

func (s OrderStatus) MarshalJSON() ([]byte, error) {
	name, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown order status %d", int(s))
	}
	return []byte(`"` + name + `"`), nil
}

func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("order status must be a string")
	}
	parsed, err := ParseOrderStatus(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Terminal reports whether no further transition is permitted.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// Cancelable reports whether the placer may still cancel: strictly before
// dispatch.
func (s OrderStatus) Cancelable() bool {
	return s == OrderAccepted
}

// CanAdvanceTo reports whether the merchant may move an order from s to
// next. Only the forward edges of the lifecycle exist; cancellation is a
// separate owner-driven operation.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	switch {
	case s == OrderAccepted && next == OrderDispatched:
		return true
	case s == OrderDispatched && next == OrderDelivered:
		return true
	}
	return false
}

// OrderLine is one (item, quantity) pair of an order. UnitPriceCents is the
// catalog price snapshotted at placement time.
type OrderLine struct {
	ItemID         int64 `json:"item_id"`
	Qty            int64 `json:"qty"`
	UnitPriceCents int64 `json:"unit_price_cents"`
}

// Order is immutable once placed except for Status. NetCents is always
// GrossCents - DiscountCents.
type Order struct {
	ID              int64       `json:"id"`
	Lines           []OrderLine `json:"lines"`
	GrossCents      int64       `json:"gross_cents"`
	DiscountCents   int64       `json:"discount_cents"`
	NetCents        int64       `json:"net_cents"`
	PaidCents       int64       `json:"paid_cents"`
	Status          OrderStatus `json:"status"`
	PlacedBy        string      `json:"placed_by"`
	ShippingAddress string      `json:"shipping_address"`
	CreatedAt       time.Time   `json:"created_at"`
}

// OrderRequest carries parallel item/quantity arrays as submitted by the
// caller. The arrays must be the same length.
type OrderRequest struct {
	ItemIDs    []int64 `json:"item_ids"`
	Quantities []int64 `json:"quantities"`
	PaidCents  int64   `json:"paid_cents"`
}

type OrderResponse struct {
	Order Order `json:"order"`
}

type OrderListResponse struct {
	Orders []Order `json:"orders"`
}

type StatusUpdateRequest struct {
	Status OrderStatus `json:"status"`
}

type TotalRequest struct {
	ItemIDs    []int64 `json:"item_ids"`
	Quantities []int64 `json:"quantities"`
}

type TotalResponse struct {
	GrossCents int64 `json:"gross_cents"`
}

type SaleState struct {
	Active          bool  `json:"active"`
	DiscountPercent int64 `json:"discount_percent"`
}

type DiscountUpdateRequest struct {
	DiscountPercent int64 `json:"discount_percent"`
}

// Statistics are maintained incrementally by ledger transactions.
// SalesCents and DiscountsCents are reversed when an order is cancelled;
// ItemsSold is a cumulative units-sold figure and is intentionally not
// decremented on cancellation.
type Statistics struct {
	ItemsSold      int64 `json:"items_sold"`
	SalesCents     int64 `json:"sales_cents"`
	DiscountsCents int64 `json:"discounts_cents"`
}

type WithdrawResponse struct {
	AmountCents int64 `json:"amount_cents"`
}

type ShippingAddressRequest struct {
	Address string `json:"address"`
}

type ShippingAddressResponse struct {
	Address string `json:"address"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisteredUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	RoleMerchant = "merchant"
	RoleCustomer = "customer"
)
