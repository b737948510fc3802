package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tokoku/backend/internal/domain"
	"tokoku/backend/internal/store"
	"tokoku/backend/internal/xid"
)

// Store keeps the whole aggregate (catalog, order ledger, sale state,
// accounting totals, balance, address book) behind a single mutex so that
// every mutating operation is one indivisible transaction.
type Store struct {
	mu             sync.RWMutex
	items          map[int64]domain.Item
	itemSeq        []int64
	nextItemID     int64
	orders         map[int64]*domain.Order
	orderSeq       []int64
	ordersByPlacer map[string][]int64
	nextOrderID    int64
	sale           domain.SaleState
	stats          domain.Statistics
	balanceCents   int64
	addresses      map[string]string
	priceHistory   map[int64][]domain.ItemPriceHistory
	auditLogs      []domain.AuditLog
	users          map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		items:          make(map[int64]domain.Item),
		orders:         make(map[int64]*domain.Order),
		ordersByPlacer: make(map[string][]int64),
		addresses:      make(map[string]string),
		priceHistory:   make(map[int64][]domain.ItemPriceHistory),
		auditLogs:      make([]domain.AuditLog, 0, 128),
		users:          seedUsers(),
	}
}

// NewSeeded returns a store preloaded with a small demo catalog for
// dev/demo mode.
func NewSeeded() *Store {
	s := New()

	seed := []domain.Item{
		{Name: "Kaos Polos Hitam", DetailURI: "ipfs://item/kaos-polos-hitam", PriceCents: 7500, AvailableQty: 40},
		{Name: "Topi Baseball", DetailURI: "ipfs://item/topi-baseball", PriceCents: 5200, AvailableQty: 25},
		{Name: "Botol Minum 750ml", DetailURI: "ipfs://item/botol-minum", PriceCents: 3900, AvailableQty: 60},
		{Name: "Tas Kanvas", DetailURI: "ipfs://item/tas-kanvas", PriceCents: 11800, AvailableQty: 15},
		{Name: "Stiker Set", DetailURI: "ipfs://item/stiker-set", PriceCents: 1200, AvailableQty: 200},
	}
	for _, item := range seed {
		s.nextItemID++
		item.ID = s.nextItemID
		s.items[item.ID] = item
		s.itemSeq = append(s.itemSeq, item.ID)
	}

	return s
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials are read from SEED_MERCHANT_PASSWORD and
// SEED_CUSTOMER_PASSWORD environment variables. If unset, hardcoded dev
// defaults are used with a warning printed to stdout. These credentials
// are never used in production (the backend uses PostgreSQL when
// DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	merchantPwd := envOr("SEED_MERCHANT_PASSWORD", "merchant123")
	customerPwd := envOr("SEED_CUSTOMER_PASSWORD", "customer123")
	if os.Getenv("SEED_MERCHANT_PASSWORD") == "" || os.Getenv("SEED_CUSTOMER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_MERCHANT_PASSWORD and SEED_CUSTOMER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"merchant", merchantPwd, domain.RoleMerchant},
		{"customer", customerPwd, domain.RoleCustomer},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) CreateItem(_ context.Context, item domain.Item) (*domain.Item, error) {
	if strings.TrimSpace(item.Name) == "" || item.PriceCents < 0 || item.AvailableQty < 0 {
		return nil, store.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextItemID++
	item.ID = s.nextItemID
	s.items[item.ID] = item
	s.itemSeq = append(s.itemSeq, item.ID)

	created := item
	return &created, nil
}

func (s *Store) UpdateItemPrice(_ context.Context, itemID int64, priceCents int64) (*domain.Item, error) {
	if priceCents < 0 {
		return nil, store.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[itemID]
	if !exists {
		return nil, store.ErrNotFound
	}
	item.PriceCents = priceCents
	s.items[itemID] = item

	updated := item
	return &updated, nil
}

func (s *Store) AdjustInventory(_ context.Context, itemID int64, delta int64) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[itemID]
	if !exists {
		return nil, store.ErrNotFound
	}
	next := item.AvailableQty + delta
	if next < 0 {
		return nil, store.ErrInsufficientInventory
	}
	item.AvailableQty = next
	s.items[itemID] = item

	updated := item
	return &updated, nil
}

func (s *Store) GetItem(_ context.Context, itemID int64) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[itemID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyItem := item
	return &copyItem, nil
}

func (s *Store) GetItemsByIDs(_ context.Context, itemIDs []int64) (map[int64]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[int64]domain.Item, len(itemIDs))
	for _, id := range itemIDs {
		if item, ok := s.items[id]; ok {
			result[id] = item
		}
	}
	return result, nil
}

func (s *Store) ListItems(_ context.Context) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.Item, 0, len(s.itemSeq))
	for _, id := range s.itemSeq {
		items = append(items, s.items[id])
	}
	return items, nil
}

func (s *Store) CreatePriceHistory(_ context.Context, entry domain.ItemPriceHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("ph")
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	s.priceHistory[entry.ItemID] = append(s.priceHistory[entry.ItemID], entry)
	return nil
}

func (s *Store) ListPriceHistory(_ context.Context, itemID int64, limit int) ([]domain.ItemPriceHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.priceHistory[itemID]
	if len(history) == 0 {
		return []domain.ItemPriceHistory{}, nil
	}

	result := make([]domain.ItemPriceHistory, len(history))
	copy(result, history)
	slices.SortFunc(result, func(a, b domain.ItemPriceHistory) int {
		if a.ChangedAt.Equal(b.ChangedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.ChangedAt.After(b.ChangedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// PlaceOrder applies the whole placement transaction under one lock hold:
// availability and payment checks first, then reservation, the order
// append, accounting and balance accrual together. Any failed check
// returns before anything is mutated.
func (s *Store) PlaceOrder(_ context.Context, placedBy string, lines []domain.OrderLine, paidCents int64) (*domain.Order, error) {
	if placedBy == "" {
		return nil, store.ErrUnauthorized
	}
	if len(lines) == 0 {
		return nil, store.ErrMalformedInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Aggregate requested quantities per item so duplicate lines cannot
	// together exceed availability.
	required := make(map[int64]int64, len(lines))
	for _, line := range lines {
		if line.Qty < 1 {
			return nil, store.ErrInvalidArgument
		}
		if _, exists := s.items[line.ItemID]; !exists {
			return nil, store.ErrNotFound
		}
		required[line.ItemID] += line.Qty
	}
	for itemID, qty := range required {
		if qty > s.items[itemID].AvailableQty {
			return nil, store.ErrInsufficientInventory
		}
	}

	grossCents := int64(0)
	itemCount := int64(0)
	priced := make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		item := s.items[line.ItemID]
		line.UnitPriceCents = item.PriceCents
		grossCents += item.PriceCents * line.Qty
		itemCount += line.Qty
		priced = append(priced, line)
	}

	if paidCents < grossCents {
		return nil, store.ErrInsufficientPayment
	}

	discountCents := int64(0)
	if s.sale.Active {
		discountCents = grossCents * s.sale.DiscountPercent / 100
	}
	netCents := grossCents - discountCents

	for itemID, qty := range required {
		item := s.items[itemID]
		item.AvailableQty -= qty
		s.items[itemID] = item
	}

	s.nextOrderID++
	order := &domain.Order{
		ID:              s.nextOrderID,
		Lines:           priced,
		GrossCents:      grossCents,
		DiscountCents:   discountCents,
		NetCents:        netCents,
		PaidCents:       paidCents,
		Status:          domain.OrderAccepted,
		PlacedBy:        placedBy,
		ShippingAddress: s.addresses[placedBy],
		CreatedAt:       time.Now().UTC(),
	}
	s.orders[order.ID] = order
	s.orderSeq = append(s.orderSeq, order.ID)
	s.ordersByPlacer[placedBy] = append(s.ordersByPlacer[placedBy], order.ID)

	s.stats.SalesCents += netCents
	s.stats.ItemsSold += itemCount
	s.stats.DiscountsCents += discountCents
	s.balanceCents += paidCents

	return copyOrder(order), nil
}

func (s *Store) CancelOrder(_ context.Context, orderID int64, caller string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.orders[orderID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if order.PlacedBy != caller {
		return nil, store.ErrUnauthorized
	}
	if !order.Status.Cancelable() {
		return nil, store.ErrInvalidState
	}

	order.Status = domain.OrderCancelled
	for _, line := range order.Lines {
		item := s.items[line.ItemID]
		item.AvailableQty += line.Qty
		s.items[line.ItemID] = item
	}

	// ItemsSold stays: it is a cumulative units-sold figure.
	s.stats.SalesCents -= order.NetCents
	s.stats.DiscountsCents -= order.DiscountCents
	s.balanceCents -= order.NetCents

	return copyOrder(order), nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, orderID int64, next domain.OrderStatus) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.orders[orderID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if !order.Status.CanAdvanceTo(next) {
		return nil, store.ErrInvalidState
	}
	order.Status = next

	return copyOrder(order), nil
}

func (s *Store) GetOrder(_ context.Context, orderID int64) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.orders[orderID]
	if !exists {
		return nil, store.ErrNotFound
	}
	return copyOrder(order), nil
}

func (s *Store) ListOrdersByPlacer(_ context.Context, caller string) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.ordersByPlacer[caller]
	orders := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		orders = append(orders, *copyOrder(s.orders[id]))
	}
	return orders, nil
}

func (s *Store) GetSaleState(_ context.Context) (domain.SaleState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sale, nil
}

func (s *Store) ToggleSale(_ context.Context) (domain.SaleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sale.Active = !s.sale.Active
	return s.sale, nil
}

func (s *Store) SetDiscountPercent(_ context.Context, pct int64) (domain.SaleState, error) {
	if pct < 0 || pct > 100 {
		return domain.SaleState{}, store.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sale.DiscountPercent = pct
	return s.sale, nil
}

func (s *Store) GetStatistics(_ context.Context) (domain.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats, nil
}

func (s *Store) WithdrawBalance(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	amount := s.balanceCents
	s.balanceCents = 0
	return amount, nil
}

func (s *Store) SetShippingAddress(_ context.Context, caller string, address string) error {
	if caller == "" {
		return store.ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.addresses[caller] = address
	return nil
}

func (s *Store) GetShippingAddress(_ context.Context, caller string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addresses[caller], nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, len(s.auditLogs))
	for _, entry := range s.auditLogs {
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && entry.CreatedAt.After(to) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return store.ErrInvalidArgument
	}
	user.Username = username
	s.users[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.users[username] = user
	return nil
}

func copyOrder(order *domain.Order) *domain.Order {
	copied := *order
	copied.Lines = make([]domain.OrderLine, len(order.Lines))
	copy(copied.Lines, order.Lines)
	return &copied
}
