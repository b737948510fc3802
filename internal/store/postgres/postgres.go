package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tokoku/backend/internal/domain"
	"tokoku/backend/internal/store"
	"tokoku/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	if strings.TrimSpace(item.Name) == "" || item.PriceCents < 0 || item.AvailableQty < 0 {
		return nil, store.ErrInvalidArgument
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO items (name, detail_uri, price_cents, available_qty, created_at, updated_at)
		VALUES ($1,$2,$3,$4,now(),now())
		RETURNING id
	`, item.Name, item.DetailURI, item.PriceCents, item.AvailableQty).Scan(&item.ID)
	if err != nil {
		return nil, err
	}

	created := item
	return &created, nil
}

func (s *Store) UpdateItemPrice(ctx context.Context, itemID int64, priceCents int64) (*domain.Item, error) {
	if priceCents < 0 {
		return nil, store.ErrInvalidArgument
	}

	var item domain.Item
	err := s.db.QueryRowContext(ctx, `
		UPDATE items
		SET price_cents = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, name, detail_uri, price_cents, available_qty
	`, itemID, priceCents).Scan(&item.ID, &item.Name, &item.DetailURI, &item.PriceCents, &item.AvailableQty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) AdjustInventory(ctx context.Context, itemID int64, delta int64) (*domain.Item, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var item domain.Item
	err = tx.QueryRowContext(ctx, `
		SELECT id, name, detail_uri, price_cents, available_qty
		FROM items
		WHERE id = $1
		FOR UPDATE
	`, itemID).Scan(&item.ID, &item.Name, &item.DetailURI, &item.PriceCents, &item.AvailableQty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	next := item.AvailableQty + delta
	if next < 0 {
		return nil, store.ErrInsufficientInventory
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE items
		SET available_qty = $2, updated_at = now()
		WHERE id = $1
	`, itemID, next)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	item.AvailableQty = next
	return &item, nil
}

func (s *Store) GetItem(ctx context.Context, itemID int64) (*domain.Item, error) {
	var item domain.Item
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, detail_uri, price_cents, available_qty
		FROM items
		WHERE id = $1
	`, itemID).Scan(&item.ID, &item.Name, &item.DetailURI, &item.PriceCents, &item.AvailableQty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetItemsByIDs(ctx context.Context, itemIDs []int64) (map[int64]domain.Item, error) {
	result := make(map[int64]domain.Item, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, detail_uri, price_cents, available_qty
		FROM items
		WHERE id = ANY($1)
	`, itemIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.DetailURI, &item.PriceCents, &item.AvailableQty); err != nil {
			return nil, err
		}
		result[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) ListItems(ctx context.Context) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, detail_uri, price_cents, available_qty
		FROM items
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Item, 0, 128)
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.DetailURI, &item.PriceCents, &item.AvailableQty); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (s *Store) CreatePriceHistory(ctx context.Context, entry domain.ItemPriceHistory) error {
	if entry.ID == "" {
		entry.ID = xid.New("ph")
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO item_price_history (id, item_id, old_price_cents, new_price_cents, changed_by, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, entry.ID, entry.ItemID, entry.OldPriceCents, entry.NewPriceCents, entry.ChangedBy, entry.ChangedAt)
	return err
}

func (s *Store) ListPriceHistory(ctx context.Context, itemID int64, limit int) ([]domain.ItemPriceHistory, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, old_price_cents, new_price_cents, changed_by, changed_at
		FROM item_price_history
		WHERE item_id = $1
		ORDER BY changed_at DESC
		LIMIT $2
	`, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]domain.ItemPriceHistory, 0, limit)
	for rows.Next() {
		var entry domain.ItemPriceHistory
		if err := rows.Scan(&entry.ID, &entry.ItemID, &entry.OldPriceCents, &entry.NewPriceCents, &entry.ChangedBy, &entry.ChangedAt); err != nil {
			return nil, err
		}
		entry.ChangedAt = entry.ChangedAt.UTC()
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

// PlaceOrder runs the whole placement under one serializable transaction:
// availability and payment checks, line pricing, the sale discount, the
// shipping snapshot, inventory reservation and the accounting update all
// commit together or not at all.
func (s *Store) PlaceOrder(ctx context.Context, placedBy string, lines []domain.OrderLine, paidCents int64) (*domain.Order, error) {
	if placedBy == "" {
		return nil, store.ErrUnauthorized
	}
	if len(lines) == 0 {
		return nil, store.ErrMalformedInput
	}

	required := make(map[int64]int64, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if line.Qty < 1 {
			return nil, store.ErrInvalidArgument
		}
		if _, seen := required[line.ItemID]; !seen {
			ids = append(ids, line.ItemID)
		}
		required[line.ItemID] += line.Qty
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	itemRows, err := pgTx.QueryContext(ctx, `
		SELECT id, price_cents, available_qty
		FROM items
		WHERE id = ANY($1)
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	priceMap := make(map[int64]int64, len(ids))
	qtyMap := make(map[int64]int64, len(ids))
	for itemRows.Next() {
		var id, priceCents, qty int64
		if err := itemRows.Scan(&id, &priceCents, &qty); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		priceMap[id] = priceCents
		qtyMap[id] = qty
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()

	for itemID, qty := range required {
		available, exists := qtyMap[itemID]
		if !exists {
			return nil, store.ErrNotFound
		}
		if qty > available {
			return nil, store.ErrInsufficientInventory
		}
	}

	grossCents := int64(0)
	itemCount := int64(0)
	priced := make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		line.UnitPriceCents = priceMap[line.ItemID]
		grossCents += line.UnitPriceCents * line.Qty
		itemCount += line.Qty
		priced = append(priced, line)
	}

	if paidCents < grossCents {
		return nil, store.ErrInsufficientPayment
	}

	var saleActive bool
	var discountPercent int64
	err = pgTx.QueryRowContext(ctx, `
		SELECT sale_active, discount_percent
		FROM store_state
		WHERE id = 1
		FOR UPDATE
	`).Scan(&saleActive, &discountPercent)
	if err != nil {
		return nil, err
	}

	discountCents := int64(0)
	if saleActive {
		discountCents = grossCents * discountPercent / 100
	}
	netCents := grossCents - discountCents

	var shippingAddress string
	err = pgTx.QueryRowContext(ctx, `
		SELECT address FROM shipping_addresses WHERE username = $1
	`, placedBy).Scan(&shippingAddress)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	for itemID, qty := range required {
		_, err := pgTx.ExecContext(ctx, `
			UPDATE items
			SET available_qty = available_qty - $1, updated_at = now()
			WHERE id = $2
		`, qty, itemID)
		if err != nil {
			return nil, err
		}
	}

	order := &domain.Order{
		Lines:           priced,
		GrossCents:      grossCents,
		DiscountCents:   discountCents,
		NetCents:        netCents,
		PaidCents:       paidCents,
		Status:          domain.OrderAccepted,
		PlacedBy:        placedBy,
		ShippingAddress: shippingAddress,
		CreatedAt:       time.Now().UTC(),
	}
	err = pgTx.QueryRowContext(ctx, `
		INSERT INTO orders (gross_cents, discount_cents, net_cents, paid_cents, status, placed_by, shipping_address, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, order.GrossCents, order.DiscountCents, order.NetCents, order.PaidCents, order.Status.String(), order.PlacedBy, order.ShippingAddress, order.CreatedAt).Scan(&order.ID)
	if err != nil {
		return nil, err
	}

	for _, line := range priced {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, item_id, qty, unit_price_cents)
			VALUES ($1,$2,$3,$4)
		`, order.ID, line.ItemID, line.Qty, line.UnitPriceCents)
		if err != nil {
			return nil, err
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE store_state
		SET items_sold = items_sold + $1,
			sales_cents = sales_cents + $2,
			discounts_cents = discounts_cents + $3,
			balance_cents = balance_cents + $4
		WHERE id = 1
	`, itemCount, netCents, discountCents, paidCents)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return order, nil
}

func (s *Store) CancelOrder(ctx context.Context, orderID int64, caller string) (*domain.Order, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	order, err := getOrderTx(ctx, pgTx, orderID, true)
	if err != nil {
		return nil, err
	}
	if order.PlacedBy != caller {
		return nil, store.ErrUnauthorized
	}
	if !order.Status.Cancelable() {
		return nil, store.ErrInvalidState
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE orders SET status = $2 WHERE id = $1
	`, orderID, domain.OrderCancelled.String())
	if err != nil {
		return nil, err
	}

	for _, line := range order.Lines {
		_, err := pgTx.ExecContext(ctx, `
			UPDATE items
			SET available_qty = available_qty + $1, updated_at = now()
			WHERE id = $2
		`, line.Qty, line.ItemID)
		if err != nil {
			return nil, err
		}
	}

	// items_sold stays: it is a cumulative units-sold figure.
	_, err = pgTx.ExecContext(ctx, `
		UPDATE store_state
		SET sales_cents = sales_cents - $1,
			discounts_cents = discounts_cents - $2,
			balance_cents = balance_cents - $1
		WHERE id = 1
	`, order.NetCents, order.DiscountCents)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	order.Status = domain.OrderCancelled
	return order, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, next domain.OrderStatus) (*domain.Order, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	order, err := getOrderTx(ctx, pgTx, orderID, true)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanAdvanceTo(next) {
		return nil, store.ErrInvalidState
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE orders SET status = $2 WHERE id = $1
	`, orderID, next.String())
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	order.Status = next
	return order, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	return getOrderTx(ctx, s.db, orderID, false)
}

// querier covers both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getOrderTx(ctx context.Context, q querier, orderID int64, forUpdate bool) (*domain.Order, error) {
	query := `
		SELECT id, gross_cents, discount_cents, net_cents, paid_cents, status, placed_by, shipping_address, created_at
		FROM orders
		WHERE id = $1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var order domain.Order
	var status string
	err := q.QueryRowContext(ctx, query, orderID).Scan(
		&order.ID,
		&order.GrossCents,
		&order.DiscountCents,
		&order.NetCents,
		&order.PaidCents,
		&status,
		&order.PlacedBy,
		&order.ShippingAddress,
		&order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	order.Status, err = domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	order.CreatedAt = order.CreatedAt.UTC()

	rows, err := q.QueryContext(ctx, `
		SELECT item_id, qty, unit_price_cents
		FROM order_lines
		WHERE order_id = $1
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0, 8)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ItemID, &line.Qty, &line.UnitPriceCents); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	order.Lines = lines

	return &order, nil
}

func (s *Store) ListOrdersByPlacer(ctx context.Context, caller string) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, gross_cents, discount_cents, net_cents, paid_cents, status, placed_by, shipping_address, created_at
		FROM orders
		WHERE placed_by = $1
		ORDER BY id ASC
	`, caller)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 16)
	orderIDs := make([]int64, 0, 16)
	for rows.Next() {
		var order domain.Order
		var status string
		if err := rows.Scan(&order.ID, &order.GrossCents, &order.DiscountCents, &order.NetCents, &order.PaidCents, &status, &order.PlacedBy, &order.ShippingAddress, &order.CreatedAt); err != nil {
			return nil, err
		}
		order.Status, err = domain.ParseOrderStatus(status)
		if err != nil {
			return nil, err
		}
		order.CreatedAt = order.CreatedAt.UTC()
		orders = append(orders, order)
		orderIDs = append(orderIDs, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orderIDs) == 0 {
		return orders, nil
	}

	lineRows, err := s.db.QueryContext(ctx, `
		SELECT order_id, item_id, qty, unit_price_cents
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY id ASC
	`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()

	lineMap := make(map[int64][]domain.OrderLine, len(orderIDs))
	for lineRows.Next() {
		var orderID int64
		var line domain.OrderLine
		if err := lineRows.Scan(&orderID, &line.ItemID, &line.Qty, &line.UnitPriceCents); err != nil {
			return nil, err
		}
		lineMap[orderID] = append(lineMap[orderID], line)
	}
	if err := lineRows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Lines = lineMap[orders[i].ID]
	}
	return orders, nil
}

func (s *Store) GetSaleState(ctx context.Context) (domain.SaleState, error) {
	var state domain.SaleState
	err := s.db.QueryRowContext(ctx, `
		SELECT sale_active, discount_percent FROM store_state WHERE id = 1
	`).Scan(&state.Active, &state.DiscountPercent)
	return state, err
}

func (s *Store) ToggleSale(ctx context.Context) (domain.SaleState, error) {
	var state domain.SaleState
	err := s.db.QueryRowContext(ctx, `
		UPDATE store_state
		SET sale_active = NOT sale_active
		WHERE id = 1
		RETURNING sale_active, discount_percent
	`).Scan(&state.Active, &state.DiscountPercent)
	return state, err
}

func (s *Store) SetDiscountPercent(ctx context.Context, pct int64) (domain.SaleState, error) {
	if pct < 0 || pct > 100 {
		return domain.SaleState{}, store.ErrInvalidArgument
	}

	var state domain.SaleState
	err := s.db.QueryRowContext(ctx, `
		UPDATE store_state
		SET discount_percent = $1
		WHERE id = 1
		RETURNING sale_active, discount_percent
	`, pct).Scan(&state.Active, &state.DiscountPercent)
	return state, err
}

func (s *Store) GetStatistics(ctx context.Context) (domain.Statistics, error) {
	var stats domain.Statistics
	err := s.db.QueryRowContext(ctx, `
		SELECT items_sold, sales_cents, discounts_cents FROM store_state WHERE id = 1
	`).Scan(&stats.ItemsSold, &stats.SalesCents, &stats.DiscountsCents)
	return stats, err
}

func (s *Store) WithdrawBalance(ctx context.Context) (int64, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var amount int64
	err = pgTx.QueryRowContext(ctx, `
		SELECT balance_cents FROM store_state WHERE id = 1 FOR UPDATE
	`).Scan(&amount)
	if err != nil {
		return 0, err
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE store_state SET balance_cents = 0 WHERE id = 1
	`)
	if err != nil {
		return 0, err
	}

	if err := pgTx.Commit(); err != nil {
		return 0, err
	}
	return amount, nil
}

func (s *Store) SetShippingAddress(ctx context.Context, caller string, address string) error {
	if caller == "" {
		return store.ErrUnauthorized
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shipping_addresses (username, address, updated_at)
		VALUES ($1,$2,now())
		ON CONFLICT (username)
		DO UPDATE SET address = EXCLUDED.address, updated_at = now()
	`, caller, address)
	return err
}

func (s *Store) GetShippingAddress(ctx context.Context, caller string) (string, error) {
	var address string
	err := s.db.QueryRowContext(ctx, `
		SELECT address FROM shipping_addresses WHERE username = $1
	`, caller).Scan(&address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return address, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	if to.IsZero() {
		to = time.Now().UTC().Add(time.Hour)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidArgument
	}
	if user.Role == "" {
		user.Role = domain.RoleCustomer
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidArgument
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidArgument
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
