package postgres

import "context"

// migrate bootstraps the schema. Statements are idempotent so startup can
// run them unconditionally.
func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			detail_uri TEXT NOT NULL DEFAULT '',
			price_cents BIGINT NOT NULL,
			available_qty BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK (price_cents >= 0),
			CHECK (available_qty >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			gross_cents BIGINT NOT NULL,
			discount_cents BIGINT NOT NULL,
			net_cents BIGINT NOT NULL,
			paid_cents BIGINT NOT NULL,
			status TEXT NOT NULL,
			placed_by TEXT NOT NULL,
			shipping_address TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_placed_by ON orders (placed_by)`,
		`CREATE TABLE IF NOT EXISTS order_lines (
			id BIGSERIAL PRIMARY KEY,
			order_id BIGINT NOT NULL REFERENCES orders(id),
			item_id BIGINT NOT NULL REFERENCES items(id),
			qty BIGINT NOT NULL,
			unit_price_cents BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_lines_order_id ON order_lines (order_id)`,
		`CREATE TABLE IF NOT EXISTS item_price_history (
			id TEXT PRIMARY KEY,
			item_id BIGINT NOT NULL REFERENCES items(id),
			old_price_cents BIGINT NOT NULL,
			new_price_cents BIGINT NOT NULL,
			changed_by TEXT NOT NULL,
			changed_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_item_price_history_item_id ON item_price_history (item_id, changed_at DESC)`,
		`CREATE TABLE IF NOT EXISTS shipping_addresses (
			username TEXT PRIMARY KEY,
			address TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			actor_username TEXT NOT NULL,
			actor_role TEXT NOT NULL,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs (created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS app_users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS store_state (
			id SMALLINT PRIMARY KEY CHECK (id = 1),
			sale_active BOOLEAN NOT NULL DEFAULT false,
			discount_percent BIGINT NOT NULL DEFAULT 0,
			items_sold BIGINT NOT NULL DEFAULT 0,
			sales_cents BIGINT NOT NULL DEFAULT 0,
			discounts_cents BIGINT NOT NULL DEFAULT 0,
			balance_cents BIGINT NOT NULL DEFAULT 0
		)`,
		`INSERT INTO store_state (id) VALUES (1) ON CONFLICT (id) DO NOTHING`,
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return err
		}
	}
	return nil
}
