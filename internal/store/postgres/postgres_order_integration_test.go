package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"tokoku/backend/internal/domain"
)

func TestPlaceAndCancelOrderRoundTrip(t *testing.T) {
	databaseURL := os.Getenv("TOKOKU_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TOKOKU_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	placedBy := fmt.Sprintf("customer-it-%d", stamp)

	item, err := s.CreateItem(ctx, domain.Item{
		Name:         fmt.Sprintf("Item IT %d", stamp),
		DetailURI:    "ipfs://item/it",
		PriceCents:   12000,
		AvailableQty: 10,
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM order_lines WHERE item_id = $1`, item.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM orders WHERE placed_by = $1`, placedBy)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, item.ID)
	})

	order, err := s.PlaceOrder(ctx, placedBy, []domain.OrderLine{
		{ItemID: item.ID, Qty: 3},
	}, 36000)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if order.GrossCents != 36000 || order.NetCents != 36000 {
		t.Fatalf("unexpected totals: gross=%d net=%d", order.GrossCents, order.NetCents)
	}

	got, err := s.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.AvailableQty != 7 {
		t.Fatalf("expected qty 7 after reservation, got %d", got.AvailableQty)
	}

	cancelled, err := s.CancelOrder(ctx, order.ID, placedBy)
	if err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if cancelled.Status != domain.OrderCancelled {
		t.Fatalf("expected cancelled status, got %s", cancelled.Status)
	}

	got, err = s.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item after cancel: %v", err)
	}
	if got.AvailableQty != 10 {
		t.Fatalf("expected qty restored to 10, got %d", got.AvailableQty)
	}
}
