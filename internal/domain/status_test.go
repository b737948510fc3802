package domain

import (
	"encoding/json"
	"testing"
)

func TestOrderStatusOrdering(t *testing.T) {
	if !(OrderAccepted < OrderDispatched && OrderDispatched < OrderDelivered) {
		t.Fatalf("expected accepted < dispatched < delivered")
	}
}

func TestOrderStatusCancelable(t *testing.T) {
	if !OrderAccepted.Cancelable() {
		t.Fatalf("accepted order must be cancelable")
	}
	for _, status := range []OrderStatus{OrderDispatched, OrderDelivered, OrderCancelled} {
		if status.Cancelable() {
			t.Fatalf("%s order must not be cancelable", status)
		}
	}
}

func TestOrderStatusAdvanceEdges(t *testing.T) {
	if !OrderAccepted.CanAdvanceTo(OrderDispatched) {
		t.Fatalf("accepted must advance to dispatched")
	}
	if !OrderDispatched.CanAdvanceTo(OrderDelivered) {
		t.Fatalf("dispatched must advance to delivered")
	}
	if OrderAccepted.CanAdvanceTo(OrderDelivered) {
		t.Fatalf("skipping dispatched must be rejected")
	}
	if OrderDelivered.CanAdvanceTo(OrderDispatched) {
		t.Fatalf("delivered is terminal")
	}
	if OrderCancelled.CanAdvanceTo(OrderDispatched) {
		t.Fatalf("cancelled is terminal")
	}
}

func TestOrderStatusJSONRoundTrip(t *testing.T) {
	payload, err := json.Marshal(OrderDispatched)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(payload) != `"dispatched"` {
		t.Fatalf("unexpected payload %s", payload)
	}

	var status OrderStatus
	if err := json.Unmarshal([]byte(`"cancelled"`), &status); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if status != OrderCancelled {
		t.Fatalf("expected cancelled, got %s", status)
	}

	if err := json.Unmarshal([]byte(`"shipped"`), &status); err == nil {
		t.Fatalf("expected unknown status to fail")
	}
}
