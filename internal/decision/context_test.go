package decision

import (
	"testing"
	"time"
)

func TestContextObserveCachesCarrierAndCustomer(t *testing.T) {
	dctx, err := NewContext()
	if err != nil {
		t.Fatalf("new context: %v", err)
	}

	now := time.Now()
	dctx.observe(Input{
		Type:     TypeShipment,
		Priority: PriorityMedium,
		Data: map[string]any{
			"carrier_id":           "carrier-9",
			"carrier_on_time_rate": 0.97,
			"customer_id":          "cust-4",
			"preferred_carrier":    "carrier-9",
		},
	}, now)
	dctx.observe(Input{
		Type:     TypeShipment,
		Priority: PriorityMedium,
		Data:     map[string]any{"carrier_id": "carrier-9"},
	}, now)

	metrics, ok := dctx.Carrier("carrier-9")
	if !ok {
		t.Fatal("expected carrier metrics")
	}
	if metrics.Shipments != 2 {
		t.Fatalf("expected 2 shipments, got %d", metrics.Shipments)
	}
	if metrics.OnTimeRate != 0.97 {
		t.Fatalf("expected on-time rate 0.97, got %v", metrics.OnTimeRate)
	}

	prefs, ok := dctx.Customer("cust-4")
	if !ok {
		t.Fatal("expected customer preferences")
	}
	if prefs.PreferredCarrier != "carrier-9" {
		t.Fatalf("unexpected preferred carrier %q", prefs.PreferredCarrier)
	}
}

func TestContextHistoryEvictsOldest(t *testing.T) {
	dctx, err := NewContext()
	if err != nil {
		t.Fatalf("new context: %v", err)
	}

	base := time.Now()
	for i := 0; i < contextHistoryCap+10; i++ {
		kind := TypeShipment
		if i < 10 {
			kind = TypeAnalytics
		}
		dctx.observe(Input{Type: kind, Priority: PriorityLow}, base.Add(time.Duration(i)*time.Second))
	}

	if got := dctx.historyLen(); got != contextHistoryCap {
		t.Fatalf("expected history %d, got %d", contextHistoryCap, got)
	}
	// The analytics events were the oldest and must be gone.
	if got := dctx.recentOfType(TypeAnalytics); got != 0 {
		t.Fatalf("expected evicted analytics events, got %d", got)
	}
	if got := dctx.recentOfType(TypeShipment); got != contextHistoryCap {
		t.Fatalf("expected %d shipment events, got %d", contextHistoryCap, got)
	}
}
