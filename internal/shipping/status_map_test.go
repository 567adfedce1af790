package shipping

import (
	"testing"

	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
)

func TestMapCarrierStatus(t *testing.T) {
	cases := []struct {
		raw      string
		shipment enums.ShipmentStatus
		known    bool
	}{
		{"PICKED UP", enums.ShipmentStatusShipped, true},
		{"picked up", enums.ShipmentStatusShipped, true},
		{"Picked_Up", enums.ShipmentStatusShipped, true},
		{"In Transit", enums.ShipmentStatusInTransit, true},
		{"OUT FOR DELIVERY", enums.ShipmentStatusInTransit, true},
		{"Delivered", enums.ShipmentStatusDelivered, true},
		{"RTO INITIATED", enums.ShipmentStatusCancelled, true},
		{"CANCELED", enums.ShipmentStatusCancelled, true},
		{"  delivered  ", enums.ShipmentStatusDelivered, true},
		{"MANIFEST GENERATED", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			status, known := MapCarrierStatus(tc.raw)
			if known != tc.known {
				t.Fatalf("expected known=%v for %q", tc.known, tc.raw)
			}
			if known && status != tc.shipment {
				t.Fatalf("expected shipment status %s, got %s", tc.shipment, status)
			}
		})
	}
}

func TestEveryMappedShipmentStatusIsValid(t *testing.T) {
	for raw, status := range carrierStatusTable {
		if !status.IsValid() {
			t.Fatalf("mapping for %q targets invalid shipment status %q", raw, status)
		}
	}
}
