package shipping

import (
	"strings"

	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
)

// carrierStatusTable is the closed set of carrier statuses the platform acts
// on, each resolving to a coarse shipment status. Statuses outside this table
// are recorded but change nothing.
var carrierStatusTable = map[string]enums.ShipmentStatus{
	"PICKED UP":                  enums.ShipmentStatusShipped,
	"SHIPPED":                    enums.ShipmentStatusShipped,
	"IN TRANSIT":                 enums.ShipmentStatusInTransit,
	"REACHED AT DESTINATION HUB": enums.ShipmentStatusInTransit,
	"OUT FOR DELIVERY":           enums.ShipmentStatusInTransit,
	"DELIVERED":                  enums.ShipmentStatusDelivered,
	"RTO INITIATED":              enums.ShipmentStatusCancelled,
	"RTO DELIVERED":              enums.ShipmentStatusCancelled,
	"CANCELED":                   enums.ShipmentStatusCancelled,
	"CANCELLED":                  enums.ShipmentStatusCancelled,
}

// MapCarrierStatus resolves a raw carrier status into a coarse shipment status.
func MapCarrierStatus(raw string) (enums.ShipmentStatus, bool) {
	status, ok := carrierStatusTable[normalizeCarrierStatus(raw)]
	return status, ok
}

func normalizeCarrierStatus(raw string) string {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "_", " ")
	return strings.Join(strings.Fields(normalized), " ")
}
