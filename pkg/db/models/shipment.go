package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
)

// Shipment is the 1:1 courier record for an order.
type Shipment struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_shipments_order"`
	Status            enums.ShipmentStatus `gorm:"column:status;type:shipment_status;not null;default:'none'"`
	CarrierOrderID    *string              `gorm:"column:carrier_order_id"`
	CarrierShipmentID *string              `gorm:"column:carrier_shipment_id"`
	AWBCode           *string              `gorm:"column:awb_code"`
	CourierName       *string              `gorm:"column:courier_name"`
	TrackingURL       *string              `gorm:"column:tracking_url"`
	LabelURL          *string              `gorm:"column:label_url"`
	AWBError          *string              `gorm:"column:awb_error"`
	AWBErrorCode      *string              `gorm:"column:awb_error_code"`
	AWBRetryCount     int                  `gorm:"column:awb_retry_count;not null;default:0"`
	LastAWBAttemptAt  *time.Time           `gorm:"column:last_awb_attempt_at"`
	CarrierStatus     *string              `gorm:"column:carrier_status"`
	ShippedAt         *time.Time           `gorm:"column:shipped_at"`
	DeliveredAt       *time.Time           `gorm:"column:delivered_at"`
	CancelledAt       *time.Time           `gorm:"column:cancelled_at"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
