package shipping

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aurellebeauty/aurelle-backend/pkg/db/models"
)

// Repository defines persistence operations for shipments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, shipment *models.Shipment) (*models.Shipment, error)
	FindByID(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
	FindByAWB(ctx context.Context, awb string) (*models.Shipment, error)
	Update(ctx context.Context, shipmentID uuid.UUID, updates map[string]any) error
	ListPendingAWB(ctx context.Context, maxRetries, limit int) ([]models.Shipment, error)
	ListActiveForSync(ctx context.Context, limit int) ([]models.Shipment, error)
}
