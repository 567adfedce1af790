package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aurellebeauty/aurelle-backend/pkg/db/models"
)

// Repository defines persistence operations for payment intents.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, intent *models.PaymentIntent) (*models.PaymentIntent, error)
	FindByID(ctx context.Context, intentID uuid.UUID) (*models.PaymentIntent, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentIntent, error)
	Consume(ctx context.Context, intentID uuid.UUID, gatewayPaymentID string) (bool, error)
	MarkFailed(ctx context.Context, intentID uuid.UUID, reason string) error
}
