package cron

import (
	"context"
	"fmt"

	"github.com/aurellebeauty/aurelle-backend/pkg/logger"
)

// ShipmentStatusSyncJobParams configure the carrier status sync job.
type ShipmentStatusSyncJobParams struct {
	Logger   *logger.Logger
	Shipping statusSyncer
}

type statusSyncer interface {
	SyncStatuses(ctx context.Context) (int, error)
}

// NewShipmentStatusSyncJob builds the job that reconciles carrier tracking
// statuses into shipments and orders.
func NewShipmentStatusSyncJob(params ShipmentStatusSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Shipping == nil {
		return nil, fmt.Errorf("shipping service required")
	}
	return &shipmentStatusSyncJob{
		logg:     params.Logger,
		shipping: params.Shipping,
	}, nil
}

type shipmentStatusSyncJob struct {
	logg     *logger.Logger
	shipping statusSyncer
}

func (j *shipmentStatusSyncJob) Name() string { return "shipment-status-sync" }

func (j *shipmentStatusSyncJob) Run(ctx context.Context) error {
	updated, err := j.shipping.SyncStatuses(ctx)
	if err != nil {
		return fmt.Errorf("shipment status sync: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "shipments_updated", updated)
	j.logg.Info(logCtx, "shipment status sync complete")
	return nil
}
