package cron

import (
	"context"
	"fmt"

	"github.com/aurellebeauty/aurelle-backend/pkg/logger"
)

// AWBRetryJobParams configure the AWB retry job.
type AWBRetryJobParams struct {
	Logger   *logger.Logger
	Shipping awbRetrier
}

type awbRetrier interface {
	RetryPendingAWBs(ctx context.Context) (int, error)
}

// NewAWBRetryJob builds the job that retries pending AWB assignments.
func NewAWBRetryJob(params AWBRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Shipping == nil {
		return nil, fmt.Errorf("shipping service required")
	}
	return &awbRetryJob{
		logg:     params.Logger,
		shipping: params.Shipping,
	}, nil
}

type awbRetryJob struct {
	logg     *logger.Logger
	shipping awbRetrier
}

func (j *awbRetryJob) Name() string { return "awb-retry" }

func (j *awbRetryJob) Run(ctx context.Context) error {
	assigned, err := j.shipping.RetryPendingAWBs(ctx)
	if err != nil {
		return fmt.Errorf("awb retry: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "awbs_assigned", assigned)
	j.logg.Info(logCtx, "awb retry pass complete")
	return nil
}
