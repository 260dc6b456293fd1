package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shakvilla/petroleum-saas-sub005/internal/access"
	jobmetrics "github.com/Shakvilla/petroleum-saas-sub005/internal/jobs"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/tenant"
)

// FlagWarmupJob evaluates flag decisions for active principals and writes
// them into the decision cache, so the first request after a flag change does
// not pay the snapshot cost. Cache keys stay per tenant and principal; the
// warmup never produces an entry a request could not produce itself.
type FlagWarmupJob struct {
	Pool    *pgxpool.Pool
	Flags   *access.FlagService
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewFlagWarmupJob initialises the warmup handler.
func NewFlagWarmupJob(pool *pgxpool.Pool, flags *access.FlagService, logger *slog.Logger, metrics *jobmetrics.Metrics) *FlagWarmupJob {
	return &FlagWarmupJob{Pool: pool, Flags: flags, Logger: logger, Metrics: metrics}
}

// Handle executes one warmup pass.
func (j *FlagWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("flag warmup: handler not configured")
	}
	var payload FlagWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 {
		payload.Limit = 500
	}

	tracker := j.metrics().Track(TaskFlagWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("limit", payload.Limit))
	logger.Info("starting flag warmup")

	warmed, err := j.warm(ctx, payload.Limit)
	if err != nil {
		resultErr = err
		logger.Error("warmup failed", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddWarmed(warmed)

	logger.Info("completed flag warmup", slog.Int("warmed", warmed))
	return resultErr
}

func (j *FlagWarmupJob) warm(ctx context.Context, limit int) (int, error) {
	if j.Pool == nil || j.Flags == nil {
		return 0, errors.New("flag warmup: dependencies not configured")
	}
	rows, err := j.Pool.Query(ctx, `
		SELECT id, tenant_id, role
		FROM principals
		WHERE active
		ORDER BY tenant_id, id
		LIMIT $1`, limit)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type target struct {
		principal access.Principal
		tenantID  string
	}
	targets := make([]target, 0, limit)
	for rows.Next() {
		var tg target
		if err := rows.Scan(&tg.principal.ID, &tg.tenantID, &tg.principal.Role); err != nil {
			return 0, err
		}
		tg.principal.TenantID = tg.tenantID
		targets = append(targets, tg)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	warmed := 0
	for _, tg := range targets {
		tc := tenant.Context{ID: tg.tenantID, Source: tenant.SourcePath}
		ac, err := j.Flags.BuildContext(ctx, tc, &tg.principal)
		if err != nil {
			return warmed, err
		}
		if _, err := j.Flags.EnabledFlags(ctx, ac); err != nil {
			return warmed, err
		}
		warmed++
	}
	return warmed, nil
}

func (j *FlagWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskFlagWarmup))
	}
	return slog.Default().With(slog.String("job", TaskFlagWarmup))
}

func (j *FlagWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
