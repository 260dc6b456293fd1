// Package jobs runs the platform's background work: retention sweeps over
// the security event log and pre-warming of per-tenant flag decision caches.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/Shakvilla/petroleum-saas-sub005/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRetention prunes security events older than the retention
	// window.
	TaskAuditRetention = "audit:retention"
	// TaskFlagWarmup evaluates and caches flag decisions for active
	// principals ahead of their next request.
	TaskFlagWarmup = "access:flag_warmup"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AuditRetentionPayload bounds the retention sweep.
type AuditRetentionPayload struct {
	RetainDays int `json:"retainDays"`
}

// NewAuditRetentionTask constructs the retention task.
func NewAuditRetentionTask(retainDays int) (*asynq.Task, error) {
	data, err := json.Marshal(AuditRetentionPayload{RetainDays: retainDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}

// FlagWarmupPayload bounds how many principals one warmup run touches.
type FlagWarmupPayload struct {
	Limit int `json:"limit"`
}

// NewFlagWarmupTask constructs the warmup task.
func NewFlagWarmupTask(limit int) (*asynq.Task, error) {
	data, err := json.Marshal(FlagWarmupPayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFlagWarmup, data), nil
}
