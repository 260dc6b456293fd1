package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/Shakvilla/petroleum-saas-sub005/internal/access"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/platform/httpx"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/tenant"
)

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler wires one task type to its handler during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Logger    *slog.Logger
	Handlers  []TaskHandler
	Cron      []CronRegistration
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, err
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: cfg.Logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client}, nil
}

// EnqueueAuditRetention enqueues an immediate retention sweep.
func (c *Client) EnqueueAuditRetention(ctx context.Context, retainDays int) (*asynq.TaskInfo, error) {
	task, err := NewAuditRetentionTask(retainDays)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// EnqueueFlagWarmup enqueues an immediate decision cache warmup.
func (c *Client) EnqueueFlagWarmup(ctx context.Context, limit int) (*asynq.TaskInfo, error) {
	task, err := NewFlagWarmupTask(limit)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// Enqueuer submits jobs on demand. *Client satisfies it.
type Enqueuer interface {
	EnqueueAuditRetention(ctx context.Context, retainDays int) (*asynq.TaskInfo, error)
	EnqueueFlagWarmup(ctx context.Context, limit int) (*asynq.TaskInfo, error)
}

// Handler exposes HTTP endpoints for job observability and on-demand runs.
type Handler struct {
	inspector *asynq.Inspector
	enqueuer  Enqueuer
	engine    *access.Engine
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints.
func NewHandler(inspector *asynq.Inspector, enqueuer Enqueuer, engine *access.Engine, logger *slog.Logger) *Handler {
	return &Handler{inspector: inspector, enqueuer: enqueuer, engine: engine, logger: logger}
}

// MountRoutes attaches job routes. The run endpoints enqueue a job immediately
// instead of waiting for the next cron slot.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
	r.Post("/run/audit-retention", h.runAuditRetention)
	r.Post("/run/flag-warmup", h.runFlagWarmup)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	pending := 0
	queueName := QueueDefault
	if h.inspector != nil {
		info, err := h.inspector.GetQueueInfo(QueueDefault)
		if err != nil {
			if h.logger != nil {
				h.logger.Warn("jobs health", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "queue inspection failed")
			return
		}
		if info != nil {
			pending = int(info.Pending)
			queueName = info.Queue
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"queue": queueName, "pending": pending})
}

func (h *Handler) runAuditRetention(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	var payload AuditRetentionPayload
	if !h.decodePayload(w, r, &payload) {
		return
	}
	info, err := h.enqueuer.EnqueueAuditRetention(r.Context(), payload.RetainDays)
	if err != nil {
		h.enqueueFailed(w, TaskAuditRetention, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"id": info.ID, "queue": info.Queue, "type": info.Type})
}

func (h *Handler) runFlagWarmup(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	var payload FlagWarmupPayload
	if !h.decodePayload(w, r, &payload) {
		return
	}
	info, err := h.enqueuer.EnqueueFlagWarmup(r.Context(), payload.Limit)
	if err != nil {
		h.enqueueFailed(w, TaskFlagWarmup, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"id": info.ID, "queue": info.Queue, "type": info.Type})
}

// authorize limits run endpoints to principals holding the explicit admin
// grant on settings, the same grant that opens the platform admin surface.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) bool {
	principal := access.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing principal")
		return false
	}
	ac := access.Context{
		Tenant:    tenant.Context{ID: principal.TenantID, Source: tenant.SourcePath},
		Principal: principal,
	}
	if err := h.engine.ValidateAccess(ac, "settings", access.ActionAdmin); err != nil {
		httpx.ProblemCode(w, http.StatusForbidden, "Forbidden", httpx.CodeAccessDenied, "not permitted")
		return false
	}
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "queue not configured")
		return false
	}
	return true
}

// decodePayload reads an optional JSON body; an absent body keeps the
// payload's zero values so the job falls back to its defaults.
func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request, target any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed payload")
		return false
	}
	return true
}

func (h *Handler) enqueueFailed(w http.ResponseWriter, taskType string, err error) {
	if h.logger != nil {
		h.logger.Error("enqueue failed", slog.String("type", taskType), slog.Any("error", err))
	}
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
