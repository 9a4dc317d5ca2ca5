package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/schoolprogress/schoolprogress/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPruneSessions removes expired login session records.
	TaskPruneSessions = "auth:prune_sessions"
	// PruneSessionsCron runs the prune job at the top of every hour.
	PruneSessionsCron = "0 * * * *"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// PruneSessionsPayload configures a prune run.
type PruneSessionsPayload struct {
	// GraceSeconds keeps records that expired less than this long ago.
	GraceSeconds int64 `json:"grace_seconds"`
}

// NewPruneSessionsTask builds a prune task.
func NewPruneSessionsTask(grace time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(PruneSessionsPayload{GraceSeconds: int64(grace / time.Second)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPruneSessions, body, asynq.Queue(QueueDefault)), nil
}

// SessionPruner deletes login records that expired before cutoff.
type SessionPruner interface {
	PruneExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// PruneSessionsJob handles TaskPruneSessions.
type PruneSessionsJob struct {
	Pruner  SessionPruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewPruneSessionsJob wires dependencies for the prune handler.
func NewPruneSessionsJob(pruner SessionPruner, logger *slog.Logger, metrics *jobmetrics.Metrics) *PruneSessionsJob {
	return &PruneSessionsJob{
		Pruner:  pruner,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes prune tasks.
func (j *PruneSessionsJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pruner == nil {
		return errors.New("prune sessions: handler not configured")
	}
	var payload PruneSessionsPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.GraceSeconds < 0 {
		payload.GraceSeconds = 0
	}

	tracker := j.metrics().Track(TaskPruneSessions)
	cutoff := j.now().Add(-time.Duration(payload.GraceSeconds) * time.Second)
	removed, err := j.Pruner.PruneExpiredSessions(ctx, cutoff)
	if err != nil {
		j.logger().Error("prune expired sessions", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics().AddPruned(removed)
	j.logger().Info("pruned expired sessions", slog.Int64("removed", removed), slog.Time("cutoff", cutoff))
	return tracker.End(nil)
}

func (j *PruneSessionsJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPruneSessions))
	}
	return slog.Default().With(slog.String("job", TaskPruneSessions))
}

func (j *PruneSessionsJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *PruneSessionsJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
