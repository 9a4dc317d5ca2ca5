package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/schoolprogress/schoolprogress/cmd/worker/cli"
	"github.com/schoolprogress/schoolprogress/internal/app"
	"github.com/schoolprogress/schoolprogress/internal/auth"
	jobmetrics "github.com/schoolprogress/schoolprogress/internal/jobs"
	"github.com/schoolprogress/schoolprogress/internal/platform/db"
	"github.com/schoolprogress/schoolprogress/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 {
		os.Exit(runCommand(ctx, cfg, logger, os.Args[1:]))
	}

	pool, err := db.New(ctx, cfg.Postgres())
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	repo := auth.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error("ensure auth schema", slog.Any("error", err))
		os.Exit(1)
	}
	pruneJob := jobs.NewPruneSessionsJob(repo, logger, jobmetrics.NewMetrics(nil))

	// Records are kept for one session lifetime after they expire.
	pruneTask, err := jobs.NewPruneSessionsTask(cfg.SessionTTL)
	if err != nil {
		logger.Error("build prune task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: cfg.Redis().Asynq(),
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPruneSessions, Handler: pruneJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: jobs.PruneSessionsCron, Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(3), asynq.Timeout(5 * time.Minute)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

// runCommand handles the manual subcommands: trigger <task>, inspect and
// scheduled.
func runCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	jobsCLI := cli.NewJobsCLI(cfg.Redis().Asynq())
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
	}()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			logger.Error("usage: worker trigger <task>")
			return 2
		}
		info, err := jobsCLI.Trigger(ctx, args[1], 0)
		if err != nil {
			logger.Error("trigger job", slog.String("task", args[1]), slog.Any("error", err))
			return 1
		}
		logger.Info("job enqueued", slog.String("task", info.Type), slog.String("id", info.ID))
	case "inspect":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			logger.Error("inspect queue", slog.Any("error", err))
			return 1
		}
		logger.Info("queue stats",
			slog.String("queue", stats.Queue),
			slog.Int("pending", stats.Pending),
			slog.Int("active", stats.Active),
			slog.Int("scheduled", stats.Scheduled),
			slog.Int("retry", stats.Retry),
		)
	case "scheduled":
		tasks, err := jobsCLI.ListScheduled(ctx, 20)
		if err != nil {
			logger.Error("list scheduled", slog.Any("error", err))
			return 1
		}
		for _, task := range tasks {
			logger.Info("scheduled task", slog.String("id", task.ID), slog.String("type", task.Type), slog.Time("next", task.NextProcessAt))
		}
	default:
		logger.Error("unknown command", slog.String("command", args[0]))
		return 2
	}
	return 0
}
