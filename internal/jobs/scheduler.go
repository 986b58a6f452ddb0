package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks(catalogPath string, refreshInterval time.Duration) error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	log            *slog.Logger
}

func NewScheduler(redisOpt asynq.RedisConnOpt, log *slog.Logger) Scheduler {
	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, nil),
		log:            log,
	}
}

func (s *scheduler) RegisterTasks(catalogPath string, refreshInterval time.Duration) error {
	if refreshInterval <= 0 {
		s.log.InfoContext(context.Background(), "scheduler: catalog refresh disabled")
		return nil
	}

	task, err := NewCatalogRefreshTask(catalogPath)
	if err != nil {
		return err
	}

	spec := fmt.Sprintf("@every %s", refreshInterval)
	if _, err := s.asynqScheduler.Register(spec, task); err != nil {
		return err
	}

	s.log.InfoContext(context.Background(), "scheduler: registered catalog refresh task",
		slog.String("path", catalogPath), slog.Duration("interval", refreshInterval))

	return nil
}

func (s *scheduler) Run() {
	s.log.InfoContext(context.Background(), "scheduler: starting")

	go func() {
		if err := s.asynqScheduler.Run(); err != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", "error", err)
		}
	}()
}

func (s *scheduler) Shutdown() {
	s.log.InfoContext(context.Background(), "scheduler: shutting down")

	s.asynqScheduler.Shutdown()
}
