package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"agroforecast/internal/store"
)

// Runner is the pipeline surface the scheduler drives.
type Runner interface {
	RunOnce(ctx context.Context) (store.Run, error)
	Retrain(ctx context.Context) error
}

// jobTimeout bounds one scheduled run, training included.
const jobTimeout = 30 * time.Minute

// Scheduler runs the daily forecast pipeline and the weekly retraining.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	pipe       Runner
	forecastAt string
	retrainAt  string
}

// New creates a Scheduler with the given HH:MM run times (UTC).
func New(pipe Runner, forecastAt, retrainAt string) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler:  s,
		pipe:       pipe,
		forecastAt: forecastAt,
		retrainAt:  retrainAt,
	}
}

// Start schedules the jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(1).Day().At(s.forecastAt).Do(func() {
		log.Println("scheduler: running daily forecast job")

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if _, err := s.pipe.RunOnce(ctx); err != nil {
			log.Printf("scheduler: daily forecast failed: %v", err)
			return
		}
		log.Println("scheduler: completed daily forecast job")
	})
	if err != nil {
		return err
	}

	_, err = s.scheduler.Every(1).Sunday().At(s.retrainAt).Do(func() {
		log.Println("scheduler: running weekly retraining job")

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if err := s.pipe.Retrain(ctx); err != nil {
			log.Printf("scheduler: weekly retraining failed: %v", err)
			return
		}
		log.Println("scheduler: completed weekly retraining job")
	})
	if err != nil {
		return err
	}

	log.Printf("scheduler: daily forecast at %s, retraining Sunday at %s", s.forecastAt, s.retrainAt)
	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
