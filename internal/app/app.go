package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/Golumpa/hoyolab-auto-login/internal/adapters/captcha"
	"github.com/Golumpa/hoyolab-auto-login/internal/adapters/discord"
	"github.com/Golumpa/hoyolab-auto-login/internal/app/worker"
	"github.com/Golumpa/hoyolab-auto-login/internal/config"
	"github.com/Golumpa/hoyolab-auto-login/internal/domain/model"
	"github.com/Golumpa/hoyolab-auto-login/internal/storage/claimlog"
)

type App struct{ cfg config.Config }

func New(cfg config.Config) *App { return &App{cfg: cfg} }

// Run drives the whole process: one solver resolved for the lifetime
// of the process, one claim cycle per schedule tick (or one total in
// run-once mode). Credentials run concurrently; everything inside a
// credential stays sequential.
func (app *App) Run(ctx context.Context) error {
	solver, err := captcha.Select(app.cfg.TwoCaptchaAPIKey, app.cfg.CapSolverAPIKey)
	if err != nil {
		if !errors.Is(err, captcha.ErrNotConfigured) {
			return err
		}
		log.Println("No captcha solver configured; challenged games will be reported as blocked")
		solver = nil
	}

	store, err := claimlog.NewStore(app.cfg.JournalPath)
	if err != nil {
		log.Printf("Claim journal unavailable: %v", err)
		store = nil
	}
	if store != nil {
		defer store.Close()
	}

	webhook := discord.NewWebhook(app.cfg.WebhookURL)

	runCycle := func() []model.SessionReport {
		total := len(app.cfg.Credentials)
		reports := make([]model.SessionReport, total)

		var wg sync.WaitGroup
		for idx, cred := range app.cfg.Credentials {
			wg.Add(1)
			go func(i int, c config.Credential) {
				defer wg.Done()
				reports[i] = worker.Run(ctx, c, i, total, app.cfg, solver, store, webhook)
			}(idx, cred)
		}
		wg.Wait()
		return reports
	}

	if app.cfg.Schedule != "" {
		return app.runScheduled(ctx, runCycle)
	}

	for {
		runCycle()

		if app.cfg.RunOnce {
			log.Println("All done, shutting down")
			return nil
		}

		log.Println("Sleeping for a day...")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(24 * time.Hour):
		}
	}
}

// runScheduled fires one claim cycle every day at the configured local
// time and blocks until shutdown.
func (app *App) runScheduled(ctx context.Context, runCycle func() []model.SessionReport) error {
	if app.cfg.RunOnce {
		log.Println("Ignoring RUN_ONCE since SCHEDULE is set")
	}

	loc := time.UTC
	if app.cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(app.cfg.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}
	}

	at, err := time.Parse("15:04", app.cfg.Schedule)
	if err != nil {
		return fmt.Errorf("invalid schedule time: %w", err)
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(
			gocron.NewAtTime(uint(at.Hour()), uint(at.Minute()), 0),
		)),
		gocron.NewTask(func() { runCycle() }),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule daily job: %w", err)
	}

	log.Printf("Running as daemon, login task will run daily at %s %s", app.cfg.Schedule, loc)
	sched.Start()

	<-ctx.Done()
	return sched.Shutdown()
}
