package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/cadence-engine/internal/api"
	"github.com/LeventeLantos/cadence-engine/internal/client"
	"github.com/LeventeLantos/cadence-engine/internal/config"
	"github.com/LeventeLantos/cadence-engine/internal/delivery"
	"github.com/LeventeLantos/cadence-engine/internal/engine"
	"github.com/LeventeLantos/cadence-engine/internal/events"
	"github.com/LeventeLantos/cadence-engine/internal/jobs"
	"github.com/LeventeLantos/cadence-engine/internal/lock"
	"github.com/LeventeLantos/cadence-engine/internal/model"
	"github.com/LeventeLantos/cadence-engine/internal/ratelimit"
	"github.com/LeventeLantos/cadence-engine/internal/repo"
	"github.com/LeventeLantos/cadence-engine/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	slog.Info("cadence engine starting",
		"addr", cfg.Server.Address,
		"interval", cfg.Scheduler.Interval.String(),
		"batch", cfg.Scheduler.BatchSize,
		"redis", cfg.Redis.Enabled,
	)

	db, err := sql.Open("pgx", cfg.Database.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		log.Fatal(err)
	}
	cancel()

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
	} else {
		slog.Warn("redis disabled: rate limiting and leader election run process-local")
	}

	states := repo.NewPostgresCadenceStateRepo(db)
	messages := repo.NewPostgresMessageRepo(db)
	contacts := repo.NewPostgresContactRepo(db)
	deadLetters := repo.NewPostgresDeadLetterRepo(db)
	leadStatus := repo.NewPostgresLeadStatusRepo(db)
	appointments := repo.NewPostgresAppointmentRepo(db)
	settings := repo.NewPostgresSettingsRepo(db)
	idempotency := repo.NewPostgresIdempotencyRepo(db)

	limiter := ratelimit.New(rdb, func(ctx context.Context, tenantID string) int {
		s, err := settings.Get(ctx, tenantID)
		if err != nil {
			return 1
		}
		return s.Multiplier()
	})

	leader, err := lock.NewLeader(rdb, cfg.Lock.Key, cfg.Lock.TTL)
	if err != nil {
		log.Fatal(err)
	}

	adapters := map[model.Channel]delivery.Adapter{
		model.ChannelSMS: client.NewSMSClient(cfg.SMS.WebhookURL, cfg.SMS.Timeout),
	}
	if cfg.Email.SendGridAPIKey != "" {
		adapters[model.ChannelEmail] = client.NewEmailClient(cfg.Email.SendGridAPIKey, cfg.Email.FromName, cfg.Email.FromEmail)
	} else {
		slog.Warn("SENDGRID_API_KEY not set: email channel disabled")
	}

	emitter := events.NewLogEmitter(slog.Default())

	sender := delivery.NewService(contacts, messages, deadLetters, idempotency, limiter, adapters, emitter, delivery.Config{
		SendTimeout:   cfg.SMS.Timeout,
		MaxPerMinute:  cfg.RateLimit.MaxPerMinute,
		Burst:         cfg.RateLimit.Burst,
		DefaultRegion: cfg.SMS.DefaultRegion,
	})

	eng, err := engine.New(states, leadStatus, appointments, settings, deadLetters, sender, emitter, cfg.Scheduler.BatchSize)
	if err != nil {
		log.Fatal(err)
	}

	sched, err := scheduler.New(cfg.Scheduler.Interval, func(ctx context.Context) {
		if _, err := eng.Tick(ctx, ""); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("tick failed", "error", err)
		}
	}, leader.TryAcquire)
	if err != nil {
		log.Fatal(err)
	}
	sched.Start()

	cron := jobs.NewCronManager(eng, leader.TryAcquire)
	if err := cron.SetupJobs(cfg.Reminders.CronSpec); err != nil {
		log.Fatal(err)
	}
	cron.Start()

	handler := api.NewHandler(sched, eng, messages, limiter, cfg.RateLimit.MaxPerMinute, cfg.RateLimit.Burst)
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: loggingMiddleware(api.Router(handler)),
	}

	go func() {
		slog.Info("http server listening", "addr", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	sched.Stop()
	cron.Stop()
	leader.Release(shutdownCtx)

	slog.Info("shutdown complete")
}

// loggingMiddleware logs each request with its final status code.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
