package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mindmate/scheduling/internal/api"
	"github.com/mindmate/scheduling/internal/booking"
	"github.com/mindmate/scheduling/internal/config"
	"github.com/mindmate/scheduling/internal/db"
	"github.com/mindmate/scheduling/internal/directory"
	"github.com/mindmate/scheduling/internal/marketplace"
	"github.com/mindmate/scheduling/internal/match"
	"github.com/mindmate/scheduling/internal/metrics"
	"github.com/mindmate/scheduling/internal/notify"
	"github.com/mindmate/scheduling/internal/slot"
	"github.com/mindmate/scheduling/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.Env)
	logger.Info("api-server starting", "env", cfg.Env, "http_port", cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dir := directory.NewMemoryDirectory()
	slots := slot.NewStore()

	var routerCfg api.RouterConfig

	if cfg.MemoryFixtures {
		n := loadFixtures(dir, slots)
		logger.Info("running on in-memory fixtures", "specialists", n)
	} else {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			logger.Error("postgres connection error", "error", err)
			os.Exit(1)
		}
		defer pgPool.Close()
		logger.Info("connected to Postgres")

		repo := directory.NewPgRepository(pgPool)
		if err := hydrate(rootCtx, repo, dir, slots); err != nil {
			logger.Error("catalog hydration error", "error", err)
			os.Exit(1)
		}
		routerCfg.PgPool = pgPool
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.RedisAddr != "" {
		rdb, err := notify.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Warn("redis unavailable, falling back to log notifier", "error", err)
		} else {
			defer rdb.Close()
			notifier = notify.NewRedisNotifier(rdb, notify.DefaultStream, logger)
			routerCfg.Redis = rdb
			logger.Info("connected to Redis")
		}
	}

	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)

	svc := booking.NewService(slots, booking.NewLedger(), dir, notifier, bookingMetrics, logger, booking.Config{
		DefaultHoldTTL:     cfg.HoldTTL,
		CancelNoticeWindow: cfg.CancelNoticeWindow,
	})

	matcher := match.New(match.Config{
		ExperienceCeilingYears: cfg.ExperienceCeilingYears,
		AvailabilityHorizon:    cfg.AvailabilityHorizon,
	})

	facade := marketplace.New(dir, slots, matcher, svc, bookingMetrics)

	reaper := booking.NewReaper(slots, cfg.ReaperInterval, notifier, bookingMetrics, logger)
	reaper.Start(rootCtx)
	defer reaper.Stop()

	routerCfg.Facade = facade
	routerCfg.Logger = logger
	routerCfg.Env = cfg.Env
	routerCfg.Version = version

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("api-server stopped")
}

const version = "0.1.0"

// hydrate loads the specialist catalog and upcoming slot definitions from
// Postgres into the in-process stores.
func hydrate(ctx context.Context, repo *directory.PgRepository, dir *directory.MemoryDirectory, slots *slot.Store) error {
	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	specialists, err := repo.Snapshot(loadCtx)
	if err != nil {
		return err
	}
	for _, s := range specialists {
		dir.Put(s)
	}

	defs, err := repo.LoadSlots(loadCtx, time.Now())
	if err != nil {
		return err
	}
	for _, d := range defs {
		slots.Add(slot.Slot{
			ID:           d.ID,
			SpecialistID: d.SpecialistID,
			Start:        d.Start,
			End:          d.End,
		})
	}
	return nil
}

// loadFixtures populates the stores with generated data for local
// development without Postgres. Returns the specialist count.
func loadFixtures(dir *directory.MemoryDirectory, slots *slot.Store) int {
	const count = 25

	specializations := []string{
		"anxiety", "depression", "trauma", "relationships",
		"stress", "grief", "addiction", "adhd",
	}
	languages := []string{"English", "Urdu", "Punjabi", "Sindhi", "Pashto"}
	regions := []string{"Karachi", "Lahore", "Islamabad", "Peshawar", "Quetta"}
	modes := [][]directory.ConsultationMode{
		{directory.ModeOnline},
		{directory.ModeInPerson},
		{directory.ModeHybrid},
	}

	now := time.Now()
	for i := 0; i < count; i++ {
		s := directory.Specialist{
			ID:              uuid.New(),
			FullName:        gofakeit.Name(),
			SpecialistType:  "psychologist",
			Specializations: pick(specializations, gofakeit.Number(1, 3)),
			Languages:       pick(languages, gofakeit.Number(1, 2)),
			Rating:          gofakeit.Float64Range(3.0, 5.0),
			YearsExperience: gofakeit.Number(1, 20),
			Modes:           modes[gofakeit.Number(0, len(modes)-1)],
			SessionFee:      float64(gofakeit.Number(15, 80)) * 100,
			Region:          regions[gofakeit.Number(0, len(regions)-1)],
			Status:          directory.VerificationApproved,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		dir.Put(s)

		// One week of 9-to-5 hourly slots per specialist.
		for day := 1; day <= 7; day++ {
			base := now.AddDate(0, 0, day).Truncate(24 * time.Hour)
			for hour := 9; hour < 17; hour++ {
				start := base.Add(time.Duration(hour) * time.Hour)
				slots.Add(slot.Slot{
					ID:           uuid.New(),
					SpecialistID: s.ID,
					Start:        start,
					End:          start.Add(time.Hour),
				})
			}
		}
	}
	return count
}

func pick(from []string, n int) []string {
	if n >= len(from) {
		n = len(from)
	}
	out := make([]string, 0, n)
	seen := map[int]bool{}
	for len(out) < n {
		idx := gofakeit.Number(0, len(from)-1)
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, from[idx])
	}
	return out
}
