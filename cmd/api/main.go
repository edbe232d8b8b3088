package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/patientvoice/backend/internal/adapters/cache"
	"github.com/patientvoice/backend/internal/adapters/database"
	"github.com/patientvoice/backend/internal/adapters/memory"
	"github.com/patientvoice/backend/internal/api/handlers"
	"github.com/patientvoice/backend/internal/api/routes"
	"github.com/patientvoice/backend/internal/application/services"
	"github.com/patientvoice/backend/internal/domain/providers"
	"github.com/patientvoice/backend/internal/domain/repositories"
	"github.com/patientvoice/backend/internal/infrastructure/clients/postgres"
	"github.com/patientvoice/backend/internal/infrastructure/clients/redis"
	"github.com/patientvoice/backend/internal/infrastructure/observability"
	"github.com/patientvoice/backend/pkg/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:   "survey-api",
		Short: "Patient survey ingestion and statistics API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(migrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply pending migrations before serving (postgres driver only)")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, migrator *postgres.Migrator) error {
				count, err := migrator.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, migrator *postgres.Migrator) error {
				statuses, err := migrator.Status(ctx)
				if err != nil {
					return err
				}
				for _, status := range statuses {
					state := "pending"
					if status.Applied && status.AppliedAt != nil {
						state = "applied " + status.AppliedAt.Format(time.RFC3339)
					}
					fmt.Printf("%03d  %-30s %s\n", status.Version, status.Name, state)
				}
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(fn func(ctx context.Context, migrator *postgres.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	client, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer client.Close()

	return fn(context.Background(), postgres.NewMigrator(client.DB()))
}

// storage bundles the repositories of the selected driver.
type storage struct {
	surveys   repositories.SurveyRepository
	stats     repositories.SurveyStatsRepository
	queryLogs repositories.StatsQueryLogRepository
	close     func() error
}

func openStorage(ctx context.Context, cfg *config.Config, migrate bool) (*storage, error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn().Msg("using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return &storage{surveys: store, stats: store, queryLogs: store, close: func() error { return nil }}, nil
	}

	client, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	if migrate {
		count, err := postgres.NewMigrator(client.DB()).Up(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		log.Info().Int("applied", count).Msg("database migrations applied")
	}

	return &storage{
		surveys:   database.NewSurveyAdapter(client),
		stats:     database.NewSurveyStatsAdapter(client),
		queryLogs: database.NewStatsQueryLogAdapter(client),
		close:     client.Close,
	}, nil
}

// openStatsCache returns nil when Redis is disabled or unreachable; statistics are
// then computed on every request.
func openStatsCache(cfg *config.Config) (providers.CacheProvider, func()) {
	if !cfg.Redis.Enabled {
		return nil, func() {}
	}

	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, statistics are computed without cache")
		return nil, func() {}
	}
	return cache.NewRedisAdapter(redisClient, "patientvoice:"), func() { redisClient.Close() }
}

func runServer(migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	store, err := openStorage(ctx, cfg, migrate)
	if err != nil {
		return err
	}
	defer store.close()

	statsCache, closeCache := openStatsCache(cfg)
	defer closeCache()

	statsService := services.NewSurveyStatsService(store.stats, statsCache, cfg.Stats.CacheTTL, metrics)
	surveyService := services.NewSurveyService(store.surveys, statsService, metrics)
	auditService := services.NewStatsAuditService(store.queryLogs, cfg.Stats.AuditTimeout, metrics)

	router := routes.NewRouter(
		handlers.NewSurveyHandler(surveyService),
		handlers.NewStatsHandler(statsService, auditService),
		auditService,
		cfg.Server.AllowedOrigins,
		metrics,
	)

	server := &http.Server{
		Addr:              cfg.Server.ServerAddr(),
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("driver", cfg.Database.Driver).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exited")
	return nil
}
