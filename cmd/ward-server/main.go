package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wardsys/ward/internal/config"
	"github.com/wardsys/ward/internal/domain/appointment"
	"github.com/wardsys/ward/internal/domain/hospital"
	"github.com/wardsys/ward/internal/domain/patient"
	"github.com/wardsys/ward/internal/domain/staff"
	"github.com/wardsys/ward/internal/platform/auth"
	"github.com/wardsys/ward/internal/platform/db"
	"github.com/wardsys/ward/internal/platform/metrics"
	"github.com/wardsys/ward/internal/platform/middleware"
	"github.com/wardsys/ward/internal/platform/websocket"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "ward-server",
		Short: "Ward admissions API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(staffCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the ward API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// connect loads the config and opens the pool shared by the maintenance
// commands.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant schema and apply the ward migrations to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			dir, _ := cmd.Flags().GetString("dir")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: tenant_%s\n", name)
			if err := db.CreateTenantSchema(ctx, pool, name, dir); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")
	createCmd.Flags().String("dir", "./migrations", "Path to migrations directory")

	cmd.AddCommand(createCmd)
	return cmd
}

func staffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage staff accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account in a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			req := staff.CreateRequest{}
			req.Login, _ = cmd.Flags().GetString("login")
			req.Password, _ = cmd.Flags().GetString("password")
			req.DisplayName, _ = cmd.Flags().GetString("name")
			req.Role, _ = cmd.Flags().GetString("role")
			req.DoctorID, _ = cmd.Flags().GetInt64("doctor-id")

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if tenant == "" {
				tenant = cfg.DefaultTenant
			}
			ctx, conn, err := db.AcquireTenant(ctx, pool, tenant)
			if err != nil {
				return err
			}
			defer conn.Release()

			logger := newLogger(cfg)
			svc := staff.NewService(staff.NewRepoPG(pool), jwtConfig(cfg, nil), logger)
			a, err := svc.Create(ctx, req)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s account %q (id %d) in tenant %s\n", a.Role, a.Login, a.ID, tenant)
			return nil
		},
	}
	createCmd.Flags().String("tenant", "", "Tenant identifier (defaults to DEFAULT_TENANT)")
	createCmd.Flags().String("login", "", "Login name")
	createCmd.Flags().String("password", "", "Initial password")
	createCmd.Flags().String("name", "", "Display name")
	createCmd.Flags().String("role", auth.RoleRegistrar, "Role: admin, doctor or registrar")
	createCmd.Flags().Int64("doctor-id", 0, "Doctor record for doctor accounts")

	cmd.AddCommand(createCmd)
	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(cfg.ZerologLevel()).With().Timestamp().Logger()
}

func jwtConfig(cfg *config.Config, revoked *auth.TokenRevocationStore) auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: []byte(cfg.JWTSecret),
		TTL:        cfg.JWTTTL,
		Revoked:    revoked,
	}
}

// services bundles the wired domain services the HTTP layer needs.
type services struct {
	hospital    *hospital.Service
	patient     *patient.Service
	appointment *appointment.Service
	staff       *staff.Service
	feed        *websocket.Hub
}

func newServices(pool *pgxpool.Pool, jwtCfg auth.JWTConfig, m *metrics.Collector, logger zerolog.Logger) *services {
	feed := websocket.NewHub(logger)
	tx := db.NewTransactor(pool)

	patientRepo := patient.NewRepoPG(pool)
	apptRepo := appointment.NewRepoPG(pool)

	patientSvc := patient.NewService(patientRepo, tx, m, logger)
	hospitalSvc := hospital.NewService(hospital.NewRepoPG(pool), patientRepo, apptRepo, tx, m, logger)
	patientSvc.SetReleaser(hospitalSvc)
	apptSvc := appointment.NewService(apptRepo, patientSvc, tx, m, logger)

	patientSvc.SetPublisher(feed)
	hospitalSvc.SetPublisher(feed)
	apptSvc.SetPublisher(feed)

	return &services{
		hospital:    hospitalSvc,
		patient:     patientSvc,
		appointment: apptSvc,
		staff:       staff.NewService(staff.NewRepoPG(pool), jwtCfg, logger),
		feed:        feed,
	}
}

// newRouter builds the echo instance with the global middleware chain, the
// public endpoints and the tenant-scoped /api/v1 group.
func newRouter(cfg *config.Config, pool *pgxpool.Pool, svcs *services, jwtCfg auth.JWTConfig, m *metrics.Collector, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	if cfg.MetricsEnabled {
		e.Use(m.Middleware())
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	authMW := auth.JWTMiddleware(jwtCfg)
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware(jwtCfg, cfg.DefaultTenant)
	}

	// auth runs first so the limiter can key on the session tenant
	apiV1 := e.Group("/api/v1",
		authMW,
		middleware.RateLimit(rateLimitCfg),
		db.TenantMiddleware(pool, cfg.DefaultTenant),
		middleware.Audit(logger, middleware.AuditRecorderFunc(func(e middleware.AuditEntry) error {
			m.Access(e.Resource, e.Action, e.Role)
			return nil
		})),
	)

	staff.NewHandler(svcs.staff).RegisterRoutes(apiV1)
	hospital.NewHandler(svcs.hospital).RegisterRoutes(apiV1)
	patient.NewHandler(svcs.patient).RegisterRoutes(apiV1)
	appointment.NewHandler(svcs.appointment).RegisterRoutes(apiV1)
	websocket.NewHandler(svcs.feed, cfg.CORSOrigins).RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	m := metrics.NewCollector("ward")
	m.TrackPool(pool)

	revoked := auth.NewTokenRevocationStore()
	defer revoked.Close()
	jwtCfg := jwtConfig(cfg, revoked)

	e := newRouter(cfg, pool, newServices(pool, jwtCfg, m, logger), jwtCfg, m, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
