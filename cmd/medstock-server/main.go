package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medstock/medstock/internal/config"
	"github.com/medstock/medstock/internal/domain/dispensation"
	"github.com/medstock/medstock/internal/domain/distribution"
	"github.com/medstock/medstock/internal/domain/identity"
	"github.com/medstock/medstock/internal/domain/stock"
	"github.com/medstock/medstock/internal/domain/unit"
	"github.com/medstock/medstock/internal/platform/auth"
	"github.com/medstock/medstock/internal/platform/db"
	"github.com/medstock/medstock/internal/platform/middleware"
	"github.com/medstock/medstock/internal/platform/notification"
	"github.com/medstock/medstock/internal/platform/reporting"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medstock-server",
		Short: "Medication inventory and distribution API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
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
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
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
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	createAdminCmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if name == "" || email == "" || password == "" {
				return fmt.Errorf("--name, --email and --password are required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			userSvc := identity.NewService(
				identity.NewRepoPG(pool),
				auth.JWTConfig{SigningKey: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer},
				time.Duration(cfg.JWTTTLHours)*time.Hour,
			)

			u, err := userSvc.CreateBootstrap(ctx, identity.CreateInput{
				Name:     name,
				Email:    email,
				Password: password,
				Role:     auth.RoleAdmin,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Administrator %s created (id %s).\n", u.Email, u.ID)
			return nil
		},
	}
	createAdminCmd.Flags().String("name", "", "Display name")
	createAdminCmd.Flags().String("email", "", "Login email")
	createAdminCmd.Flags().String("password", "", "Initial password")
	cmd.AddCommand(createAdminCmd)

	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
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

	runner := db.NewRunner(pool)
	notifMgr := notification.NewManager(logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Public routes: health and login sit outside the auth middleware.
	jwtCfg := auth.JWTConfig{SigningKey: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer}
	userSvc := identity.NewService(identity.NewRepoPG(pool), jwtCfg, time.Duration(cfg.JWTTTLHours)*time.Hour)
	userHandler := identity.NewHandler(userSvc)

	public := e.Group("/api/v1")
	public.GET("/health", db.HealthHandler(pool))
	userHandler.RegisterLogin(public)

	api := e.Group("/api/v1")
	if cfg.IsDev() {
		api.Use(auth.DevAuthMiddleware())
	} else {
		api.Use(auth.JWTMiddleware(jwtCfg))
	}

	// Domain wiring. Distribution and dispensation borrow the stock and
	// unit repositories through their local store interfaces.
	stockRepo := stock.NewRepoPG(pool)
	movementRepo := stock.NewMovementRepoPG(pool)
	unitRepo := unit.NewRepoPG(pool)
	distRepo := distribution.NewRepoPG(pool)
	requestRepo := distribution.NewRequestRepoPG(pool)
	dispRepo := dispensation.NewRepoPG(pool)

	stockSvc := stock.NewService(stockRepo, movementRepo, runner, notifMgr, cfg.NearExpiryDays)
	stock.NewHandler(stockSvc).RegisterRoutes(api)

	unitSvc := unit.NewService(unitRepo)
	unit.NewHandler(unitSvc).RegisterRoutes(api)

	distSvc := distribution.NewService(distRepo, requestRepo, stockRepo, unitRepo, runner, notifMgr, cfg.NearExpiryDays)
	distribution.NewHandler(distSvc).RegisterRoutes(api)

	dispSvc := dispensation.NewService(dispRepo, stockRepo, runner, notifMgr, cfg.NearExpiryDays)
	dispensation.NewHandler(dispSvc).RegisterRoutes(api)

	userHandler.RegisterRoutes(api)
	notification.NewHandler(notifMgr).RegisterRoutes(api)
	reporting.NewHandler(pool).RegisterRoutes(api)

	// Graceful shutdown on SIGINT/SIGTERM.
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
