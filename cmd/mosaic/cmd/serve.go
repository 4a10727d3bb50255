package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mosaic/internal/config"
	"mosaic/internal/database"
	"mosaic/internal/database/migrations"
	internalhttp "mosaic/internal/http"
	"mosaic/internal/http/handlers"
	"mosaic/internal/httpclient"
	"mosaic/internal/observability"
	"mosaic/internal/playback"
	"mosaic/internal/registry"
	"mosaic/internal/repository"
	"mosaic/internal/resolver"
	"mosaic/internal/service"
	"mosaic/internal/supervisor"
	"mosaic/internal/version"
	"mosaic/internal/visibility"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mosaic server",
	Long: `Start the mosaic HTTP server and API.

The server provides:
- REST API for multiview slots, layouts, channels, and stream settings
- Raw streaming endpoint at /stream
- Health check endpoint
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Host to bind to")
	serveCmd.Flags().Int("port", 0, "Port to listen on")
	serveCmd.Flags().String("database", "", "Database DSN")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	logger := observability.NewLoggerWithWriter(cfg.Logging, os.Stderr)
	observability.SetDefault(logger)

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db.DB, logger)
	migrator.RegisterAll(migrations.All())
	if err := migrator.Up(context.Background()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Repositories and services
	channelRepo := repository.NewChannelRepository(db.DB)
	profileRepo := repository.NewStreamProfileRepository(db.DB)
	agentRepo := repository.NewUserAgentRepository(db.DB)
	layoutRepo := repository.NewMultiviewLayoutRepository(db.DB)

	catalogService := service.NewCatalogService(channelRepo, logger)
	settingsService := service.NewSettingsService(profileRepo, agentRepo, logger)
	layoutService := service.NewLayoutService(layoutRepo, logger)

	// Stream plumbing
	streamResolver := resolver.New(profileRepo, agentRepo, logger)
	upstreamClient := httpclient.New(httpclient.FromAppConfig(cfg.HTTPClient, logger))

	processSupervisor := supervisor.New(supervisor.ConfigFrom(cfg.Supervisor), logger)
	defer func() {
		if err := processSupervisor.Close(); err != nil {
			logger.Warn("supervisor close failed", slog.String("error", err.Error()))
		}
	}()

	slotRegistry := registry.New(
		cfg.Multiview,
		streamResolver,
		registry.NewSupervisorBridge(processSupervisor),
		playback.NewHTTPEngine(upstreamClient),
		logger,
	)
	visibilityController := visibility.New(slotRegistry, logger)

	// HTTP server and handlers
	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	handlers.NewHealthHandler(db).Register(server.API())
	handlers.NewChannelHandler(catalogService).Register(server.API())
	handlers.NewStreamProfileHandler(settingsService).Register(server.API())
	handlers.NewUserAgentHandler(settingsService).Register(server.API())
	handlers.NewLayoutHandler(layoutService, slotRegistry).Register(server.API())
	handlers.NewMultiviewHandler(slotRegistry, catalogService, visibilityController, processSupervisor).Register(server.API())

	streamHandler := handlers.NewStreamHandler(streamResolver, processSupervisor, settingsService, logger)
	streamHandler.Register(server.API())
	streamHandler.RegisterRoutes(server.Router())

	// Graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting mosaic server",
		slog.String("address", cfg.Server.Address()),
		slog.String("version", version.Version),
	)

	serveErr := server.ListenAndServe(ctx)

	// The server has stopped taking requests; now drain every slot and child
	// process before the deferred supervisor close.
	if err := slotRegistry.CleanupAll(context.Background()); err != nil {
		logger.Warn("slot cleanup on shutdown reported errors", slog.String("error", err.Error()))
	}

	return serveErr
}

// loadConfig loads the configuration and applies explicitly set CLI flags on
// top, keeping flag > env > file > default priority.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("database") {
		cfg.Database.DSN, _ = flags.GetString("database")
	}
	if rootCmd.PersistentFlags().Changed("log-level") {
		cfg.Logging.Level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		cfg.Logging.Format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}
