package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarvelMathesh/trackflow/internal/activity"
	"github.com/MarvelMathesh/trackflow/internal/auth"
	"github.com/MarvelMathesh/trackflow/internal/config"
	"github.com/MarvelMathesh/trackflow/internal/dashboard"
	"github.com/MarvelMathesh/trackflow/internal/database"
	"github.com/MarvelMathesh/trackflow/internal/docstore"
	"github.com/MarvelMathesh/trackflow/internal/leads"
	"github.com/MarvelMathesh/trackflow/internal/logging"
	"github.com/MarvelMathesh/trackflow/internal/metrics"
	"github.com/MarvelMathesh/trackflow/internal/orders"
	"github.com/MarvelMathesh/trackflow/internal/realtime"
	"github.com/MarvelMathesh/trackflow/internal/server"
	"github.com/MarvelMathesh/trackflow/internal/users"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "trackflow-api",
		Short: "TrackFlow CRM backend service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newIssueSessionCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().StringSlice("allowed-origins", nil, "Origins allowed to call the API with credentials (\"*\" admits any origin without credentials)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("timezone", defaults.GetString("dashboard.timezone"), "IANA timezone used for monthly metrics")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "http.allowed_origins", "allowed-origins")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "tauth.signing_secret", "signing-secret")
	bindFlag(cmd, "dashboard.timezone", "timezone")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	location, err := time.LoadLocation(appConfig.Timezone)
	if err != nil {
		return fmt.Errorf("dashboard.timezone: %w", err)
	}

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	dispatcher := realtime.NewDispatcher(0, logger)

	var (
		instruments    *metrics.Metrics
		metricsHandler http.Handler
	)
	if appConfig.MetricsEnabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		instruments = metrics.New(registry)
		metrics.RegisterSubscriberGauge(registry, dispatcher.SubscriberCount)
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	ids := docstore.NewUUIDProvider()

	activityStore, err := activity.NewGormStore(db)
	if err != nil {
		return err
	}
	activityConfig := activity.ServiceConfig{
		Store:      activityStore,
		Clock:      time.Now,
		IDProvider: ids,
		Publisher:  dispatcher,
		Logger:     logger,
	}
	if instruments != nil {
		activityConfig.Metrics = instruments
	}
	activityService, err := activity.NewService(activityConfig)
	if err != nil {
		return err
	}

	leadCollection, err := docstore.NewGormCollection[leads.Lead](docstore.GormConfig{
		Database:   db,
		IDProvider: ids,
	})
	if err != nil {
		return err
	}
	leadService, err := leads.NewService(leads.ServiceConfig{
		Collection: leadCollection,
		Activity:   activityService,
		Clock:      time.Now,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	orderCollection, err := docstore.NewGormCollection[orders.Order](docstore.GormConfig{
		Database:   db,
		IDProvider: ids,
	})
	if err != nil {
		return err
	}
	orderService, err := orders.NewService(orders.ServiceConfig{
		Collection: orderCollection,
		Activity:   activityService,
		Clock:      time.Now,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	dashboardService, err := dashboard.NewService(dashboard.ServiceConfig{
		Leads:    leadService,
		Orders:   orderService,
		Activity: activityService,
		Options: dashboard.Options{
			FollowUpWindowDays: appConfig.FollowUpWindowDays,
			FollowUpLimit:      appConfig.FollowUpLimit,
			ActivityLimit:      appConfig.ActivityLimit,
		},
		Location: location,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.TAuthSigningKey),
		Issuer:        appConfig.TAuthIssuer,
		CookieName:    appConfig.TAuthCookieName,
	})
	if err != nil {
		return err
	}

	userService, err := users.NewService(users.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		SessionValidator: sessionValidator,
		Users:            userService,
		Leads:            leadService,
		Orders:           orderService,
		Activity:         activityService,
		Dashboard:        dashboardService,
		Realtime:         dispatcher,
		Metrics:          instruments,
		MetricsHandler:   metricsHandler,
		AllowedOrigins:   appConfig.AllowedOrigins,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	httpServer.BaseContext = func(_ net.Listener) context.Context { return signalCtx }

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
