package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gosobol/internal"
	"gosobol/internal/config"
	"gosobol/internal/container"
	apperrors "gosobol/internal/errors"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// initDatabase initializes the PostgreSQL database connection
func initDatabase(ctx context.Context, appConfig *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", appConfig.Database.URL)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to connect to database")
	}
	return db, nil
}

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	// Load environment variables from .env file
	envErr := godotenv.Load()

	appConfig, err := config.Load(*configPath)
	if err != nil {
		internal.NewDefaultLogger().Error("failed to load configuration: %v", err)
		os.Exit(1)
	}
	logger := internal.NewLogger(internal.ParseLogLevel(appConfig.LogLevel))
	if envErr != nil {
		logger.Debug("no .env file found, using system environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, appConfig, logger)
	stop()
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// run serves the API until ctx is done. The container is shut down on every
// return path.
func run(ctx context.Context, appConfig *config.Config, logger *internal.Logger) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appContainer, err := container.New(appConfig, logger)
	if err != nil {
		return apperrors.Wrap(err, "failed to create application container")
	}
	defer func() {
		if shutdownErr := appContainer.Shutdown(context.Background()); shutdownErr != nil && err == nil {
			err = apperrors.Wrap(shutdownErr, "failed to shut down container")
		}
	}()

	switch {
	case appConfig.Database.URL != "":
		var db *sqlx.DB
		db, err = initDatabase(ctx, appConfig)
		if err == nil {
			err = appContainer.InitWithDatabase(ctx, db)
		}
	case appConfig.Database.SQLitePath != "":
		err = appContainer.InitWithSQLite(appConfig.Database.SQLitePath)
	default:
		err = appContainer.InitInMemory()
	}
	if err != nil {
		return apperrors.Wrap(err, "failed to initialize container")
	}

	handler, err := appContainer.APIServer()
	if err != nil {
		return apperrors.Wrap(err, "failed to build API server")
	}
	server := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("starting gosobol API on port %s", appConfig.Server.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return apperrors.Wrap(err, "server failed")
	}
	return nil
}
