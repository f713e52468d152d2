package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat_server/auth"
	"chat_server/config"
	"chat_server/metrics"
	"chat_server/presence"
	"chat_server/routes"
	"chat_server/services"
	"chat_server/socket"
	"chat_server/stores"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:          "chat_server",
		Short:        "1:1 chat server with chat requests and live push",
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and push server",
		RunE:  runServe,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "optional YAML config file")
	rootCmd.AddCommand(serveCmd, tokenCmd, seedCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openBackend returns the configured store. DynamoDB tables are created if
// they do not exist yet.
func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (*stores.Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendDynamo:
		logger.Info("initializing DynamoDB client", "region", cfg.AWSRegion, "prefix", cfg.TablePrefix)
		client, err := stores.InitializeDynamoDBClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		ds := &stores.DynamoService{Client: client, TablePrefix: cfg.TablePrefix, Logger: logger}
		if err := stores.EnsureTables(ctx, ds); err != nil {
			return nil, fmt.Errorf("ensure tables: %w", err)
		}
		return stores.NewDynamoBackend(ds), nil
	default:
		logger.Info("opening Badger store", "path", cfg.BadgerPath, "inMemory", cfg.BadgerPath == "")
		db, err := stores.OpenBadger(stores.BadgerConfig{
			Path:     cfg.BadgerPath,
			InMemory: cfg.BadgerPath == "",
			Logger:   logger.With("component", "badger"),
		})
		if err != nil {
			return nil, err
		}
		return stores.NewBadgerBackend(db), nil
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	m := metrics.New()
	dir := presence.NewDirectory()
	verifier := auth.NewJWTVerifier(cfg.JWTSecret, 0)

	sio := socket.NewSocketServer(dir, verifier, logger.With("component", "socketio"), cfg.PushBuffer)
	ws := socket.NewWebSocketServer(dir, verifier, logger.With("component", "websocket"), cfg.PushBuffer)
	dir.OnChange(func(online []string) {
		m.SetOnline(len(online))
		sio.BroadcastOnline(online)
		ws.BroadcastOnline(online)
	})

	var images services.ImageStore
	if cfg.S3Bucket != "" {
		s3Store, err := services.NewS3ImageStore(ctx, cfg.AWSRegion, cfg.S3Bucket)
		if err != nil {
			return err
		}
		images = s3Store
	}

	requests := &services.ChatRequestService{
		Connections: backend.Connections,
		Users:       backend.Users,
		Presence:    dir,
		Metrics:     m,
		Logger:      logger.With("component", "chat_requests"),
	}
	router := routes.NewRouter(routes.Deps{
		ChatRequests: requests,
		Messages: &services.MessageService{
			Messages: backend.Messages,
			Requests: requests,
			Images:   images,
			Presence: dir,
			Metrics:  m,
			Logger:   logger.With("component", "messages"),
		},
		Users:     &services.UserService{Users: backend.Users},
		Images:    images,
		Directory: dir,
		Verifier:  verifier,
		Metrics:   m,
		Logger:    logger,
	})

	// Push transports hijack the connection, so they sit beside the router
	// rather than behind its response-wrapping middleware.
	root := http.NewServeMux()
	root.Handle("/socket.io/", sio.IO)
	root.Handle("/ws", ws)
	root.Handle("/", router)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(root)

	go func() {
		if err := sio.IO.Serve(); err != nil {
			logger.Error("socket.io server stopped", "error", err)
		}
	}()
	defer sio.IO.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port, "backend", cfg.StoreBackend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
	return nil
}
