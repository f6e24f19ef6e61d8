// Package main is the telegram-shop binary: the mini-app storefront API and its
// maintenance commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ttwixxbot/telegram-shop/internal/catalog"
	"github.com/ttwixxbot/telegram-shop/internal/config"
	h "github.com/ttwixxbot/telegram-shop/internal/http"
	"github.com/ttwixxbot/telegram-shop/pkg/logger"
)

var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

const appName = "shop"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Telegram mini-app storefront",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (TOML)")

	cmd.AddCommand(
		serveCmd(&configPath),
		catalogCmd(&configPath),
		initDataCmd(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

func loadConfig(path string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log.With(zap.String("service", cfg.App.Name), zap.String("env", cfg.App.Env)), nil
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			return serve(cfg, log)
		},
	}
}

func serve(cfg *config.Config, log *zap.Logger) error {
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("shutdown cleanup failed", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      a.handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("storefront API starting",
			zap.String("addr", srv.Addr),
			zap.String("catalog_source", cfg.Catalog.Source))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

func catalogCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the SQLite product catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <catalog.json>",
		Short: "Replace the stored catalog with the products in a catalog.json file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			return importCatalog(cmd.Context(), cfg, args[0], log)
		},
	})

	return cmd
}

func importCatalog(ctx context.Context, cfg *config.Config, path string, log *zap.Logger) error {
	products, err := catalog.NewFileProvider(path).Products(ctx)
	if err != nil {
		return err
	}

	repo, err := openRepository(cfg.Catalog)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.ReplaceAll(ctx, products); err != nil {
		return err
	}
	log.Info("catalog imported", zap.String("file", path), zap.String("db", cfg.Catalog.DBPath), zap.Int("products", len(products)))

	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer client.Close()

	// running servers would keep serving the old catalog until the entry expires
	if err := catalog.NewCachedProvider(repo, client, cfg.Catalog.CacheTTL, log).Invalidate(ctx); err != nil {
		log.Warn("catalog cache invalidation failed", zap.Error(err))
	}
	return nil
}

// initDataCmd signs init data with the configured bot token so the API can be called
// outside Telegram during development.
func initDataCmd(configPath *string) *cobra.Command {
	var (
		userID    int64
		firstName string
	)

	cmd := &cobra.Command{
		Use:   "initdata",
		Short: "Print a signed Authorization header for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Telegram.BotToken == "" {
				return errors.New("telegram.bot_token is not set")
			}

			user := fmt.Sprintf(`{"id":%d,"first_name":%q}`, userID, firstName)
			data := h.SignInitData(url.Values{
				"user":      {user},
				"auth_date": {strconv.FormatInt(time.Now().Unix(), 10)},
			}, cfg.Telegram.BotToken)

			fmt.Fprintf(cmd.OutOrStdout(), "Authorization: tma %s\n", data)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user-id", 1, "Telegram user id")
	cmd.Flags().StringVar(&firstName, "first-name", "Dev", "User first name")

	return cmd
}
