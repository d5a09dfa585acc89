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

	"guildchat-backend/internal/accounts"
	"guildchat-backend/internal/config"
	"guildchat-backend/internal/credentials"
	"guildchat-backend/internal/database"
	"guildchat-backend/internal/handlers"
	"guildchat-backend/internal/invites"
	"guildchat-backend/internal/jwt"
	"guildchat-backend/internal/keyValue"
	"guildchat-backend/internal/messages"
	"guildchat-backend/internal/models"
	"guildchat-backend/internal/servers"
	"guildchat-backend/internal/snowflake"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func setupLogger(cfg *models.ConfigFile) (*zap.SugaredLogger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = level
	if cfg.LogToFile {
		zapConfig.OutputPaths = []string{"app.log", "stdout"}
	} else {
		zapConfig.OutputPaths = []string{"stdout"}
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	return logger.Sugar(), nil
}

func setupRedis(cfg *models.ConfigFile) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	err := rdb.Ping(context.Background()).Err()
	if err != nil {
		rdb.Close()
		return nil, err
	}

	return rdb, nil
}

func run(cfg *models.ConfigFile, sugar *zap.SugaredLogger) error {
	sugar.Info("Connecting to database...")
	db, err := database.Setup(cfg, sugar)
	if err != nil {
		return err
	}
	defer db.Close()

	var redisClient *redis.Client
	if !cfg.SelfContained {
		sugar.Info("Connecting to redis...")
		redisClient, err = setupRedis(cfg)
		if err != nil {
			return err
		}
	}

	cache := keyValue.New(sugar, redisClient)
	defer cache.Close()

	ids, err := snowflake.New(cfg.SnowflakeWorkerID)
	if err != nil {
		return err
	}

	hasher := credentials.NewHasher()
	accountRegistry := accounts.New(db, ids, hasher, sugar)

	isHttps := cfg.TlsCert != "" && cfg.TlsKey != ""

	handler := handlers.New(handlers.Dependencies{
		Sugar:         sugar,
		Accounts:      accountRegistry,
		Servers:       servers.New(db, accountRegistry, sugar),
		Invites:       invites.New(db, sugar),
		Messages:      messages.New(db, sugar),
		Authenticator: credentials.NewAuthenticator(accountRegistry, hasher),
		Issuer:        jwt.NewIssuer(cfg.JwtSecret, isHttps),
		Cache:         cache,
		IDs:           ids,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Address, cfg.Port),
		Handler:           handler.Router(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		var httpProtocol string
		if isHttps {
			httpProtocol = "https"
		} else {
			httpProtocol = "http"
		}
		sugar.Infof("Server is running on %s://%s", httpProtocol, server.Addr)

		if isHttps {
			serveErr <- server.ListenAndServeTLS(cfg.TlsCert, cfg.TlsKey)
		} else {
			serveErr <- server.ListenAndServe()
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		sugar.Info("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Error(err)
	}

	// nobody is connected once the server has stopped
	return accountRegistry.ResetAllPresence(shutdownCtx)
}

func main() {
	configPath := pflag.StringP("config", "c", "config.json", "path to the JSON or YAML config file")
	envFile := pflag.String("env-file", ".env", "optional file of environment variables")
	pflag.Parse()

	fmt.Println("Reading config file...")
	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	fmt.Println("Setting up logger...")
	sugar, err := setupLogger(cfg)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer sugar.Sync()

	if err := run(cfg, sugar); err != nil {
		sugar.Fatal(err)
	}
}
