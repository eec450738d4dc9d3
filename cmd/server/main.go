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

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tyemirov/tokenpair/internal/tokenkit"
	"github.com/tyemirov/tokenpair/internal/tokenkitpg"
	"github.com/tyemirov/tokenpair/internal/tokenkitredis"
	"github.com/tyemirov/tokenpair/internal/web"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "tokenpair",
		Short:   "Auth token service with signed access tokens and single-use rotating refresh tokens",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("jwt_signing_key", "", "HS256 signing secret for access tokens")
	rootCmd.Flags().String("jwt_issuer", "tokenpair", "Issuer claim for access tokens")
	rootCmd.Flags().String("jwt_audience", "tokenpair-clients", "Audience claim for access tokens")
	rootCmd.Flags().Duration("access_ttl", 15*time.Minute, "Access token TTL")
	rootCmd.Flags().Duration("refresh_ttl", 30*24*time.Hour, "Refresh token TTL")
	rootCmd.Flags().Duration("store_timeout", 5*time.Second, "Per-call refresh store timeout")
	rootCmd.Flags().String("store_backend", "memory", "Refresh token store backend: memory, database, postgres, or redis")
	rootCmd.Flags().String("database_url", "", "Database URL for the database and postgres backends (postgres:// or sqlite://)")
	rootCmd.Flags().String("redis_addr", "", "Redis address for the redis backend")
	rootCmd.Flags().String("redis_password", "", "Redis password")
	rootCmd.Flags().Int("redis_db", 0, "Redis database index")
	rootCmd.Flags().Duration("purge_interval", time.Hour, "Expired-record purge interval; zero disables the purge loop")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin clients")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled")

	_ = viper.BindPFlag("listen_addr", rootCmd.Flags().Lookup("listen_addr"))
	_ = viper.BindPFlag("jwt_signing_key", rootCmd.Flags().Lookup("jwt_signing_key"))
	_ = viper.BindPFlag("jwt_issuer", rootCmd.Flags().Lookup("jwt_issuer"))
	_ = viper.BindPFlag("jwt_audience", rootCmd.Flags().Lookup("jwt_audience"))
	_ = viper.BindPFlag("access_ttl", rootCmd.Flags().Lookup("access_ttl"))
	_ = viper.BindPFlag("refresh_ttl", rootCmd.Flags().Lookup("refresh_ttl"))
	_ = viper.BindPFlag("store_timeout", rootCmd.Flags().Lookup("store_timeout"))
	_ = viper.BindPFlag("store_backend", rootCmd.Flags().Lookup("store_backend"))
	_ = viper.BindPFlag("database_url", rootCmd.Flags().Lookup("database_url"))
	_ = viper.BindPFlag("redis_addr", rootCmd.Flags().Lookup("redis_addr"))
	_ = viper.BindPFlag("redis_password", rootCmd.Flags().Lookup("redis_password"))
	_ = viper.BindPFlag("redis_db", rootCmd.Flags().Lookup("redis_db"))
	_ = viper.BindPFlag("purge_interval", rootCmd.Flags().Lookup("purge_interval"))
	_ = viper.BindPFlag("enable_cors", rootCmd.Flags().Lookup("enable_cors"))
	_ = viper.BindPFlag("cors_allowed_origins", rootCmd.Flags().Lookup("cors_allowed_origins"))

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	configCodeMissingJWTSigningKey    = "config.missing_jwt_signing_key"
	configCodeMissingIssuer           = "config.missing_jwt_issuer"
	configCodeMissingAudience         = "config.missing_jwt_audience"
	configCodeInvalidAccessTTL        = "config.invalid_access_ttl"
	configCodeInvalidRefreshTTL       = "config.invalid_refresh_ttl"
	configCodeUnknownStoreBackend     = "config.unknown_store_backend"
	configCodeMissingDatabaseURL      = "config.missing_database_url"
	configCodeMissingRedisAddr        = "config.missing_redis_addr"
	configCodeUninitializedServerConf = "config.uninitialized_server_config"
)

type serverConfig struct {
	ListenAddr         string
	Tokens             tokenkit.Config
	StoreBackend       string
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	PurgeInterval      time.Duration
	EnableCORS         bool
	CORSAllowedOrigins []string
}

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	loadedConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, loadedConfig))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

// LoadServerConfig reads and validates all settings from viper.
func LoadServerConfig() (serverConfig, error) {
	jwtSigningKey := viper.GetString("jwt_signing_key")
	if jwtSigningKey == "" {
		return serverConfig{}, configError(configCodeMissingJWTSigningKey, "jwt_signing_key must be provided")
	}
	jwtIssuer := viper.GetString("jwt_issuer")
	if jwtIssuer == "" {
		return serverConfig{}, configError(configCodeMissingIssuer, "jwt_issuer must be provided")
	}
	jwtAudience := viper.GetString("jwt_audience")
	if jwtAudience == "" {
		return serverConfig{}, configError(configCodeMissingAudience, "jwt_audience must be provided")
	}
	accessTTL := viper.GetDuration("access_ttl")
	if accessTTL <= 0 {
		return serverConfig{}, configError(configCodeInvalidAccessTTL, "access_ttl must be greater than zero")
	}
	refreshTTL := viper.GetDuration("refresh_ttl")
	if refreshTTL <= 0 {
		return serverConfig{}, configError(configCodeInvalidRefreshTTL, "refresh_ttl must be greater than zero")
	}

	storeBackend := viper.GetString("store_backend")
	databaseURL := viper.GetString("database_url")
	redisAddr := viper.GetString("redis_addr")
	switch storeBackend {
	case "memory":
	case "database", "postgres":
		if databaseURL == "" {
			return serverConfig{}, configError(configCodeMissingDatabaseURL, "database_url must be provided for the "+storeBackend+" backend")
		}
	case "redis":
		if redisAddr == "" {
			return serverConfig{}, configError(configCodeMissingRedisAddr, "redis_addr must be provided for the redis backend")
		}
	default:
		return serverConfig{}, configError(configCodeUnknownStoreBackend, "store_backend must be one of memory, database, postgres, redis")
	}

	return serverConfig{
		ListenAddr: viper.GetString("listen_addr"),
		Tokens: tokenkit.Config{
			SigningSecret:   []byte(jwtSigningKey),
			Issuer:          jwtIssuer,
			Audience:        jwtAudience,
			AccessTokenTTL:  accessTTL,
			RefreshTokenTTL: refreshTTL,
			StoreTimeout:    viper.GetDuration("store_timeout"),
		},
		StoreBackend:       storeBackend,
		DatabaseURL:        databaseURL,
		RedisAddr:          redisAddr,
		RedisPassword:      viper.GetString("redis_password"),
		RedisDB:            viper.GetInt("redis_db"),
		PurgeInterval:      viper.GetDuration("purge_interval"),
		EnableCORS:         viper.GetBool("enable_cors"),
		CORSAllowedOrigins: viper.GetStringSlice("cors_allowed_origins"),
	}, nil
}

func buildRefreshTokenStore(ctx context.Context, loadedConfig serverConfig, logger *zap.Logger) (tokenkit.RefreshTokenStore, error) {
	switch loadedConfig.StoreBackend {
	case "database":
		persistentStore, storeErr := tokenkit.NewDatabaseRefreshTokenStore(ctx, loadedConfig.DatabaseURL)
		if storeErr != nil {
			return nil, storeErr
		}
		logger.Info("using database refresh token store", zap.String("driver", persistentStore.Driver()))
		return persistentStore, nil
	case "postgres":
		pool, poolErr := tokenkitpg.BuildPool(ctx, loadedConfig.DatabaseURL)
		if poolErr != nil {
			return nil, poolErr
		}
		if schemaErr := tokenkitpg.EnsureSchema(ctx, pool); schemaErr != nil {
			return nil, schemaErr
		}
		logger.Info("using pgx refresh token store")
		return tokenkitpg.NewPostgresRefreshTokenStore(pool), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     loadedConfig.RedisAddr,
			Password: loadedConfig.RedisPassword,
			DB:       loadedConfig.RedisDB,
		})
		if pingErr := client.Ping(ctx).Err(); pingErr != nil {
			return nil, pingErr
		}
		logger.Info("using redis refresh token store", zap.String("addr", loadedConfig.RedisAddr))
		return tokenkitredis.NewRedisRefreshTokenStore(client, "tokenpair"), nil
	default:
		logger.Info("using in-memory refresh token store")
		return tokenkit.NewMemoryRefreshTokenStore(), nil
	}
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	loadedConfig, ok := contextValue.(serverConfig)
	if !ok {
		return configError(configCodeUninitializedServerConf, "server configuration not prepared; PreRunE must execute before RunE")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if loadedConfig.EnableCORS {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, loadedConfig.CORSAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
	}

	refreshStore, storeErr := buildRefreshTokenStore(context.Background(), loadedConfig, logger)
	if storeErr != nil {
		return storeErr
	}

	metricsRecorder := tokenkit.NewCounterMetrics()
	tokenService, serviceErr := tokenkit.NewService(loadedConfig.Tokens, refreshStore, tokenkit.NewSystemClock(), logger, metricsRecorder)
	if serviceErr != nil {
		return serviceErr
	}

	userRegistry := web.NewInMemoryUsers()
	tokenkit.MountUserRoutes(router, tokenService, userRegistry, logger)

	router.GET("/healthz", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	if purger, isPurger := refreshStore.(tokenkit.ExpiredRecordPurger); isPurger && loadedConfig.PurgeInterval > 0 {
		go runPurgeLoop(shutdownCtx, purger, loadedConfig.PurgeInterval, logger)
	}

	server := &http.Server{
		Addr:              loadedConfig.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
		shutdownCancel()
	}()

	logger.Info("listening", zap.String("addr", loadedConfig.ListenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

// runPurgeLoop periodically drops expired records from stores without native
// TTL support. Storage hygiene only; validity never depends on it.
func runPurgeLoop(ctx context.Context, purger tokenkit.ExpiredRecordPurger, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, purgeErr := purger.PurgeExpired(ctx)
			if purgeErr != nil {
				logger.Warn("expired record purge failed", zap.Error(purgeErr))
				continue
			}
			if removed > 0 {
				logger.Info("expired records purged", zap.Int64("removed", removed))
			}
		}
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
