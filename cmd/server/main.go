package main

import (
	"context" // context package is needed for Redis operations
	"time"    // Cache lifetime

	"github.com/gin-gonic/gin"                                // Gin web framework
	"github.com/prometheus/client_golang/prometheus"          // Metrics registry
	"github.com/prometheus/client_golang/prometheus/promhttp" // Metrics endpoint
	"github.com/redis/go-redis/v9"                            // Redis client
	"github.com/sirupsen/logrus"                              // Logrus for structured logging

	"account_manager/internal/api"     // Custom package for API handlers
	"account_manager/internal/config"  // Custom package for configuration
	"account_manager/internal/db"      // MySQL connection and schema
	"account_manager/internal/ledger"  // Balance program
	"account_manager/internal/metrics" // Prometheus counters
	"account_manager/internal/runtime" // Execution environment
	"account_manager/internal/store"   // Storage backends
	"account_manager/internal/utils"   // Cache
)

// openStore selects the storage backend from configuration
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMySQL:
		gdb, err := db.Open(cfg.DSN()) // Connect to MySQL
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(gdb); err != nil {
			return nil, err
		}
		return store.NewGorm(gdb), nil
	case config.BackendPebble:
		return store.OpenPebble(cfg.PebblePath) // Local key-value store
	default:
		logrus.Warn("Using in-memory store, state is lost on restart")
		return store.NewMemory(), nil
	}
}

// openCache connects to Redis when configured
func openCache(cfg *config.Config) *utils.Cache {
	if cfg.RedisAddr == "" {
		logrus.Info("REDIS_ADDR not set, caching disabled")
		return nil
	}
	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})
	// Test Redis connection
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}
	return utils.NewCache(redisClient, 60*time.Second)
}

// Main function to set up and run the server
func main() {
	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	// Structured logs for log shippers in production
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	st, err := openStore(cfg)
	if err != nil {
		logrus.Fatalf("failed to open %s store: %v", cfg.StoreBackend, err) // Fatal error if the store cannot open
	}
	defer st.Close()

	// Setup metrics
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		logrus.Fatalf("failed to register metrics: %v", err)
	}

	bank := runtime.NewBank(st, cfg.Rent, runtime.WithLogger(logrus.WithField("component", "runtime")))
	prog := ledger.New(cfg.ProgramID, bank, ledger.WithObserver(m))

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	api.RegisterRoutes(r, api.Deps{
		Program:              prog,                                             // Balance program
		Cache:                openCache(cfg),                                   // Redis cache, may be nil
		JWTSecret:            cfg.JWTSecret,                                    // JWT secret key
		OperatorUser:         cfg.OperatorUser,                                 // Operator login name
		OperatorPasswordHash: cfg.OperatorPasswordHash,                         // Operator password hash
		Metrics:              promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), // Metrics endpoint
	})

	logrus.WithFields(logrus.Fields{
		"port":    cfg.AppPort,            // Listen port
		"store":   cfg.StoreBackend,       // Storage backend
		"program": cfg.ProgramID.String(), // Program id
	}).Info("Server running") // Log server start
	if err := r.Run(":" + cfg.AppPort); err != nil { // Start the server on port cfg.AppPort
		logrus.Fatalf("server stopped: %v", err)
	}
}
