package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"gorm.io/gorm"

	"account_manager/internal/db"
)

// terminator is the part of a module container the cleanup needs
type terminator interface {
	Terminate(ctx context.Context, opts ...testcontainers.TerminateOption) error
}

// labels tags containers so leftovers from crashed runs can be found
func labels(t *testing.T) map[string]string {
	return map[string]string{
		"test":      "account-manager",
		"test-name": t.Name(),
		"timestamp": time.Now().Format("20060102-150405"),
		"cleanup":   "auto",
	}
}

// RequireDocker skips the calling test when containers cannot be started
func RequireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("container tests are skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

// SetupMySQL starts a MySQL container, migrates the schema and returns a
// connection. The container is terminated when t finishes.
func SetupMySQL(t *testing.T) *gorm.DB {
	t.Helper()
	RequireDocker(t)
	ctx := context.Background()

	container, err := mysql.Run(ctx,
		"mysql:8.0.36",
		mysql.WithDatabase("ledger_test"),
		mysql.WithUsername("test_user"),
		mysql.WithPassword("test_password"),
		testcontainers.WithLabels(labels(t)),
	)
	require.NoError(t, err)

	var gdb *gorm.DB
	t.Cleanup(func() {
		if gdb != nil {
			if sqlDB, err := gdb.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		robustCleanup(t, container)
	})

	dsn, err := container.ConnectionString(ctx, "charset=utf8mb4", "parseTime=True", "loc=UTC")
	require.NoError(t, err)
	gdb, err = db.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))
	return gdb
}

// SetupRedis starts a Redis container and returns a client connected to it
func SetupRedis(t *testing.T) *redis.Client {
	t.Helper()
	RequireDocker(t)
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine", testcontainers.WithLabels(labels(t)))
	require.NoError(t, err)

	var rdb *redis.Client
	t.Cleanup(func() {
		if rdb != nil {
			_ = rdb.Close()
		}
		robustCleanup(t, container)
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	rdb = redis.NewClient(opts)
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

// robustCleanup terminates a container without ever failing the test
func robustCleanup(t *testing.T, c terminator) {
	defer func() {
		if r := recover(); r != nil {
			t.Logf("Panic during container cleanup (recovered): %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.Terminate(ctx); err != nil {
		t.Logf("Warning: Failed to terminate test container: %v", err)
	}
}
