//go:build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/domain"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/ports"
	platformpg "github.com/maiphun1412/thietbi-dientu-backend/internal/platform/postgres"
)

// countingStore backs the cache with a mutable product so tests can
// observe which reads reached the source and which were served stale.
type countingStore struct {
	product domain.Product
	reads   int
}

func (s *countingStore) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	if id != s.product.ID {
		return nil, ports.ErrNotFound
	}
	s.reads++
	copied := s.product
	return &copied, nil
}

func (s *countingStore) TryDecrement(_ context.Context, productID int64, _ *int64, qty int64) error {
	s.product.Stock -= qty
	return nil
}

func (s *countingStore) Increment(_ context.Context, productID int64, _ *int64, qty int64) error {
	s.product.Stock += qty
	return nil
}

func (s *countingStore) AddSold(_ context.Context, productID int64, qty int64) error {
	s.product.Sold += qty
	return nil
}

func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	cleanup := func() {
		client.Close()
		container.Terminate(ctx)
	}
	return client, cleanup
}

func TestProductCache_ReadThroughAndEviction(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client, cleanup := setupRedisContainer(t)
	defer cleanup()
	ctx := context.Background()

	store := &countingStore{product: domain.Product{ID: 10, Name: "Tai nghe", Price: 100_000, Stock: 5}}
	cache := NewProductCache(store, store, client, time.Minute, nil)

	product, err := cache.GetProduct(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), product.Price)
	assert.Equal(t, 1, store.reads)

	// Second read is served from Redis.
	_, err = cache.GetProduct(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, store.reads)

	// Stock mutations evict, so the next read sees the new count.
	require.NoError(t, cache.TryDecrement(ctx, 10, nil, 2))
	product, err = cache.GetProduct(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), product.Stock)
	assert.Equal(t, 2, store.reads)

	require.NoError(t, cache.Increment(ctx, 10, nil, 2))
	product, err = cache.GetProduct(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(5), product.Stock)

	require.NoError(t, cache.AddSold(ctx, 10, 1))
	product, err = cache.GetProduct(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), product.Sold)

	// Explicit invalidation forces the next read through.
	before := store.reads
	cache.Invalidate(ctx, 10)
	_, err = cache.GetProduct(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, before+1, store.reads)
}

func TestProductCache_BypassesOpenTransactions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client, redisCleanup := setupRedisContainer(t)
	defer redisCleanup()
	manager, pgCleanup := setupTxManager(t)
	defer pgCleanup()
	ctx := context.Background()

	store := &countingStore{product: domain.Product{ID: 10, Name: "Tai nghe", Price: 100_000, Stock: 5}}
	cache := NewProductCache(store, store, client, time.Minute, nil)

	// Prime the cache outside any transaction.
	_, err := cache.GetProduct(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, store.reads)

	// A price change must be visible to transactional reads immediately,
	// cached entry or not.
	store.product.Price = 120_000
	err = manager.RunInTx(ctx, func(ctx context.Context) error {
		product, err := cache.GetProduct(ctx, 10)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(120_000), product.Price)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, store.reads)

	// Outside the transaction the cached entry still serves.
	product, err := cache.GetProduct(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), product.Price)
	assert.Equal(t, 2, store.reads)
}

func setupTxManager(t *testing.T) (*platformpg.TxManager, func()) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("shop_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		pgContainer.Terminate(ctx)
	}
	return platformpg.NewTxManager(db), cleanup
}
