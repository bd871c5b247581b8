package repository_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsphere/storefront/internal/repository"
	"shopsphere/storefront/internal/storage"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		t.Fatalf("Unable to parse database URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		t.Fatalf("Unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		t.Fatalf("Unable to ping database: %v", err)
	}

	repo := repository.NewStateRepository(pool)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	if _, err := pool.Exec(context.Background(), "TRUNCATE TABLE client_state"); err != nil {
		t.Fatalf("Failed to truncate client_state: %v", err)
	}

	return pool
}

func TestStateRepository_Integration(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	repo := repository.NewStateRepository(pool)

	_, err := repo.Get(ctx, "shopsphere-cart")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, repo.Set(ctx, "shopsphere-cart", []byte(`[]`)))
	require.NoError(t, repo.Set(ctx, "shopsphere-cart", []byte(`[{"id":"p1"}]`)))
	v, err := repo.Get(ctx, "shopsphere-cart")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"p1"}]`, string(v))

	require.NoError(t, repo.SetMany(ctx, map[string][]byte{
		"shopsphere-user":  []byte(`{"id":"u1"}`),
		"shopsphere-token": []byte("tok"),
	}))
	keys, err := repo.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"shopsphere-cart", "shopsphere-token", "shopsphere-user"}, keys)

	require.NoError(t, repo.Remove(ctx, "shopsphere-user", "shopsphere-token"))
	keys, err = repo.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"shopsphere-cart"}, keys)
}

func TestStateRepository_RunAtomicRollsBack(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	repo := repository.NewStateRepository(pool)

	err := repo.RunAtomic(ctx, func(ctx context.Context) error {
		if err := repo.Set(ctx, "shopsphere-user", []byte("x")); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = repo.Get(ctx, "shopsphere-user")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
