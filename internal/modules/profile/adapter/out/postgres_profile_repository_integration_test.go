//go:build integration

package out_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	profileadapter "tempo/internal/modules/profile/adapter/out"
	apperrors "tempo/internal/platform/errors"
	"tempo/internal/platform/storage"
)

func TestPostgresProfileLifecycle(t *testing.T) {
	ctx := context.Background()
	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("tempo"),
		postgrescontainer.WithUsername("tempo"),
		postgrescontainer.WithPassword("tempo"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })
	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := storage.OpenPostgres(ctx, connStr)
	for deadline := time.Now().Add(30 * time.Second); err != nil && time.Now().Before(deadline); {
		time.Sleep(500 * time.Millisecond)
		pool, err = storage.OpenPostgres(ctx, connStr)
	}
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, storage.MigratePostgres(ctx, pool))

	repo := profileadapter.NewPostgresProfileRepository(pool)
	user := uuid.NewString()

	p, err := repo.FindOrCreate(ctx, fresh(t, uuid.NewString(), user))
	require.NoError(t, err)
	require.Equal(t, 1, p.Version)

	p, err = p.UpdatePeakHour(9, 0.8)
	require.NoError(t, err)
	p, err = p.UpdateCategoryPreference("writing", 0.8)
	require.NoError(t, err)
	saved, err := repo.Save(ctx, p)
	require.NoError(t, err)
	require.Equal(t, 2, saved.Version)

	_, err = repo.Update(ctx, p)
	require.ErrorIs(t, err, apperrors.ErrStaleVersion)

	stored, err := repo.FindByUserID(ctx, user)
	require.NoError(t, err)
	require.InDelta(t, 0.24, stored.PeakHours[9], 1e-9)
	require.InDelta(t, 0.8, stored.CategoryPreferences["writing"], 1e-9)

	_, err = repo.Save(ctx, fresh(t, uuid.NewString(), user))
	require.ErrorIs(t, err, apperrors.ErrStaleVersion)

	require.NoError(t, repo.Delete(ctx, user))
	require.ErrorIs(t, repo.Delete(ctx, user), apperrors.ErrProfileNotFound)
}
