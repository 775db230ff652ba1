package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postline/internal/db"
	"postline/internal/domain"
	"postline/internal/migrate"
)

func setupRepo(t *testing.T) Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return Repo{DB: conn}
}

func TestLinkUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	r := setupRepo(t)

	_, err := r.GetLink(ctx, "local-1")
	assert.ErrorIs(t, err, ErrNotFound)

	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.UpsertLink(ctx, domain.IdentityLink{LocalUserID: "local-1", RemoteUserID: "n-1", LastSyncedAt: first}))
	second := first.Add(time.Hour)
	require.NoError(t, r.UpsertLink(ctx, domain.IdentityLink{LocalUserID: "local-1", RemoteUserID: "n-2", LastSyncedAt: second}))

	link, err := r.GetLink(ctx, "local-1")
	require.NoError(t, err)
	assert.Equal(t, "n-2", link.RemoteUserID)
	assert.True(t, link.LastSyncedAt.Equal(second))

	links, err := r.ListLinks(ctx)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestUpsertLinkRequiresLocalID(t *testing.T) {
	err := setupRepo(t).UpsertLink(context.Background(), domain.IdentityLink{RemoteUserID: "n"})
	assert.Error(t, err)
}

func TestDeleteLink(t *testing.T) {
	ctx := context.Background()
	r := setupRepo(t)
	assert.ErrorIs(t, r.DeleteLink(ctx, "nobody"), ErrNotFound)
	require.NoError(t, r.UpsertLink(ctx, domain.IdentityLink{LocalUserID: "a", RemoteUserID: "n", LastSyncedAt: time.Now()}))
	require.NoError(t, r.DeleteLink(ctx, "a"))
	_, err := r.GetLink(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMigrateIsIdempotent(t *testing.T) {
	r := setupRepo(t)
	require.NoError(t, migrate.Migrate(r.DB))
}
