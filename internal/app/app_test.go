package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postline/internal/app"
	"postline/internal/config"
	"postline/internal/domain"
	"postline/internal/identity"
	"postline/internal/repo"
)

func TestOpenSQLiteStore(t *testing.T) {
	ctx := context.Background()
	workspace := t.TempDir()
	a, err := app.Open(ctx, workspace, config.Default(), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.FileExists(t, filepath.Join(workspace, ".postline", "postline.db"))

	link := domain.IdentityLink{LocalUserID: "u1", RemoteUserID: "n1", LastSyncedAt: time.Now().UTC()}
	require.NoError(t, a.Links.UpsertLink(ctx, link))
	got, err := a.Links.GetLink(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "n1", got.RemoteUserID)
}

func TestOpenWithoutNotionCredentials(t *testing.T) {
	a, err := app.Open(context.Background(), t.TempDir(), config.Default(), nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Engine.ListPosts(context.Background(), domain.Caller{UserID: "u1"})
	assert.True(t, domain.IsKind(err, domain.KindFailedPrecondition))
}

func TestOpenLinksUsesDSNAsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.db")
	links, err := app.OpenLinks(context.Background(), "", config.Store{Driver: config.DriverSQLite, DSN: path})
	require.NoError(t, err)
	defer links.Close()
	assert.FileExists(t, path)

	_, err = links.GetLink(context.Background(), "missing")
	assert.True(t, errors.Is(err, repo.ErrNotFound))
}

func TestOpenLinksRejectsUnknownDriver(t *testing.T) {
	_, err := app.OpenLinks(context.Background(), t.TempDir(), config.Store{Driver: "mysql"})
	assert.Error(t, err)
}

func TestNewStrategy(t *testing.T) {
	cfg := config.Default()
	_, ok := app.NewStrategy(cfg.Notion, nil).(identity.UserScan)
	assert.True(t, ok)

	cfg.Notion.DirectoryDatabaseID = "dir-db"
	dq, ok := app.NewStrategy(cfg.Notion, nil).(identity.DirectoryQuery)
	require.True(t, ok)
	assert.Equal(t, "dir-db", dq.DatabaseID)
	assert.Equal(t, "Email", dq.EmailProperty)
	assert.Equal(t, "User", dq.PeopleProperty)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := app.NewLogger(config.Log{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "v", line["k"])

	buf.Reset()
	app.NewLogger(config.Log{}, &buf).Debug("hidden")
	assert.Zero(t, buf.Len())
}
