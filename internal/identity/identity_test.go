package identity

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postline/internal/db"
	"postline/internal/domain"
	"postline/internal/migrate"
	"postline/internal/notion"
	"postline/internal/notion/notiontest"
	"postline/internal/repo"
)

func setupLinks(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return repo.Repo{DB: conn}
}

func setupNotion(t *testing.T) (*notiontest.Server, *notion.Handle) {
	t.Helper()
	fake := notiontest.New(t)
	return fake, notion.NewHandle(fake.Config())
}

func email(v string) notion.PropertyValue {
	return notion.PropertyValue{Type: notion.PropertyEmail, Email: &v}
}

func addDirectoryRecord(fake *notiontest.Server, address string, userIDs ...string) {
	fake.AddPage("directory", notion.Page{Properties: map[string]notion.PropertyValue{
		"Email": email(address),
		"User":  notion.PeopleValue(userIDs...),
	}})
}

func TestUserScanMatchesExactly(t *testing.T) {
	fake, handle := setupNotion(t)
	fake.PageSize = 1
	fake.AddUser(notion.User{ID: "bot-1", Type: "bot", Name: "Integration"})
	fake.AddUser(notiontest.Person("u-1", "Aki", "Aki@example.com"))
	fake.AddUser(notiontest.Person("u-2", "Aki", "aki@example.com"))
	scan := UserScan{Users: handle}

	id, err := scan.Resolve(context.Background(), "aki@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-2", id)

	_, err = scan.Resolve(context.Background(), "AKI@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirectoryQueryRechecksCase(t *testing.T) {
	fake, handle := setupNotion(t)
	fake.EmailCaseInsensitive = true
	addDirectoryRecord(fake, "Aki@example.com", "u-upper")
	addDirectoryRecord(fake, "aki@example.com", "u-lower")
	dir := DirectoryQuery{Pages: handle, DatabaseID: "directory", EmailProperty: "Email", PeopleProperty: "User"}

	id, err := dir.Resolve(context.Background(), "aki@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-lower", id)

	_, err = dir.Resolve(context.Background(), "AKI@EXAMPLE.COM")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirectoryQueryEmptyPeopleIsMiss(t *testing.T) {
	fake, handle := setupNotion(t)
	addDirectoryRecord(fake, "ben@example.com")
	dir := DirectoryQuery{Pages: handle, DatabaseID: "directory", EmailProperty: "Email", PeopleProperty: "User"}

	_, err := dir.Resolve(context.Background(), "ben@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncRecordsLinkAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fake, handle := setupNotion(t)
	fake.AddUser(notiontest.Person("u-1", "Aki", "aki@example.com"))
	links := setupLinks(t)
	clock := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	r := New(UserScan{Users: handle}, links, nil)
	r.Now = func() time.Time { return clock }

	id, err := r.Sync(ctx, "local-1", "aki@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)

	clock = clock.Add(time.Hour)
	id, err = r.Sync(ctx, "local-1", "aki@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)

	link, err := r.Link(ctx, "local-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", link.RemoteUserID)
	assert.True(t, link.LastSyncedAt.Equal(clock))
}

func TestSyncMissLeavesExistingLink(t *testing.T) {
	ctx := context.Background()
	_, handle := setupNotion(t)
	links := setupLinks(t)
	before := domain.IdentityLink{LocalUserID: "local-1", RemoteUserID: "u-old", LastSyncedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, links.UpsertLink(ctx, before))
	r := New(UserScan{Users: handle}, links, nil)

	id, err := r.Sync(ctx, "local-1", "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, "", id)

	link, err := r.Link(ctx, "local-1")
	require.NoError(t, err)
	assert.Equal(t, "u-old", link.RemoteUserID)
	assert.True(t, link.LastSyncedAt.Equal(before.LastSyncedAt))
}

func TestSyncWithoutEmailMakesNoCalls(t *testing.T) {
	fake, handle := setupNotion(t)
	r := New(UserScan{Users: handle}, setupLinks(t), nil)

	id, err := r.Sync(context.Background(), "local-1", "")
	require.NoError(t, err)
	assert.Equal(t, "", id)
	assert.Zero(t, fake.Calls("GET /v1/users"))
}

func TestSyncPropagatesTransportFailure(t *testing.T) {
	ctx := context.Background()
	fake, handle := setupNotion(t)
	fake.Fail("GET /v1/users", http.StatusBadGateway, "bad_gateway")
	links := setupLinks(t)
	r := New(UserScan{Users: handle}, links, nil)

	_, err := r.Sync(ctx, "local-1", "aki@example.com")
	require.Error(t, err)
	assert.False(t, notion.IsNotFound(err))

	_, err = links.GetLink(ctx, "local-1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestLookupDegradesToEmpty(t *testing.T) {
	fake, handle := setupNotion(t)
	fake.AddUser(notiontest.Person("u-1", "Aki", "aki@example.com"))
	r := New(UserScan{Users: handle}, setupLinks(t), nil)

	assert.Equal(t, "u-1", r.Lookup(context.Background(), "aki@example.com"))
	assert.Equal(t, "", r.Lookup(context.Background(), "nobody@example.com"))
	assert.Equal(t, "", r.Lookup(context.Background(), ""))

	fake.Fail("GET /v1/users", http.StatusInternalServerError, "internal_server_error")
	assert.Equal(t, "", r.Lookup(context.Background(), "aki@example.com"))
}
