package engine_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postline/internal/config"
	"postline/internal/db"
	"postline/internal/domain"
	"postline/internal/engine"
	"postline/internal/identity"
	"postline/internal/migrate"
	"postline/internal/notion"
	"postline/internal/notion/notiontest"
	"postline/internal/repo"
)

const postsDB = "posts-db"

type testEnv struct {
	Engine engine.Engine
	Notion *notiontest.Server
	Links  repo.Repo
	Ctx    context.Context
	Caller domain.Caller
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	links := repo.Repo{DB: conn}

	fake := notiontest.New(t)
	fake.AddPage(postsDB, notion.Page{ID: "seed", CreatedTime: "2020-01-01T00:00:00Z"})
	handle := notion.NewHandle(fake.Config())

	cfg := config.Default()
	cfg.Notion.APIKey = notiontest.Token
	cfg.Notion.PostsDatabaseID = postsDB

	resolver := identity.New(identity.UserScan{Users: handle}, links, nil)
	eng := engine.New(handle, resolver, cfg, nil)
	return testEnv{
		Engine: eng,
		Notion: fake,
		Links:  links,
		Ctx:    context.Background(),
		Caller: domain.Caller{UserID: "local-1", Email: "aki@example.com"},
	}
}

func titles(posts []domain.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		if p.ID == "seed" {
			continue
		}
		out = append(out, p.Title)
	}
	return out
}

func post(title, status string, authors ...string) notion.Page {
	props := map[string]notion.PropertyValue{
		"タイトル": notion.TitleValue(title),
		"著者":   notion.PeopleValue(authors...),
	}
	if status != "" {
		props["ステータス"] = notion.StatusValue(status)
	}
	return notion.Page{Properties: props}
}

func TestOperationsRequireCaller(t *testing.T) {
	env := newTestEnv(t)
	anon := domain.Caller{}
	_, err := env.Engine.ListPosts(env.Ctx, anon)
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))
	_, err = env.Engine.GetPost(env.Ctx, anon, "x")
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))
	_, err = env.Engine.UpsertPost(env.Ctx, anon, domain.UpsertInput{Title: "t"})
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))
	_, err = env.Engine.ListMyPosts(env.Ctx, anon)
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))
	_, err = env.Engine.ListPostsByLocalUser(env.Ctx, anon, "local-1")
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))
	_, err = env.Engine.GetMediaURL(env.Ctx, anon, "x")
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))
	_, err = env.Engine.SyncUser(env.Ctx, anon)
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))
	assert.Zero(t, env.Notion.Calls(""))
}

func TestListPostsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	env.Notion.PageSize = 2
	for _, title := range []string{"T1", "T2", "T3"} {
		env.Notion.AddPage(postsDB, post(title, ""))
	}
	env.Notion.AddRawResult(postsDB, `{"object": "database", "id": "not-a-page"}`)

	list, err := env.Engine.ListPosts(env.Ctx, env.Caller)
	require.NoError(t, err)
	assert.Equal(t, []string{"T3", "T2", "T1"}, titles(list.Posts))
	// The seed page has no properties and the raw result is not a page.
	assert.Len(t, list.Posts, 3)
}

func TestMissingConfigurationIsFailedPrecondition(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Config.Notion.PostsDatabaseID = ""
	_, err := env.Engine.ListPosts(env.Ctx, env.Caller)
	assert.True(t, domain.IsKind(err, domain.KindFailedPrecondition))
	_, err = env.Engine.UpsertPost(env.Ctx, env.Caller, domain.UpsertInput{Title: "t"})
	assert.True(t, domain.IsKind(err, domain.KindFailedPrecondition))

	env.Engine.Config.Notion.APIKey = ""
	_, err = env.Engine.GetPost(env.Ctx, env.Caller, "p")
	assert.True(t, domain.IsKind(err, domain.KindFailedPrecondition))
	_, err = env.Engine.SyncUser(env.Ctx, env.Caller)
	assert.True(t, domain.IsKind(err, domain.KindFailedPrecondition))
	assert.Zero(t, env.Notion.Calls(""))
}

func TestGetPost(t *testing.T) {
	env := newTestEnv(t)
	page := env.Notion.AddPage(postsDB, post("Hello", "draft"))

	got, err := env.Engine.GetPost(env.Ctx, env.Caller, page.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Title)
	require.NotNil(t, got.Status)
	assert.Equal(t, "draft", *got.Status)

	_, err = env.Engine.GetPost(env.Ctx, env.Caller, "  ")
	assert.True(t, domain.IsKind(err, domain.KindInvalidArgument))

	_, err = env.Engine.GetPost(env.Ctx, env.Caller, "missing")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	env.Notion.Fail("GET /v1/pages", http.StatusBadGateway, "bad_gateway")
	_, err = env.Engine.GetPost(env.Ctx, env.Caller, page.ID)
	assert.True(t, domain.IsKind(err, domain.KindInternal))
	assert.Contains(t, err.Error(), "bad_gateway")
}

func TestUpsertPostCreatesThenUpdates(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.Engine.UpsertPost(env.Ctx, env.Caller, domain.UpsertInput{
		Title:      "Draft",
		FirstCheck: true,
		CanvaURL:   domain.Some("https://canva.com/d/1"),
		Categories: domain.Some([]string{"A", "B"}),
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	require.NotEmpty(t, res.ID)

	got, err := env.Engine.GetPost(env.Ctx, env.Caller, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "Draft", got.Title)
	assert.True(t, got.FirstCheck)
	assert.False(t, got.SecondCheck)
	assert.Equal(t, []string{"A"}, got.Categories)

	// Omitted canvaUrl is preserved; explicit empty categories clear.
	res, err = env.Engine.UpsertPost(env.Ctx, env.Caller, domain.UpsertInput{
		ID:          res.ID,
		Title:       "Final",
		SecondCheck: true,
		Categories:  domain.Some([]string{}),
	})
	require.NoError(t, err)
	assert.False(t, res.Created)

	got, err = env.Engine.GetPost(env.Ctx, env.Caller, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "Final", got.Title)
	assert.False(t, got.FirstCheck)
	assert.True(t, got.SecondCheck)
	require.NotNil(t, got.CanvaURL)
	assert.Equal(t, "https://canva.com/d/1", *got.CanvaURL)
	assert.Empty(t, got.Categories)
}

func TestUpsertPostValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.UpsertPost(env.Ctx, env.Caller, domain.UpsertInput{Title: "   "})
	assert.True(t, domain.IsKind(err, domain.KindInvalidArgument))
	assert.Zero(t, env.Notion.Calls("POST /v1/pages"))

	_, err = env.Engine.UpsertPost(env.Ctx, env.Caller, domain.UpsertInput{ID: "missing", Title: "t"})
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestListMyPostsFiltersAuthorAndStatus(t *testing.T) {
	env := newTestEnv(t)
	env.Notion.AddUser(notiontest.Person("U1", "Aki", "aki@example.com"))
	env.Notion.AddUser(notiontest.Person("U2", "Ben", "ben@example.com"))
	env.Notion.AddPage(postsDB, post("mine-old", "complete", "U1"))
	env.Notion.AddPage(postsDB, post("mine-draft", "draft", "U1"))
	env.Notion.AddPage(postsDB, post("theirs", "complete", "U2"))
	env.Notion.AddPage(postsDB, post("shared", "complete", "U2", "U1"))

	list, err := env.Engine.ListMyPosts(env.Ctx, env.Caller)
	require.NoError(t, err)
	assert.Empty(t, list.Reason)
	assert.Equal(t, []string{"shared", "mine-old"}, titles(list.Posts))
}

func TestListMyPostsDegradesToEmpty(t *testing.T) {
	env := newTestEnv(t)

	list, err := env.Engine.ListMyPosts(env.Ctx, domain.Caller{UserID: "local-1"})
	require.NoError(t, err)
	assert.Empty(t, list.Posts)
	assert.Equal(t, engine.ReasonNoEmail, list.Reason)

	list, err = env.Engine.ListMyPosts(env.Ctx, env.Caller)
	require.NoError(t, err)
	assert.Empty(t, list.Posts)
	assert.Equal(t, engine.ReasonUnresolved, list.Reason)

	env.Notion.Fail("GET /v1/users", http.StatusServiceUnavailable, "service_unavailable")
	list, err = env.Engine.ListMyPosts(env.Ctx, env.Caller)
	require.NoError(t, err)
	assert.Equal(t, engine.ReasonUnresolved, list.Reason)
	assert.Zero(t, env.Notion.Calls("POST /v1/databases"))
}

func TestListPostsByLocalUserUsesStoredLink(t *testing.T) {
	env := newTestEnv(t)
	env.Notion.AddPage(postsDB, post("linked", "complete", "U9"))

	list, err := env.Engine.ListPostsByLocalUser(env.Ctx, env.Caller, "local-2")
	require.NoError(t, err)
	assert.Equal(t, engine.ReasonNotLinked, list.Reason)

	require.NoError(t, env.Links.UpsertLink(env.Ctx, domain.IdentityLink{LocalUserID: "local-2", RemoteUserID: "U9", LastSyncedAt: time.Now()}))
	list, err = env.Engine.ListPostsByLocalUser(env.Ctx, env.Caller, "local-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"linked"}, titles(list.Posts))
	assert.Zero(t, env.Notion.Calls("GET /v1/users"))

	require.NoError(t, env.Links.UpsertLink(env.Ctx, domain.IdentityLink{LocalUserID: "local-3", LastSyncedAt: time.Now()}))
	list, err = env.Engine.ListPostsByLocalUser(env.Ctx, env.Caller, "local-3")
	require.NoError(t, err)
	assert.Equal(t, engine.ReasonNotLinked, list.Reason)

	_, err = env.Engine.ListPostsByLocalUser(env.Ctx, env.Caller, "")
	assert.True(t, domain.IsKind(err, domain.KindInvalidArgument))
}

func TestGetMediaURL(t *testing.T) {
	env := newTestEnv(t)
	withMedia := env.Notion.AddPage(postsDB, notion.Page{Properties: map[string]notion.PropertyValue{
		"ファイル&メディア": {Type: notion.PropertyFiles, Files: []notion.File{
			{Type: "external", External: &notion.ExternalFile{URL: "https://cdn/a.png"}},
		}},
	}})
	without := env.Notion.AddPage(postsDB, post("bare", ""))

	u, err := env.Engine.GetMediaURL(env.Ctx, env.Caller, withMedia.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/a.png", u)

	_, err = env.Engine.GetMediaURL(env.Ctx, env.Caller, without.ID)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
	_, err = env.Engine.GetMediaURL(env.Ctx, env.Caller, "")
	assert.True(t, domain.IsKind(err, domain.KindInvalidArgument))
}

func TestSyncUser(t *testing.T) {
	env := newTestEnv(t)
	env.Notion.AddUser(notiontest.Person("U1", "Aki", "aki@example.com"))

	res, err := env.Engine.SyncUser(env.Ctx, env.Caller)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "U1", res.NotionUserID)

	res, err = env.Engine.SyncUser(env.Ctx, domain.Caller{UserID: "local-1", Email: "unknown@example.com"})
	require.NoError(t, err)
	assert.False(t, res.Success)

	link, err := env.Links.GetLink(env.Ctx, "local-1")
	require.NoError(t, err)
	assert.Equal(t, "U1", link.RemoteUserID)

	env.Notion.Fail("GET /v1/users", http.StatusInternalServerError, "internal_server_error")
	_, err = env.Engine.SyncUser(env.Ctx, env.Caller)
	assert.True(t, domain.IsKind(err, domain.KindInternal))
}

func TestOnIdentityCreatedLinksUser(t *testing.T) {
	env := newTestEnv(t)
	env.Notion.AddUser(notiontest.Person("U7", "Cai", "cai@example.com"))

	env.Engine.OnIdentityCreated(env.Ctx, "local-7", "cai@example.com")
	link, err := env.Links.GetLink(env.Ctx, "local-7")
	require.NoError(t, err)
	assert.Equal(t, "U7", link.RemoteUserID)

	env.Notion.Fail("GET /v1/users", http.StatusInternalServerError, "internal_server_error")
	env.Engine.OnIdentityCreated(env.Ctx, "local-8", "cai@example.com")
	_, err = env.Links.GetLink(env.Ctx, "local-8")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}
