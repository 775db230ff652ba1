package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"postline/internal/codec"
	"postline/internal/config"
	"postline/internal/domain"
	"postline/internal/identity"
	"postline/internal/notion"
	"postline/internal/repo"
)

// Documents is the part of the Notion API the engine uses.
type Documents interface {
	QueryDatabase(ctx context.Context, databaseID string, query notion.DatabaseQuery) ([]notion.Page, error)
	RetrievePage(ctx context.Context, pageID string) (notion.Page, error)
	CreatePage(ctx context.Context, databaseID string, properties notion.Properties) (notion.Page, error)
	UpdatePage(ctx context.Context, pageID string, properties notion.Properties) (notion.Page, error)
}

type Engine struct {
	Notion   Documents
	Codec    *codec.Codec
	Identity *identity.Resolver
	Config   *config.Config
	Logger   *slog.Logger
}

func New(docs Documents, resolver *identity.Resolver, cfg *config.Config, logger *slog.Logger) Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return Engine{
		Notion:   docs,
		Codec:    codec.New(cfg.Posts.Properties),
		Identity: resolver,
		Config:   cfg,
		Logger:   logger,
	}
}

// PostList is a list result. Reason explains an empty result that is not
// an error, such as an unlinked caller.
type PostList struct {
	Posts  []domain.Post `json:"posts"`
	Reason string        `json:"reason,omitempty"`
}

type UpsertResult struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
	Message string `json:"message"`
}

type SyncResult struct {
	Success      bool   `json:"success"`
	NotionUserID string `json:"notionUserId,omitempty"`
}

const (
	ReasonNoEmail    = "caller has no email address"
	ReasonUnresolved = "no notion user matches the caller email"
	ReasonNotLinked  = "user is not linked to a notion user"
)

func requireCaller(caller domain.Caller) error {
	if !caller.Authenticated() {
		return domain.Unauthenticated("authentication required")
	}
	return nil
}

// storeError classifies a Notion failure and logs it.
func (e Engine) storeError(op string, err error, attrs ...any) error {
	if errors.Is(err, notion.ErrMissingAPIKey) {
		return domain.FailedPrecondition("notion api key is not configured")
	}
	e.Logger.Error(op+" failed", append(attrs, "err", err)...)
	return domain.Internal("failed to "+op, err)
}

func (e Engine) decodeAll(pages []notion.Page) []domain.Post {
	posts := make([]domain.Post, 0, len(pages))
	for _, page := range pages {
		if !page.HasProperties() {
			continue
		}
		posts = append(posts, e.Codec.Decode(page))
	}
	newestFirst(posts)
	return posts
}

// newestFirst orders posts by creation time, descending. Posts without a
// creation time keep their relative position after dated ones.
func newestFirst(posts []domain.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i].CreatedTime, posts[j].CreatedTime
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

func (e Engine) ListPosts(ctx context.Context, caller domain.Caller) (PostList, error) {
	if err := requireCaller(caller); err != nil {
		return PostList{}, err
	}
	if err := e.Config.Notion.RequirePosts(); err != nil {
		return PostList{}, err
	}
	pages, err := e.Notion.QueryDatabase(ctx, e.Config.Notion.PostsDatabaseID, notion.DatabaseQuery{
		Sorts: []notion.Sort{notion.NewestFirst()},
	})
	if err != nil {
		return PostList{}, e.storeError("fetch posts from notion", err)
	}
	return PostList{Posts: e.decodeAll(pages)}, nil
}

func (e Engine) GetPost(ctx context.Context, caller domain.Caller, id string) (domain.Post, error) {
	if err := requireCaller(caller); err != nil {
		return domain.Post{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Post{}, domain.InvalidArgument("pageId is required")
	}
	if err := e.Config.Notion.RequireAPIKey(); err != nil {
		return domain.Post{}, err
	}
	page, err := e.Notion.RetrievePage(ctx, id)
	if err != nil {
		if notion.IsNotFound(err) {
			return domain.Post{}, domain.NotFound("post %s not found", id)
		}
		return domain.Post{}, e.storeError("fetch post from notion", err, "page_id", id)
	}
	if !page.HasProperties() {
		return domain.Post{}, domain.NotFound("post %s not found or not accessible", id)
	}
	return e.Codec.Decode(page), nil
}

// UpsertPost updates the page named by input.ID or creates a new one in the
// posts database. Omitted optional fields leave stored values untouched.
// Categories are written to a single-select property, so only the first
// supplied category is stored.
func (e Engine) UpsertPost(ctx context.Context, caller domain.Caller, input domain.UpsertInput) (UpsertResult, error) {
	if err := requireCaller(caller); err != nil {
		return UpsertResult{}, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return UpsertResult{}, domain.InvalidArgument("title is required")
	}
	input.ID = strings.TrimSpace(input.ID)
	props := e.Codec.Encode(input)

	if input.ID != "" {
		if err := e.Config.Notion.RequireAPIKey(); err != nil {
			return UpsertResult{}, err
		}
		if _, err := e.Notion.UpdatePage(ctx, input.ID, props); err != nil {
			if notion.IsNotFound(err) {
				return UpsertResult{}, domain.NotFound("post %s not found", input.ID)
			}
			return UpsertResult{}, e.storeError("upsert post to notion", err, "page_id", input.ID)
		}
		e.Logger.Info("post updated", "page_id", input.ID, "user_id", caller.UserID)
		return UpsertResult{ID: input.ID, Message: "Post updated successfully."}, nil
	}

	if err := e.Config.Notion.RequirePosts(); err != nil {
		return UpsertResult{}, err
	}
	page, err := e.Notion.CreatePage(ctx, e.Config.Notion.PostsDatabaseID, props)
	if err != nil {
		return UpsertResult{}, e.storeError("upsert post to notion", err)
	}
	e.Logger.Info("post created", "page_id", page.ID, "user_id", caller.UserID)
	return UpsertResult{ID: page.ID, Created: true, Message: "Post created successfully."}, nil
}

// ListMyPosts lists the caller's completed posts. A caller that cannot be
// resolved to a Notion user gets an empty list with a reason.
func (e Engine) ListMyPosts(ctx context.Context, caller domain.Caller) (PostList, error) {
	if err := requireCaller(caller); err != nil {
		return PostList{}, err
	}
	if err := e.Config.Notion.RequirePosts(); err != nil {
		return PostList{}, err
	}
	if caller.Email == "" {
		return PostList{Posts: []domain.Post{}, Reason: ReasonNoEmail}, nil
	}
	remoteID := e.Identity.Lookup(ctx, caller.Email)
	if remoteID == "" {
		return PostList{Posts: []domain.Post{}, Reason: ReasonUnresolved}, nil
	}
	return e.authorPosts(ctx, remoteID)
}

// ListPostsByLocalUser lists completed posts of a local user through the
// stored identity link, without resolving the user again.
func (e Engine) ListPostsByLocalUser(ctx context.Context, caller domain.Caller, localUserID string) (PostList, error) {
	if err := requireCaller(caller); err != nil {
		return PostList{}, err
	}
	localUserID = strings.TrimSpace(localUserID)
	if localUserID == "" {
		return PostList{}, domain.InvalidArgument("localUserId is required")
	}
	if err := e.Config.Notion.RequirePosts(); err != nil {
		return PostList{}, err
	}
	link, err := e.Identity.Link(ctx, localUserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return PostList{Posts: []domain.Post{}, Reason: ReasonNotLinked}, nil
		}
		e.Logger.Error("read identity link failed", "local_user_id", localUserID, "err", err)
		return PostList{}, domain.Internal("failed to read identity link", err)
	}
	if link.RemoteUserID == "" {
		return PostList{Posts: []domain.Post{}, Reason: ReasonNotLinked}, nil
	}
	return e.authorPosts(ctx, link.RemoteUserID)
}

// authorPosts queries completed posts whose authors include remoteID.
func (e Engine) authorPosts(ctx context.Context, remoteID string) (PostList, error) {
	schema := e.Codec.Schema()
	filter := notion.And(
		notion.PeopleContains(schema.Authors, remoteID),
		notion.StatusEquals(schema.Status, e.Config.Posts.CompletionStatus),
	)
	pages, err := e.Notion.QueryDatabase(ctx, e.Config.Notion.PostsDatabaseID, notion.DatabaseQuery{
		Filter: &filter,
		Sorts:  []notion.Sort{notion.NewestFirst()},
	})
	if err != nil {
		return PostList{}, e.storeError("fetch author posts from notion", err, "notion_user_id", remoteID)
	}
	return PostList{Posts: e.decodeAll(pages)}, nil
}

// GetMediaURL returns the first attached media URL of a page.
func (e Engine) GetMediaURL(ctx context.Context, caller domain.Caller, pageID string) (string, error) {
	if err := requireCaller(caller); err != nil {
		return "", err
	}
	pageID = strings.TrimSpace(pageID)
	if pageID == "" {
		return "", domain.InvalidArgument("pageId is required")
	}
	if err := e.Config.Notion.RequireAPIKey(); err != nil {
		return "", err
	}
	page, err := e.Notion.RetrievePage(ctx, pageID)
	if err != nil {
		if notion.IsNotFound(err) {
			return "", domain.NotFound("post %s not found", pageID)
		}
		return "", e.storeError("fetch media from notion", err, "page_id", pageID)
	}
	u, ok := codec.FirstMediaURL(page, e.Codec.Schema().Files)
	if !ok {
		return "", domain.NotFound("post %s has no media", pageID)
	}
	return u, nil
}

// SyncUser links the caller to the Notion user with the caller's email.
func (e Engine) SyncUser(ctx context.Context, caller domain.Caller) (SyncResult, error) {
	if err := requireCaller(caller); err != nil {
		return SyncResult{}, err
	}
	if caller.Email != "" {
		if err := e.requireIdentityConfig(); err != nil {
			return SyncResult{}, err
		}
	}
	remoteID, err := e.Identity.Sync(ctx, caller.UserID, caller.Email)
	if err != nil {
		return SyncResult{}, e.storeError("sync user with notion", err, "local_user_id", caller.UserID)
	}
	return SyncResult{Success: remoteID != "", NotionUserID: remoteID}, nil
}

func (e Engine) requireIdentityConfig() error {
	return e.Config.Notion.RequireAPIKey()
}

// OnIdentityCreated syncs a newly created local identity. It reports
// nothing to its caller; failures are logged.
func (e Engine) OnIdentityCreated(ctx context.Context, localUserID, email string) {
	log := e.Logger.With("local_user_id", localUserID)
	if localUserID == "" {
		log.Warn("identity created hook without user id")
		return
	}
	if email != "" {
		if err := e.requireIdentityConfig(); err != nil {
			log.Warn("identity created hook: sync skipped", "err", err)
			return
		}
	}
	remoteID, err := e.Identity.Sync(ctx, localUserID, email)
	if err != nil {
		log.Error("identity created hook: sync failed", "err", err)
		return
	}
	log.Info("identity created hook done", "notion_user_id", remoteID)
}
