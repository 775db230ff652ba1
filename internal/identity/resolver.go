package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"postline/internal/domain"
)

// LinkStore persists identity links keyed by local user id.
type LinkStore interface {
	GetLink(ctx context.Context, localUserID string) (domain.IdentityLink, error)
	UpsertLink(ctx context.Context, link domain.IdentityLink) error
}

type Resolver struct {
	Strategy Strategy
	Links    LinkStore
	Logger   *slog.Logger
	Now      func() time.Time
}

func New(strategy Strategy, links LinkStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		Strategy: strategy,
		Links:    links,
		Logger:   logger,
		Now:      time.Now,
	}
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// Sync resolves email and records the link for localUserID. An empty email
// or an unmatched email returns "" without touching the stored link.
// Transport and store failures are returned.
func (r *Resolver) Sync(ctx context.Context, localUserID, email string) (string, error) {
	log := r.Logger.With("local_user_id", localUserID)
	if email == "" {
		log.Info("identity sync skipped: no email")
		return "", nil
	}
	remoteID, err := r.Strategy.Resolve(ctx, email)
	if errors.Is(err, ErrNotFound) {
		log.Info("identity sync: no matching notion user", "email", email)
		return "", nil
	}
	if err != nil {
		log.Error("identity sync failed", "email", email, "err", err)
		return "", err
	}
	link := domain.IdentityLink{
		LocalUserID:  localUserID,
		RemoteUserID: remoteID,
		LastSyncedAt: r.now(),
	}
	if err := r.Links.UpsertLink(ctx, link); err != nil {
		log.Error("identity sync: store link", "err", err)
		return "", err
	}
	log.Info("identity synced", "email", email, "notion_user_id", remoteID)
	return remoteID, nil
}

// Lookup resolves email without recording anything. Failures and misses
// both yield "".
func (r *Resolver) Lookup(ctx context.Context, email string) string {
	if email == "" {
		return ""
	}
	remoteID, err := r.Strategy.Resolve(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.Logger.Warn("identity lookup failed", "email", email, "err", err)
		}
		return ""
	}
	return remoteID
}

// Link returns the stored link for localUserID.
func (r *Resolver) Link(ctx context.Context, localUserID string) (domain.IdentityLink, error) {
	return r.Links.GetLink(ctx, localUserID)
}
