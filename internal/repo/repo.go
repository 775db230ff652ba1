package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"postline/internal/domain"
)

// Repo stores identity links in SQLite.
type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const linkColumns = `local_user_id,remote_user_id,last_synced_at`

func scanLink(scan func(dest ...any) error) (domain.IdentityLink, error) {
	var (
		link     domain.IdentityLink
		syncedAt string
	)
	if err := scan(&link.LocalUserID, &link.RemoteUserID, &syncedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return link, ErrNotFound
		}
		return link, err
	}
	ts, err := time.Parse(time.RFC3339Nano, syncedAt)
	if err != nil {
		return link, fmt.Errorf("identity link %s: last_synced_at: %w", link.LocalUserID, err)
	}
	link.LastSyncedAt = ts
	return link, nil
}

func (r Repo) GetLink(ctx context.Context, localUserID string) (domain.IdentityLink, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM identity_links WHERE local_user_id=?`, localUserID)
	return scanLink(row.Scan)
}

// UpsertLink inserts the link or overwrites the remote id and sync time of
// an existing one.
func (r Repo) UpsertLink(ctx context.Context, link domain.IdentityLink) error {
	if link.LocalUserID == "" {
		return fmt.Errorf("identity link: local user id is required")
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO identity_links(`+linkColumns+`) VALUES (?,?,?)
ON CONFLICT(local_user_id) DO UPDATE SET remote_user_id=excluded.remote_user_id, last_synced_at=excluded.last_synced_at`,
		link.LocalUserID, link.RemoteUserID, link.LastSyncedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (r Repo) ListLinks(ctx context.Context) ([]domain.IdentityLink, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+linkColumns+` FROM identity_links ORDER BY local_user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.IdentityLink
	for rows.Next() {
		link, err := scanLink(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, link)
	}
	return res, rows.Err()
}

func (r Repo) DeleteLink(ctx context.Context, localUserID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM identity_links WHERE local_user_id=?`, localUserID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) Close() error {
	return r.DB.Close()
}
