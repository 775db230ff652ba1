// Package pgstore stores identity links in Postgres.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"postline/internal/domain"
	"postline/internal/migrate"
	"postline/internal/repo"
)

type Store struct {
	Pool *pgxpool.Pool
}

// Open connects to dsn and applies the Postgres migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Store{Pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies pending migrations inside one transaction.
func (s *Store) Migrate(ctx context.Context) error {
	migrations, err := migrate.Load(migrate.Postgres)
	if err != nil {
		return err
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_version(version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	// Serialize concurrent starters.
	if _, err := tx.Exec(ctx, `LOCK TABLE schema_version IN EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock schema_version: %w", err)
	}
	var current int
	err = tx.QueryRow(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := tx.Exec(ctx, `INSERT INTO schema_version(version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema_version: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if _, err := tx.Exec(ctx, m.UpSQL); err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(ctx, `UPDATE schema_version SET version=$1`, m.Version); err != nil {
			return fmt.Errorf("update schema_version: %w", err)
		}
		current = m.Version
	}
	return tx.Commit(ctx)
}

func (s *Store) GetLink(ctx context.Context, localUserID string) (domain.IdentityLink, error) {
	var link domain.IdentityLink
	err := s.Pool.QueryRow(ctx,
		`SELECT local_user_id, remote_user_id, last_synced_at FROM identity_links WHERE local_user_id=$1`,
		localUserID).Scan(&link.LocalUserID, &link.RemoteUserID, &link.LastSyncedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return link, repo.ErrNotFound
	}
	return link, err
}

func (s *Store) UpsertLink(ctx context.Context, link domain.IdentityLink) error {
	if link.LocalUserID == "" {
		return fmt.Errorf("identity link: local user id is required")
	}
	_, err := s.Pool.Exec(ctx, `INSERT INTO identity_links(local_user_id, remote_user_id, last_synced_at)
VALUES ($1, $2, $3)
ON CONFLICT (local_user_id) DO UPDATE SET remote_user_id=EXCLUDED.remote_user_id, last_synced_at=EXCLUDED.last_synced_at`,
		link.LocalUserID, link.RemoteUserID, link.LastSyncedAt.UTC())
	return err
}

func (s *Store) ListLinks(ctx context.Context) ([]domain.IdentityLink, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT local_user_id, remote_user_id, last_synced_at FROM identity_links ORDER BY local_user_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.IdentityLink, error) {
		var link domain.IdentityLink
		err := row.Scan(&link.LocalUserID, &link.RemoteUserID, &link.LastSyncedAt)
		return link, err
	})
}

func (s *Store) DeleteLink(ctx context.Context, localUserID string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM identity_links WHERE local_user_id=$1`, localUserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) Close() error {
	s.Pool.Close()
	return nil
}
