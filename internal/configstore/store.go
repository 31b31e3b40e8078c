// Package configstore reads per-workspace and per-channel integration config
// from Postgres. Config is written by the onboarding surface, not by quill,
// so the store is read-mostly.
package configstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Target is one configured destination: the credential/database pair plus the
// per-channel overrides. All fields may be empty; resolution falls through
// channel, workspace, then process defaults.
type Target struct {
	WorkspaceID  string
	ChannelID    string
	AccessToken  string
	DatabaseID   string
	DataSourceID string
	GeminiAPIKey string
	TriggerEmoji string
}

// GetChannelTarget returns the channel-level config, or (nil, nil) when the
// channel has none.
func (s *Store) GetChannelTarget(ctx context.Context, workspaceID, channelID string) (*Target, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT workspace_id, channel_id,
		       COALESCE(access_token, ''), COALESCE(database_id, ''),
		       COALESCE(data_source_id, ''), COALESCE(gemini_api_key, ''),
		       COALESCE(trigger_emoji, '')
		FROM channel_configs
		WHERE workspace_id = $1 AND channel_id = $2`,
		workspaceID, channelID,
	)

	var t Target
	err := row.Scan(&t.WorkspaceID, &t.ChannelID, &t.AccessToken, &t.DatabaseID,
		&t.DataSourceID, &t.GeminiAPIKey, &t.TriggerEmoji)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query channel config: %w", err)
	}
	return &t, nil
}

// GetWorkspaceTarget returns the workspace-level fallback config, or
// (nil, nil) when the workspace has none.
func (s *Store) GetWorkspaceTarget(ctx context.Context, workspaceID string) (*Target, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT workspace_id,
		       COALESCE(access_token, ''), COALESCE(database_id, ''),
		       COALESCE(data_source_id, '')
		FROM workspace_configs
		WHERE workspace_id = $1`,
		workspaceID,
	)

	var t Target
	err := row.Scan(&t.WorkspaceID, &t.AccessToken, &t.DatabaseID, &t.DataSourceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query workspace config: %w", err)
	}
	return &t, nil
}

// ListChannelTargets returns every channel config, for the recovery sweep.
func (s *Store) ListChannelTargets(ctx context.Context) ([]Target, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT workspace_id, channel_id,
		       COALESCE(access_token, ''), COALESCE(database_id, ''),
		       COALESCE(data_source_id, ''), COALESCE(gemini_api_key, ''),
		       COALESCE(trigger_emoji, '')
		FROM channel_configs
		ORDER BY workspace_id, channel_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query channel configs: %w", err)
	}
	defer rows.Close()

	var targets []Target
	for rows.Next() {
		var t Target
		if err := rows.Scan(&t.WorkspaceID, &t.ChannelID, &t.AccessToken, &t.DatabaseID,
			&t.DataSourceID, &t.GeminiAPIKey, &t.TriggerEmoji); err != nil {
			return nil, fmt.Errorf("scan channel config: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel configs: %w", err)
	}
	return targets, nil
}

// CacheDataSourceID stores a resolved data source id on the channel config.
// Best effort: the caller already holds the id, a miss just costs a future
// lookup.
func (s *Store) CacheDataSourceID(ctx context.Context, workspaceID, channelID, dataSourceID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE channel_configs SET data_source_id = $1
		WHERE workspace_id = $2 AND channel_id = $3`,
		dataSourceID, workspaceID, channelID,
	)
	if err != nil {
		return fmt.Errorf("cache data source id: %w", err)
	}
	return nil
}
