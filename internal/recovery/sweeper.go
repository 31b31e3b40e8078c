// Package recovery promotes manually repaired error artifacts into finished
// decision records. A human fixes the JSON on an artifact page and retags it
// Ready; the sweep finds those pages, writes the real record, and archives
// the artifact.
package recovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/quill/internal/configstore"
	"github.com/MikeSquared-Agency/quill/internal/notion"
	"github.com/MikeSquared-Agency/quill/internal/record"
	"github.com/MikeSquared-Agency/quill/internal/writer"
)

// ConfigProvider enumerates configured channels and resolves their
// credentials.
type ConfigProvider interface {
	ListChannelTargets(ctx context.Context) ([]configstore.Target, error)
	GetWorkspaceTarget(ctx context.Context, workspaceID string) (*configstore.Target, error)
	CacheDataSourceID(ctx context.Context, workspaceID, channelID, dataSourceID string) error
}

// RecordWriter writes a finished decision record page.
type RecordWriter interface {
	WriteRecord(ctx context.Context, rec *record.DecisionRecord, sourceLink string, target writer.Target) (*notion.Page, error)
}

// DocumentStore is the slice of the document API the sweep reads from.
type DocumentStore interface {
	RetrieveDatabase(ctx context.Context, token, databaseID string) (*notion.Database, error)
	QueryDataSourceByTag(ctx context.Context, token, dataSourceID, tag string) ([]notion.Page, error)
	ListChildren(ctx context.Context, token, blockID string) ([]notion.Block, error)
	ArchivePage(ctx context.Context, token, pageID string) error
}

type Sweeper struct {
	configs ConfigProvider
	store   DocumentStore
	records RecordWriter
	logger  *slog.Logger
}

// Summary reports what one sweep did. Skipped counts pages left in place for
// a human to finish repairing.
type Summary struct {
	Channels  int `json:"channels"`
	Pages     int `json:"pages"`
	Recovered int `json:"recovered"`
	Skipped   int `json:"skipped"`
}

func NewSweeper(configs ConfigProvider, store DocumentStore, records RecordWriter, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		configs: configs,
		store:   store,
		records: records,
		logger:  logger,
	}
}

// Sweep scans every configured channel for Ready artifacts and promotes each
// one it can. Failures are logged and counted, never raised: a sweep must
// survive one broken channel or one malformed page and keep going.
func (s *Sweeper) Sweep(ctx context.Context) Summary {
	sweepID := uuid.New().String()[:8]
	logger := s.logger.With("sweep_id", sweepID)

	var sum Summary

	targets, err := s.configs.ListChannelTargets(ctx)
	if err != nil {
		logger.Error("list channel configs failed", "error", err)
		return sum
	}

	for _, t := range targets {
		if t.DatabaseID == "" {
			continue
		}
		sum.Channels++

		token := t.AccessToken
		if token == "" {
			ws, err := s.configs.GetWorkspaceTarget(ctx, t.WorkspaceID)
			if err != nil {
				logger.Warn("workspace config lookup failed", "workspace", t.WorkspaceID, "error", err)
				continue
			}
			if ws == nil || ws.AccessToken == "" {
				logger.Warn("no credential for channel, skipping", "workspace", t.WorkspaceID, "channel", t.ChannelID)
				continue
			}
			token = ws.AccessToken
		}

		s.sweepChannel(ctx, logger, t, token, &sum)
	}

	logger.Info("sweep finished",
		"channels", sum.Channels,
		"pages", sum.Pages,
		"recovered", sum.Recovered,
		"skipped", sum.Skipped,
	)
	return sum
}

func (s *Sweeper) sweepChannel(ctx context.Context, logger *slog.Logger, t configstore.Target, token string, sum *Summary) {
	logger = logger.With("workspace", t.WorkspaceID, "channel", t.ChannelID, "database", t.DatabaseID)

	dsID, err := s.dataSourceID(ctx, t, token)
	if err != nil {
		logger.Warn("data source resolution failed", "error", err)
		return
	}

	pages, err := s.store.QueryDataSourceByTag(ctx, token, dsID, writer.TagReady)
	if err != nil {
		logger.Warn("ready query failed", "error", err)
		return
	}

	for i := range pages {
		page := &pages[i]
		sum.Pages++
		if s.promote(ctx, logger, page, token, t.DatabaseID) {
			sum.Recovered++
		} else {
			sum.Skipped++
		}
	}
}

// dataSourceID returns the cached data source id or resolves and caches it.
func (s *Sweeper) dataSourceID(ctx context.Context, t configstore.Target, token string) (string, error) {
	if t.DataSourceID != "" {
		return t.DataSourceID, nil
	}

	db, err := s.store.RetrieveDatabase(ctx, token, t.DatabaseID)
	if err != nil {
		return "", fmt.Errorf("retrieve database: %w", err)
	}
	if len(db.DataSources) == 0 {
		return "", fmt.Errorf("database %s has no data sources", t.DatabaseID)
	}

	dsID := db.DataSources[0]
	if err := s.configs.CacheDataSourceID(ctx, t.WorkspaceID, t.ChannelID, dsID); err != nil {
		s.logger.Debug("data source cache write failed", "error", err)
	}
	return dsID, nil
}

// promote turns one Ready artifact into a finished record. The artifact is
// archived only after the record page exists; on any earlier failure the page
// is left untouched for the human to retry.
func (s *Sweeper) promote(ctx context.Context, logger *slog.Logger, page *notion.Page, token, databaseID string) bool {
	logger = logger.With("page_id", page.ID)

	sourceLink := page.SourceLink()
	if sourceLink == "" {
		logger.Warn("artifact has no source link, skipping")
		return false
	}

	blocks, err := s.store.ListChildren(ctx, token, page.ID)
	if err != nil {
		logger.Warn("list artifact blocks failed", "error", err)
		return false
	}

	var raw string
	for _, b := range blocks {
		if notion.IsJSONCodeBlock(b) {
			raw = b.PlainText()
		}
	}
	if raw == "" {
		logger.Warn("artifact has no JSON block, skipping")
		return false
	}

	rec, err := record.Parse([]byte(raw))
	if err != nil {
		logger.Warn("artifact JSON rejected, skipping", "error", err)
		return false
	}

	created, err := s.records.WriteRecord(ctx, rec, sourceLink, writer.Target{Token: token, DatabaseID: databaseID})
	if err != nil {
		logger.Warn("record write failed, artifact kept", "error", err)
		return false
	}

	if err := s.store.ArchivePage(ctx, token, page.ID); err != nil {
		// The record exists; the stale artifact will be caught next sweep.
		logger.Warn("archive artifact failed", "record_page", created.ID, "error", err)
		return false
	}

	logger.Info("artifact recovered", "record_page", created.ID, "title", rec.Title)
	return true
}
