// Package writer renders decision records and error artifacts into block
// documents and commits them to the document store, applying the
// upsert-by-source-link rule and the credential/target fallback chain.
package writer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/quill/internal/notion"
	"github.com/MikeSquared-Agency/quill/internal/record"
)

// databaseKeyword marks the database a fallback search prefers when the
// requested target is unreachable.
const databaseKeyword = "ADR"

// Target is one (credential, database) destination for a write.
type Target struct {
	Token      string
	DatabaseID string
}

// Attempt records one failed write in the fallback chain.
type Attempt struct {
	Tier       string
	DatabaseID string
	Err        error
}

// WriteError reports an exhausted fallback chain, keeping the per-tier trail.
type WriteError struct {
	Attempts []Attempt
}

func (e *WriteError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s db=%s: %v", a.Tier, a.DatabaseID, a.Err))
	}
	return fmt.Sprintf("document write failed after %d attempts: %s", len(e.Attempts), strings.Join(parts, "; "))
}

type Writer struct {
	notion   *notion.Client
	defaults Target
	logger   *slog.Logger
	now      func() time.Time
}

// New builds a Writer. defaults is the process-wide credential/database pair,
// the last tier of the artifact fallback chain.
func New(client *notion.Client, defaults Target, logger *slog.Logger) *Writer {
	return &Writer{
		notion:   client,
		defaults: defaults,
		logger:   logger,
		now:      time.Now,
	}
}

// WriteRecord renders rec and creates a finished record page at target. There
// is no fallback on this path: a finished record either lands where it was
// asked to go or the caller hears about it.
func (w *Writer) WriteRecord(ctx context.Context, rec *record.DecisionRecord, sourceLink string, target Target) (*notion.Page, error) {
	target = w.withDefaults(target)
	if target.DatabaseID == "" {
		return nil, fmt.Errorf("no target database configured")
	}
	if target.Token == "" {
		return nil, fmt.Errorf("no document store credential configured")
	}

	props := notion.Properties{
		notion.PropName:       notion.TitleProperty(record.Sanitize(rec.Title)),
		notion.PropTags:       notion.MultiSelectProperty(rec.Tags),
		notion.PropSourceLink: notion.URLProperty(sourceLink),
	}

	page, err := w.notion.CreatePage(ctx, target.Token, target.DatabaseID, props, recordChildren(rec, sourceLink))
	if err != nil {
		return nil, fmt.Errorf("create record page: %w", err)
	}

	w.logger.Info("record page created",
		"page_id", page.ID,
		"database", target.DatabaseID,
		"title", rec.Title,
	)
	return page, nil
}

// WriteErrorArtifact durably checkpoints a failed generation attempt. The
// artifact must not be lost, so the write walks the fallback chain: the
// requested target, then any database reachable with the same credential,
// then the process defaults.
func (w *Writer) WriteErrorArtifact(ctx context.Context, promptText, sourceLink string, target Target) (*notion.Page, error) {
	children := artifactChildren(promptText)
	stamp := w.now().UTC().Format("2006-01-02 15:04:05")
	explicitToken := target.Token != ""
	requested := w.withDefaults(target)

	var werr WriteError
	fail := func(tier, db string, err error) {
		w.logger.Warn("artifact write attempt failed", "tier", tier, "database", db, "error", err)
		werr.Attempts = append(werr.Attempts, Attempt{Tier: tier, DatabaseID: db, Err: err})
	}

	// Tier 1: the requested target.
	if requested.Token != "" && requested.DatabaseID != "" {
		page, err := w.upsertArtifact(ctx, requested, sourceLink, children, stamp, false)
		if err == nil {
			return page, nil
		}
		fail("target", requested.DatabaseID, err)
	} else {
		fail("target", requested.DatabaseID, fmt.Errorf("credential or database missing"))
	}

	// Tier 2: any database reachable with the explicitly supplied credential.
	if explicitToken {
		altDB, err := w.findBestDatabase(ctx, target.Token)
		switch {
		case err != nil:
			fail("credential-search", "", err)
		case altDB == "" || altDB == requested.DatabaseID:
			fail("credential-search", altDB, fmt.Errorf("no alternative database reachable"))
		default:
			page, err := w.upsertArtifact(ctx, Target{Token: target.Token, DatabaseID: altDB}, sourceLink, children, stamp, true)
			if err == nil {
				return page, nil
			}
			fail("credential-search", altDB, err)
		}
	}

	// Tier 3: the process's own defaults, direct then searched.
	if w.defaults.Token != "" && (requested.Token != w.defaults.Token || requested.DatabaseID != w.defaults.DatabaseID) {
		if w.defaults.DatabaseID != "" {
			page, err := w.upsertArtifact(ctx, w.defaults, sourceLink, children, stamp, true)
			if err == nil {
				return page, nil
			}
			fail("default", w.defaults.DatabaseID, err)
		}

		altDB, err := w.findBestDatabase(ctx, w.defaults.Token)
		switch {
		case err != nil:
			fail("default-search", "", err)
		case altDB == "" || altDB == w.defaults.DatabaseID:
			fail("default-search", altDB, fmt.Errorf("no alternative database reachable"))
		default:
			page, err := w.upsertArtifact(ctx, Target{Token: w.defaults.Token, DatabaseID: altDB}, sourceLink, children, stamp, true)
			if err == nil {
				return page, nil
			}
			fail("default-search", altDB, err)
		}
	}

	return nil, &werr
}

// upsertArtifact converges retried artifact writes for one source link onto a
// single page: an existing page is fully replaced, otherwise one is created
// with the source-link property set so future retries can find it.
func (w *Writer) upsertArtifact(ctx context.Context, target Target, sourceLink string, children []notion.Block, stamp string, fallback bool) (*notion.Page, error) {
	existingID, err := w.notion.FindPageBySourceLink(ctx, target.Token, target.DatabaseID, sourceLink)
	if err != nil {
		// A failed lookup is not fatal; fall through to creation and let that
		// attempt decide the tier's fate.
		w.logger.Debug("source-link lookup failed", "database", target.DatabaseID, "error", err)
		existingID = ""
	}

	if existingID != "" {
		// A retry onto an existing page keeps the plain title; the fallback
		// marker only tags pages born off-tier.
		props := notion.Properties{
			notion.PropName: notion.TitleProperty("Error Log: " + stamp),
			notion.PropTags: notion.MultiSelectProperty([]string{TagPending}),
		}
		if err := w.notion.UpdatePageProperties(ctx, target.Token, existingID, props); err != nil {
			return nil, fmt.Errorf("update artifact properties: %w", err)
		}
		if err := w.notion.ReplaceChildren(ctx, target.Token, existingID, children); err != nil {
			return nil, fmt.Errorf("replace artifact blocks: %w", err)
		}
		page, err := w.notion.RetrievePage(ctx, target.Token, existingID)
		if err != nil {
			return nil, fmt.Errorf("retrieve updated artifact: %w", err)
		}
		w.logger.Info("artifact page updated", "page_id", existingID, "database", target.DatabaseID)
		return page, nil
	}

	title := "Error Log: " + stamp
	if fallback {
		title = "Error Log (Fallback): " + stamp
	}
	props := notion.Properties{
		notion.PropName:       notion.TitleProperty(title),
		notion.PropTags:       notion.MultiSelectProperty([]string{TagPending}),
		notion.PropSourceLink: notion.URLProperty(sourceLink),
	}
	page, err := w.notion.CreatePage(ctx, target.Token, target.DatabaseID, props, children)
	if err != nil {
		return nil, fmt.Errorf("create artifact page: %w", err)
	}
	w.logger.Info("artifact page created", "page_id", page.ID, "database", target.DatabaseID)
	return page, nil
}

// findBestDatabase picks a database reachable with token, preferring a title
// containing the domain keyword, otherwise the first result.
func (w *Writer) findBestDatabase(ctx context.Context, token string) (string, error) {
	dbs, err := w.notion.ListDatabases(ctx, token)
	if err != nil {
		return "", fmt.Errorf("list databases: %w", err)
	}
	if len(dbs) == 0 {
		return "", nil
	}
	for _, db := range dbs {
		if strings.Contains(strings.ToUpper(db.Title), databaseKeyword) {
			return db.ID, nil
		}
	}
	return dbs[0].ID, nil
}

func (w *Writer) withDefaults(target Target) Target {
	if target.Token == "" {
		target.Token = w.defaults.Token
	}
	if target.DatabaseID == "" {
		target.DatabaseID = w.defaults.DatabaseID
	}
	return target
}
