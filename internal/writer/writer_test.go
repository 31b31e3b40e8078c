package writer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/quill/internal/notion"
	"github.com/MikeSquared-Agency/quill/internal/notion/notiontest"
	"github.com/MikeSquared-Agency/quill/internal/record"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWriter(t *testing.T, srv *notiontest.Server, defaults Target) *Writer {
	t.Helper()
	client := notion.NewClient(discardLogger())
	client.SetTestBaseURL(srv.URL())
	w := New(client, defaults, discardLogger())
	w.now = func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) }
	return w
}

func testRecord(t *testing.T) *record.DecisionRecord {
	t.Helper()
	rec, err := record.Parse([]byte(`{
		"title": "Use Postgres",
		"tags": ["Database", "Infra"],
		"status": "Accepted",
		"context": "We need durable storage.",
		"decision": "Adopt Postgres.",
		"consequences": ["Operational overhead"]
	}`))
	if err != nil {
		t.Fatalf("parse record: %v", err)
	}
	return rec
}

func TestWriteRecord(t *testing.T) {
	srv := notiontest.NewServer(notiontest.Database{ID: "db-main", Title: "Team ADR Log"})
	defer srv.Close()
	w := newTestWriter(t, srv, Target{Token: "tok-default", DatabaseID: "db-main"})

	link := "https://slack.com/archives/C1/p1700000000000100"
	page, err := w.WriteRecord(context.Background(), testRecord(t), link, Target{})
	if err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}
	if page.URL == "" {
		t.Error("expected page URL to be populated")
	}

	stored := srv.Page(page.ID)
	if stored == nil {
		t.Fatal("page not stored")
	}
	if got := stored.PropertyTitle(notion.PropName); got != "Use Postgres" {
		t.Errorf("title property = %q", got)
	}
	if got := stored.PropertyTags(notion.PropTags); len(got) != 2 || got[0] != "Database" {
		t.Errorf("tags property = %v", got)
	}
	if got := stored.PropertyURL(notion.PropSourceLink); got != link {
		t.Errorf("source link property = %q", got)
	}
	if len(stored.Children) == 0 {
		t.Fatal("expected body blocks")
	}
	if stored.Children[0].Type != "callout" {
		t.Errorf("expected status callout first, got %s", stored.Children[0].Type)
	}
}

func TestWriteRecordNoFallback(t *testing.T) {
	srv := notiontest.NewServer(
		notiontest.Database{ID: "db-main", Title: "Team ADR Log"},
		notiontest.Database{ID: "db-alt", Title: "Other"},
	)
	defer srv.Close()
	srv.FailDatabases["db-main"] = true
	w := newTestWriter(t, srv, Target{Token: "tok-default", DatabaseID: "db-main"})

	_, err := w.WriteRecord(context.Background(), testRecord(t), "https://slack.com/archives/C1/p1", Target{})
	if err == nil {
		t.Fatal("expected error when the target database is unreachable")
	}
	if srv.CreateCalls["db-alt"] != 0 {
		t.Error("record write must not fall back to another database")
	}
}

func TestWriteRecordMissingTarget(t *testing.T) {
	srv := notiontest.NewServer()
	defer srv.Close()

	w := newTestWriter(t, srv, Target{})
	if _, err := w.WriteRecord(context.Background(), testRecord(t), "link", Target{Token: "tok"}); err == nil {
		t.Error("expected error with no database configured")
	}

	w = newTestWriter(t, srv, Target{})
	if _, err := w.WriteRecord(context.Background(), testRecord(t), "link", Target{DatabaseID: "db"}); err == nil {
		t.Error("expected error with no credential configured")
	}
}

func TestWriteErrorArtifactCreatesPendingPage(t *testing.T) {
	srv := notiontest.NewServer(notiontest.Database{ID: "db-main", Title: "Team ADR Log"})
	defer srv.Close()
	w := newTestWriter(t, srv, Target{Token: "tok-default", DatabaseID: "db-main"})

	link := "https://slack.com/archives/C1/p2"
	page, err := w.WriteErrorArtifact(context.Background(), "prompt text", link, Target{})
	if err != nil {
		t.Fatalf("WriteErrorArtifact() error = %v", err)
	}

	stored := srv.Page(page.ID)
	if got := stored.PropertyTitle(notion.PropName); got != "Error Log: 2026-03-14 09:26:53" {
		t.Errorf("artifact title = %q", got)
	}
	if got := stored.PropertyTags(notion.PropTags); len(got) != 1 || got[0] != TagPending {
		t.Errorf("artifact tags = %v", got)
	}
	if got := stored.PropertyURL(notion.PropSourceLink); got != link {
		t.Errorf("artifact source link = %q", got)
	}

	var hasJSON bool
	for _, b := range stored.Children {
		if notion.IsJSONCodeBlock(b) {
			hasJSON = true
		}
	}
	if !hasJSON {
		t.Error("expected repair JSON template block")
	}
}

func TestWriteErrorArtifactUpsertsBySourceLink(t *testing.T) {
	srv := notiontest.NewServer(notiontest.Database{ID: "db-main", Title: "Team ADR Log"})
	defer srv.Close()
	w := newTestWriter(t, srv, Target{Token: "tok-default", DatabaseID: "db-main"})

	link := "https://slack.com/archives/C1/p3"
	first, err := w.WriteErrorArtifact(context.Background(), "first prompt", link, Target{})
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	second, err := w.WriteErrorArtifact(context.Background(), "second prompt", link, Target{})
	if err != nil {
		t.Fatalf("second write: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("retry created a new page: %s vs %s", first.ID, second.ID)
	}
	if got := len(srv.PagesInDatabase("db-main")); got != 1 {
		t.Fatalf("expected a single artifact page, got %d", got)
	}
	if srv.CreateCalls["db-main"] != 1 {
		t.Errorf("expected one create call, got %d", srv.CreateCalls["db-main"])
	}

	// The retry replaces the body wholesale.
	stored := srv.Page(first.ID)
	var sawSecond, sawFirst bool
	for _, b := range stored.Children {
		text := b.PlainText()
		if strings.Contains(text, "second prompt") {
			sawSecond = true
		}
		if strings.Contains(text, "first prompt") {
			sawFirst = true
		}
	}
	if !sawSecond || sawFirst {
		t.Errorf("expected body replaced: sawSecond=%v sawFirst=%v", sawSecond, sawFirst)
	}
}

func TestWriteErrorArtifactFallsBackToSearchedDatabase(t *testing.T) {
	srv := notiontest.NewServer(
		notiontest.Database{ID: "db-broken", Title: "Broken"},
		notiontest.Database{ID: "db-notes", Title: "Meeting Notes"},
		notiontest.Database{ID: "db-adr", Title: "Team ADR Log"},
	)
	defer srv.Close()
	srv.FailDatabases["db-broken"] = true
	w := newTestWriter(t, srv, Target{})

	page, err := w.WriteErrorArtifact(context.Background(), "prompt", "https://slack.com/archives/C1/p4",
		Target{Token: "tok-channel", DatabaseID: "db-broken"})
	if err != nil {
		t.Fatalf("WriteErrorArtifact() error = %v", err)
	}

	stored := srv.Page(page.ID)
	if stored.DatabaseID != "db-adr" {
		t.Errorf("fallback landed in %s, want the keyword-matched database", stored.DatabaseID)
	}
	if got := stored.PropertyTitle(notion.PropName); !strings.HasPrefix(got, "Error Log (Fallback): ") {
		t.Errorf("fallback title = %q", got)
	}
}

func TestWriteErrorArtifactFallbackRetryKeepsPlainTitle(t *testing.T) {
	srv := notiontest.NewServer(
		notiontest.Database{ID: "db-broken", Title: "Broken"},
		notiontest.Database{ID: "db-adr", Title: "Team ADR Log"},
	)
	defer srv.Close()
	srv.FailDatabases["db-broken"] = true
	w := newTestWriter(t, srv, Target{})

	link := "https://slack.com/archives/C1/p7"
	seeded := srv.SeedPage("db-adr", notion.Properties{
		notion.PropName:       notion.TitleProperty("Error Log (Fallback): 2026-03-13 08:00:00"),
		notion.PropTags:       notion.MultiSelectProperty([]string{TagPending}),
		notion.PropSourceLink: notion.URLProperty(link),
	}, nil)

	page, err := w.WriteErrorArtifact(context.Background(), "prompt", link,
		Target{Token: "tok-channel", DatabaseID: "db-broken"})
	if err != nil {
		t.Fatalf("WriteErrorArtifact() error = %v", err)
	}
	if page.ID != seeded.ID {
		t.Fatalf("expected upsert onto the seeded page, got %s", page.ID)
	}

	// The fallback marker only tags freshly created pages.
	if got := srv.Page(seeded.ID).PropertyTitle(notion.PropName); got != "Error Log: 2026-03-14 09:26:53" {
		t.Errorf("retry title = %q", got)
	}
}

func TestWriteErrorArtifactFallsBackToDefaults(t *testing.T) {
	srv := notiontest.NewServer(
		notiontest.Database{ID: "db-main", Title: "Team ADR Log"},
	)
	defer srv.Close()
	srv.FailTokens["tok-channel"] = true
	w := newTestWriter(t, srv, Target{Token: "tok-default", DatabaseID: "db-main"})

	page, err := w.WriteErrorArtifact(context.Background(), "prompt", "https://slack.com/archives/C1/p5",
		Target{Token: "tok-channel", DatabaseID: "db-channel"})
	if err != nil {
		t.Fatalf("WriteErrorArtifact() error = %v", err)
	}

	stored := srv.Page(page.ID)
	if stored.DatabaseID != "db-main" {
		t.Errorf("artifact landed in %s, want the default database", stored.DatabaseID)
	}
}

func TestWriteErrorArtifactExhaustedChain(t *testing.T) {
	srv := notiontest.NewServer()
	defer srv.Close()
	srv.FailTokens["tok-channel"] = true
	srv.FailTokens["tok-default"] = true
	w := newTestWriter(t, srv, Target{Token: "tok-default", DatabaseID: "db-main"})

	_, err := w.WriteErrorArtifact(context.Background(), "prompt", "https://slack.com/archives/C1/p6",
		Target{Token: "tok-channel", DatabaseID: "db-channel"})
	if err == nil {
		t.Fatal("expected error after exhausting the fallback chain")
	}
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected *WriteError, got %T", err)
	}
	if len(werr.Attempts) < 3 {
		t.Errorf("expected the full attempt trail, got %d attempts", len(werr.Attempts))
	}
}
