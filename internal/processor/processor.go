// Package processor orchestrates quill's reaction-to-record pipeline: a
// reaction event comes in off the bus, the thread is resolved, a record is
// generated, and the finished page is written and announced.
package processor

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/quill/internal/configstore"
	"github.com/MikeSquared-Agency/quill/internal/generator"
	"github.com/MikeSquared-Agency/quill/internal/hermes"
	"github.com/MikeSquared-Agency/quill/internal/notion"
	"github.com/MikeSquared-Agency/quill/internal/record"
	"github.com/MikeSquared-Agency/quill/internal/slack"
	"github.com/MikeSquared-Agency/quill/internal/thread"
	"github.com/MikeSquared-Agency/quill/internal/writer"
)

// defaultTriggerEmoji is used when the channel config does not set one.
const defaultTriggerEmoji = "decision"

// User-facing replies for unconfigured channels and empty threads.
const (
	replyNotConnected = "⚠️ Notion is not connected for this workspace. Ask an admin to connect it before tagging threads."
	replyNoDatabase   = "⚠️ No Notion database is configured for this channel. Pick one in the app settings first."
	replyEmptyThread  = "Nothing to process in this thread."
)

// ConfigSource resolves channel and workspace configuration.
type ConfigSource interface {
	GetChannelTarget(ctx context.Context, workspaceID, channelID string) (*configstore.Target, error)
	GetWorkspaceTarget(ctx context.Context, workspaceID string) (*configstore.Target, error)
}

// Messenger posts threaded replies back to Slack.
type Messenger interface {
	PostMessage(ctx context.Context, channel, threadTS, text string) error
}

// RecordGenerator produces a validated record from thread text.
type RecordGenerator interface {
	Generate(ctx context.Context, threadText, sourceLink string, opts generator.Options) (*record.DecisionRecord, error)
}

// RecordWriter writes a finished record page.
type RecordWriter interface {
	WriteRecord(ctx context.Context, rec *record.DecisionRecord, sourceLink string, target writer.Target) (*notion.Page, error)
}

// Publisher announces pipeline outcomes on the bus.
type Publisher interface {
	Publish(subject string, data any) error
}

type Processor struct {
	configs   ConfigSource
	resolver  *thread.Resolver
	generator RecordGenerator
	writer    RecordWriter
	messenger Messenger
	publisher Publisher
	logger    *slog.Logger
}

func New(configs ConfigSource, resolver *thread.Resolver, gen RecordGenerator, w RecordWriter, messenger Messenger, publisher Publisher, logger *slog.Logger) *Processor {
	return &Processor{
		configs:   configs,
		resolver:  resolver,
		generator: gen,
		writer:    w,
		messenger: messenger,
		publisher: publisher,
		logger:    logger,
	}
}

// HandleReaction is the NATS handler for hermes.SubjectReaction. Errors are
// handled in-band: the user hears about them in the thread, the bus hears
// about them on the failed subject, and the handler itself never panics the
// subscription.
func (p *Processor) HandleReaction(subject string, data []byte) {
	ctx := context.Background()
	pipelineID := uuid.New().String()[:8]
	logger := p.logger.With("pipeline_id", pipelineID)

	evt, err := slack.ParseReactionEvent(data)
	if err != nil {
		logger.Error("failed to parse reaction event", "error", err)
		return
	}
	logger = logger.With("workspace", evt.WorkspaceID, "channel", evt.Channel, "ts", evt.MessageTS)

	channelCfg, err := p.configs.GetChannelTarget(ctx, evt.WorkspaceID, evt.Channel)
	if err != nil {
		logger.Error("channel config lookup failed", "error", err)
		return
	}

	trigger := defaultTriggerEmoji
	if channelCfg != nil && channelCfg.TriggerEmoji != "" {
		trigger = channelCfg.TriggerEmoji
	}
	if evt.Reaction != trigger {
		logger.Debug("ignoring reaction", "reaction", evt.Reaction, "trigger", trigger)
		return
	}

	logger.Info("processing reaction trigger", "reaction", evt.Reaction)

	target, ok := p.resolveTarget(ctx, logger, evt, channelCfg)
	if !ok {
		return
	}

	th, err := p.resolver.Resolve(ctx, evt.Channel, evt.MessageTS)
	if err != nil {
		if errors.Is(err, thread.ErrEmptyThread) {
			p.reply(ctx, logger, evt.Channel, evt.MessageTS, replyEmptyThread)
		} else {
			logger.Error("thread resolution failed", "error", err)
		}
		return
	}

	sourceLink := slack.SourceLink(evt.Channel, th.RootTS)

	var geminiKey string
	if channelCfg != nil {
		geminiKey = channelCfg.GeminiAPIKey
	}

	rec, err := p.generator.Generate(ctx, th.Text(), sourceLink, generator.Options{
		APIKey:   geminiKey,
		Artifact: target,
	})
	if err != nil {
		p.announceFailure(ctx, logger, evt, th.RootTS, pipelineID, err)
		return
	}

	page, err := p.writer.WriteRecord(ctx, rec, sourceLink, target)
	if err != nil {
		p.announceFailure(ctx, logger, evt, th.RootTS, pipelineID, err)
		return
	}

	p.publish(logger, hermes.SubjectRecordCreated, hermes.RecordCreated{
		PipelineID: pipelineID,
		Workspace:  evt.WorkspaceID,
		Channel:    evt.Channel,
		PageID:     page.ID,
		PageURL:    page.URL,
		Title:      rec.Title,
		Tags:       rec.Tags,
	})
	p.reply(ctx, logger, evt.Channel, th.RootTS, "✅ "+thread.NoticeCreated+":\n"+page.URL)
	logger.Info("record pipeline finished", "page_id", page.ID, "title", rec.Title)
}

// resolveTarget walks the credential chain: channel config, then workspace
// config. A channel with no reachable credential or database gets a threaded
// hint instead of a silent drop.
func (p *Processor) resolveTarget(ctx context.Context, logger *slog.Logger, evt *slack.ReactionEvent, channelCfg *configstore.Target) (writer.Target, bool) {
	var target writer.Target
	if channelCfg != nil {
		target.Token = channelCfg.AccessToken
		target.DatabaseID = channelCfg.DatabaseID
	}

	if target.Token == "" || target.DatabaseID == "" {
		ws, err := p.configs.GetWorkspaceTarget(ctx, evt.WorkspaceID)
		if err != nil {
			logger.Error("workspace config lookup failed", "error", err)
			return target, false
		}
		if ws != nil {
			if target.Token == "" {
				target.Token = ws.AccessToken
			}
			if target.DatabaseID == "" {
				target.DatabaseID = ws.DatabaseID
			}
		}
	}

	if target.Token == "" {
		p.reply(ctx, logger, evt.Channel, evt.MessageTS, replyNotConnected)
		return target, false
	}
	if target.DatabaseID == "" {
		p.reply(ctx, logger, evt.Channel, evt.MessageTS, replyNoDatabase)
		return target, false
	}
	return target, true
}

func (p *Processor) announceFailure(ctx context.Context, logger *slog.Logger, evt *slack.ReactionEvent, rootTS, pipelineID string, cause error) {
	logger.Error("record pipeline failed", "error", cause)

	failed := hermes.RecordFailed{
		PipelineID: pipelineID,
		Workspace:  evt.WorkspaceID,
		Channel:    evt.Channel,
		Error:      cause.Error(),
	}
	var genErr *generator.GenerationError
	if errors.As(cause, &genErr) {
		failed.ArtifactURL = genErr.ArtifactURL
	}
	p.publish(logger, hermes.SubjectRecordFailed, failed)

	p.reply(ctx, logger, evt.Channel, rootTS, "❌ "+thread.NoticeFailed+": "+cause.Error())
}

func (p *Processor) reply(ctx context.Context, logger *slog.Logger, channel, threadTS, text string) {
	if p.messenger == nil {
		return
	}
	if err := p.messenger.PostMessage(ctx, channel, threadTS, text); err != nil {
		logger.Error("slack reply failed", "error", err)
	}
}

func (p *Processor) publish(logger *slog.Logger, subject string, payload any) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(subject, payload); err != nil {
		logger.Error("bus publish failed", "subject", subject, "error", err)
	}
}
