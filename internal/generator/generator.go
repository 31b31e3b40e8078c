// Package generator turns a resolved Slack thread into a validated decision
// record, checkpointing every failure as a durable error artifact so no
// triggered thread is ever silently lost.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/quill/internal/gemini"
	"github.com/MikeSquared-Agency/quill/internal/notion"
	"github.com/MikeSquared-Agency/quill/internal/record"
	"github.com/MikeSquared-Agency/quill/internal/writer"
)

// ErrMissingCredential means no API key was configured for the channel and no
// process default exists.
var ErrMissingCredential = errors.New("no generation API key configured")

// ArtifactWriter checkpoints a failed generation attempt.
type ArtifactWriter interface {
	WriteErrorArtifact(ctx context.Context, promptText, sourceLink string, target writer.Target) (*notion.Page, error)
}

// GenerationError wraps a failed generation attempt together with the URL of
// the error artifact that checkpoints it, when one could be written.
type GenerationError struct {
	Cause       error
	ArtifactURL string
}

func (e *GenerationError) Error() string {
	msg := "AI generation failed: " + e.Cause.Error()
	if e.ArtifactURL != "" {
		msg += fmt.Sprintf(
			"\nAn error log was saved: %s\nPaste the corrected JSON into the page and tag it %q to recover it.",
			e.ArtifactURL, writer.TagReady)
	}
	return msg
}

func (e *GenerationError) Unwrap() error { return e.Cause }

type Generator struct {
	llm           *gemini.Client
	artifacts     ArtifactWriter
	defaultAPIKey string
	logger        *slog.Logger
}

// Options carries per-invocation overrides resolved from channel config.
type Options struct {
	// APIKey overrides the process default when set.
	APIKey string
	// Artifact is the preferred destination for error artifacts.
	Artifact writer.Target
}

func New(llm *gemini.Client, artifacts ArtifactWriter, defaultAPIKey string, logger *slog.Logger) *Generator {
	return &Generator{
		llm:           llm,
		artifacts:     artifacts,
		defaultAPIKey: defaultAPIKey,
		logger:        logger,
	}
}

// Generate produces a validated decision record for the thread text. Any
// failure, from a missing credential to unparseable model output, is
// checkpointed as an artifact before the error is returned.
func (g *Generator) Generate(ctx context.Context, threadText, sourceLink string, opts Options) (*record.DecisionRecord, error) {
	prompt := buildPrompt(threadText)

	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = g.defaultAPIKey
	}
	if apiKey == "" {
		return nil, g.checkpoint(ctx, prompt, sourceLink, opts.Artifact, ErrMissingCredential)
	}

	raw, err := g.llm.GenerateJSON(ctx, apiKey, prompt, recordSchema())
	if err != nil {
		return nil, g.checkpoint(ctx, prompt, sourceLink, opts.Artifact, fmt.Errorf("model call: %w", err))
	}

	rec, err := record.Parse([]byte(raw))
	if err != nil {
		g.logger.Warn("model output rejected", "error", err, "source", sourceLink)
		return nil, g.checkpoint(ctx, prompt, sourceLink, opts.Artifact, fmt.Errorf("invalid model output: %w", err))
	}

	g.logger.Info("record generated", "title", rec.Title, "tags", rec.Tags, "source", sourceLink)
	return rec, nil
}

// checkpoint writes the error artifact and wraps cause into the error the
// caller surfaces to the user.
func (g *Generator) checkpoint(ctx context.Context, prompt, sourceLink string, target writer.Target, cause error) error {
	genErr := &GenerationError{Cause: cause}

	page, err := g.artifacts.WriteErrorArtifact(ctx, prompt, sourceLink, target)
	if err != nil {
		g.logger.Error("error artifact write failed", "error", err, "source", sourceLink)
		return genErr
	}

	genErr.ArtifactURL = page.URL
	g.logger.Info("error artifact checkpointed", "page_id", page.ID, "source", sourceLink)
	return genErr
}
