// Package refine optionally rewrites a composed commit message with a remote
// language model. Refinement is best effort: any failure returns the composed
// message unchanged.
package refine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/samzong/gco/internal/config"
	"github.com/samzong/gco/internal/diffsum"
	"github.com/samzong/gco/internal/llm"
	"github.com/samzong/gco/internal/message"
)

// Refiner turns a composed message into a possibly better one. It never
// fails: when the backend cannot help it returns msg and false. True means
// the backend's reply was used, even if it matches msg.
type Refiner interface {
	Refine(ctx context.Context, msg message.Commit, in message.Input) (message.Commit, bool)
}

// Passthrough returns messages unchanged.
type Passthrough struct{}

func (Passthrough) Refine(_ context.Context, msg message.Commit, _ message.Input) (message.Commit, bool) {
	return msg, false
}

// Generator produces a completion for a system and user prompt.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Remote asks a Generator for a rewrite and accepts it only in two-part form.
type Remote struct {
	gen      Generator
	template PromptTemplate
	log      *slog.Logger
}

func NewRemote(gen Generator, tpl PromptTemplate, log *slog.Logger) *Remote {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Remote{gen: gen, template: tpl, log: log}
}

func (r *Remote) Refine(ctx context.Context, msg message.Commit, in message.Input) (message.Commit, bool) {
	prompt, err := RenderTemplate(r.template.Template, templateData(msg, in))
	if err != nil {
		r.log.Warn("message refinement skipped", "reason", "prompt template", "err", err)
		return msg, false
	}

	raw, err := r.gen.Generate(ctx, r.template.System, prompt)
	if err != nil {
		r.log.Warn("message refinement failed; using composed message", "err", err)
		return msg, false
	}

	refined, ok := message.Parse(raw)
	if !ok {
		r.log.Warn("message refinement reply rejected; using composed message", "reason", "not subject, blank line, body")
		return msg, false
	}
	refined.Subject = message.TruncateSubject(refined.Subject, message.MaxSubjectLength)
	if refined.Subject == "" {
		r.log.Warn("message refinement reply rejected; using composed message", "reason", "subject has no word boundary within the limit")
		return msg, false
	}
	r.log.Debug("message refined", "subject", refined.Subject)
	return refined, true
}

func templateData(msg message.Commit, in message.Input) TemplateData {
	sum := in.Summary
	scope := in.Scope
	if scope == "" {
		scope = "all changes"
	}

	var files []string
	for _, f := range sum.Files {
		files = append(files, fmt.Sprintf("- %s (%s)", f.Path, f.Status))
	}
	var headings []string
	for _, h := range sum.AddedHeadings {
		headings = append(headings, "+ "+h)
	}
	for _, e := range sum.EditedHeadings {
		headings = append(headings, fmt.Sprintf("~ %s -> %s", e.Old, e.New))
	}

	return TemplateData{
		Scope:    scope,
		Label:    in.Label,
		Subject:  msg.Subject,
		Body:     msg.Body,
		Stats:    stats(sum),
		Files:    strings.Join(files, "\n"),
		Headings: strings.Join(headings, "\n"),
	}
}

func stats(sum diffsum.Summary) string {
	return fmt.Sprintf("%d files changed, %d insertions(+), %d deletions(-)", sum.FilesChanged, sum.Insertions, sum.Deletions)
}

// New picks a Refiner for cfg. The returned note is non-empty when
// refinement was requested but cannot run.
func New(cfg *config.Config, log *slog.Logger) (Refiner, string) {
	if cfg == nil || !cfg.LLMEnabled {
		return Passthrough{}, ""
	}
	if !strings.EqualFold(cfg.LLMProvider, config.DefaultProvider) {
		return Passthrough{}, fmt.Sprintf("message refinement skipped: unsupported provider %q", cfg.LLMProvider)
	}
	if cfg.APIKey == "" {
		return Passthrough{}, "message refinement skipped: no API key configured"
	}

	tpl, err := GetPromptTemplate(cfg.PromptTemplate)
	if err != nil {
		if log != nil {
			log.Warn("prompt template unavailable; using default", "template", cfg.PromptTemplate, "err", err)
		}
		tpl, _ = GetPromptTemplate(config.DefaultPromptTemplate)
	}

	client := llm.NewClient(llm.Options{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.APIBase,
		Model:     cfg.Model,
		Timeout:   cfg.LLMTimeout(),
		MaxTokens: cfg.MaxTokens,
	})
	return NewRemote(client, tpl, log), ""
}
