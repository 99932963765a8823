// Package reply turns a guest question into a grounded answer.
package reply

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gostly/gostly-backend/internal/phrases"
	"github.com/gostly/gostly-backend/pkg/logger"
)

// Completer is the completion API collaborator.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Observer records completion latency by result.
type Observer interface {
	ObserveCompletion(result string, d time.Duration)
}

// Request is one generation call.
type Request struct {
	PropertyName  string
	KnowledgeText string
	Question      string
	Language      phrases.Language
}

// Result is the generated text, or the technical fallback when Technical is set.
type Result struct {
	Text      string
	Technical bool
}

// Generator calls the completion API and maps failures to the technical fallback.
type Generator struct {
	completer Completer
	truncator *Truncator
	observer  Observer
	logg      *logger.Logger
}

type GeneratorParams struct {
	Completer Completer
	Truncator *Truncator
	Observer  Observer
	Logger    *logger.Logger
}

func NewGenerator(params GeneratorParams) *Generator {
	return &Generator{
		completer: params.Completer,
		truncator: params.Truncator,
		observer:  params.Observer,
		logg:      params.Logger,
	}
}

// Generate never returns an error. The completion call is expected to carry
// its own timeout.
func (g *Generator) Generate(ctx context.Context, req Request) Result {
	technical := Result{Text: phrases.Technical(req.Language), Technical: true}
	if g == nil || g.completer == nil {
		return technical
	}

	system := BuildSystemPrompt(PromptInput{
		PropertyName:  req.PropertyName,
		KnowledgeText: g.truncator.Truncate(req.KnowledgeText),
		Language:      req.Language,
	})

	started := time.Now()
	text, err := g.completer.Complete(ctx, system, req.Question)
	elapsed := time.Since(started)

	text = strings.TrimSpace(text)
	switch {
	case err != nil:
		g.observe("error", elapsed)
		if g.logg != nil {
			g.logg.Error(ctx, "completion failed", err)
		}
		return technical
	case text == "":
		g.observe("empty", elapsed)
		if g.logg != nil {
			g.logg.Warn(ctx, fmt.Sprintf("completion returned no text after %s", elapsed))
		}
		return technical
	}

	g.observe("ok", elapsed)
	return Result{Text: text}
}

func (g *Generator) observe(result string, d time.Duration) {
	if g.observer != nil {
		g.observer.ObserveCompletion(result, d)
	}
}
