// Package inbound runs one guest WhatsApp message through resolution,
// metering, generation, escalation and logging.
package inbound

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gostly/gostly-backend/internal/conversations"
	"github.com/gostly/gostly-backend/internal/escalation"
	"github.com/gostly/gostly-backend/internal/notifications"
	"github.com/gostly/gostly-backend/internal/phrases"
	"github.com/gostly/gostly-backend/internal/properties"
	"github.com/gostly/gostly-backend/internal/reply"
	"github.com/gostly/gostly-backend/internal/usage"
	"github.com/gostly/gostly-backend/pkg/db/models"
	pkgerrors "github.com/gostly/gostly-backend/pkg/errors"
	"github.com/gostly/gostly-backend/pkg/logger"
	"github.com/gostly/gostly-backend/pkg/metrics"
	"github.com/gostly/gostly-backend/pkg/tasks"
)

// Stage is the last state a message reached.
type Stage string

const (
	StageReceived            Stage = "received"
	StageParsed              Stage = "parsed"
	StageTenantResolved      Stage = "tenant_resolved"
	StageQuotaChecked        Stage = "quota_checked"
	StageReplyGenerated      Stage = "reply_generated"
	StageEscalationEvaluated Stage = "escalation_evaluated"
	StageResponded           Stage = "responded"
)

// Reason explains a rejection or a degraded reply.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonMalformed    Reason = "malformed"
	ReasonUnknownCode  Reason = "unknown_code"
	ReasonLookupError  Reason = "lookup_error"
	ReasonNoPlan       Reason = "no_plan"
	ReasonLimitReached Reason = "limit_reached"
	ReasonQuotaError   Reason = "quota_error"
	ReasonTechnical    Reason = "technical"
	ReasonPanic        Reason = "panic"
)

// Outcome is the terminal state of one message. Rejected is set when the
// message stopped before reply generation.
type Outcome struct {
	Stage     Stage
	Reason    Reason
	Rejected  bool
	Escalated bool
	Trigger   escalation.Trigger
}

// Label is the metric label for the outcome.
func (o Outcome) Label() string {
	switch {
	case o.Reason != ReasonNone:
		return string(o.Reason)
	case o.Escalated:
		return "escalated"
	default:
		return "answered"
	}
}

// Message is the provider-neutral inbound message.
type Message struct {
	Body       string
	From       string
	To         string
	MessageSID string
}

type Response struct {
	Text     string
	Language phrases.Language
	Outcome  Outcome
}

// Options replaces ambient toggles with explicit settings.
type Options struct {
	UsageIncrement int
	RequestTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.UsageIncrement <= 0 {
		o.UsageIncrement = 1
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 20 * time.Second
	}
	return o
}

type quotaGate interface {
	CheckAndIncrement(ctx context.Context, ownerID uuid.UUID, increment int) (usage.Decision, error)
}

type generator interface {
	Generate(ctx context.Context, req reply.Request) reply.Result
}

type notifier interface {
	Notify(ctx context.Context, h notifications.Handoff) (bool, error)
}

type submitter interface {
	Submit(ctx context.Context, name string, fn tasks.Func)
}

type Params struct {
	Options   Options
	Resolver  properties.Resolver
	Gate      quotaGate
	Generator generator
	Policy    escalation.Policy
	Notifier  notifier
	Log       conversations.Logger
	Tasks     submitter
	Metrics   *metrics.PipelineMetrics
	Logger    *logger.Logger
}

// Pipeline handles one inbound guest message end to end. Handle never fails;
// every branch yields a guest-facing text.
type Pipeline struct {
	opts      Options
	resolver  properties.Resolver
	gate      quotaGate
	generator generator
	policy    escalation.Policy
	notifier  notifier
	log       conversations.Logger
	tasks     submitter
	metrics   *metrics.PipelineMetrics
	logg      *logger.Logger
}

func NewPipeline(params Params) (*Pipeline, error) {
	switch {
	case params.Resolver == nil:
		return nil, errors.New("tenant resolver is required")
	case params.Gate == nil:
		return nil, errors.New("usage gate is required")
	case params.Generator == nil:
		return nil, errors.New("reply generator is required")
	case params.Notifier == nil:
		return nil, errors.New("notifier is required")
	case params.Log == nil:
		return nil, errors.New("conversation logger is required")
	case params.Tasks == nil:
		return nil, errors.New("task runner is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	}
	policy := params.Policy
	if policy == nil {
		policy = escalation.NewKeywordPolicy()
	}
	return &Pipeline{
		opts:      params.Options.withDefaults(),
		resolver:  params.Resolver,
		gate:      params.Gate,
		generator: params.Generator,
		policy:    policy,
		notifier:  params.Notifier,
		log:       params.Log,
		tasks:     params.Tasks,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

func (p *Pipeline) Handle(ctx context.Context, msg Message) (resp Response) {
	ctx = p.logg.WithSender(ctx, msg.From)
	if msg.MessageSID != "" {
		ctx = p.logg.WithField(ctx, "message_sid", msg.MessageSID)
	}

	defer func() {
		if rec := recover(); rec != nil {
			lang := reply.DetectLanguage(msg.Body)
			p.logg.Error(ctx, "inbound pipeline panic", fmt.Errorf("panic: %v", rec))
			resp = Response{
				Text:     phrases.Unavailable(lang),
				Language: lang,
				Outcome:  Outcome{Stage: StageReceived, Reason: ReasonPanic, Rejected: true},
			}
		}
		p.metrics.IncOutcome(resp.Outcome.Label())
		logCtx := p.logg.WithFields(ctx, map[string]any{
			"stage":   resp.Outcome.Stage,
			"outcome": resp.Outcome.Label(),
		})
		p.logg.Info(logCtx, "inbound message handled")
	}()

	ctx, cancel := context.WithTimeout(ctx, p.opts.RequestTimeout)
	defer cancel()

	return p.handle(ctx, msg)
}

func (p *Pipeline) handle(ctx context.Context, msg Message) Response {
	code, question, ok := properties.ParseInbound(msg.Body)
	if !ok {
		lang := reply.DetectLanguage(msg.Body)
		return rejected(StageReceived, ReasonMalformed, lang, phrases.MissingCode(lang))
	}
	ctx = p.logg.WithField(ctx, "property_code", code)

	property, err := p.resolver.ResolveByCode(ctx, code)
	if err != nil {
		lang := reply.DetectLanguage(question)
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return rejected(StageParsed, ReasonUnknownCode, lang, phrases.UnknownCode(lang, code))
		}
		p.logg.Error(ctx, "tenant lookup failed", err)
		return rejected(StageParsed, ReasonLookupError, lang, phrases.Unavailable(lang))
	}
	ctx = p.logg.WithPropertyID(ctx, property.ID.String())
	lang := reply.ResolveLanguage(property.Languages, question)

	decision, err := p.gate.CheckAndIncrement(ctx, property.OwnerID, p.opts.UsageIncrement)
	if err != nil {
		p.logg.Error(ctx, "usage check failed", err)
		return rejected(StageTenantResolved, ReasonQuotaError, lang, phrases.Unavailable(lang))
	}
	if !decision.Allowed {
		logCtx := p.logg.WithFields(ctx, map[string]any{
			"reason": decision.Reason,
			"used":   decision.Used,
			"limit":  decision.Limit,
		})
		p.logg.Info(logCtx, "usage gate rejected message")
		if decision.Reason == usage.ReasonLimitReached {
			return rejected(StageTenantResolved, ReasonLimitReached, lang, phrases.LimitReached(lang))
		}
		return rejected(StageTenantResolved, ReasonNoPlan, lang, phrases.NoPlan(lang))
	}

	generated := p.generator.Generate(ctx, reply.Request{
		PropertyName:  property.Name,
		KnowledgeText: property.KnowledgeText,
		Question:      question,
		Language:      lang,
	})

	outcome := Outcome{Stage: StageEscalationEvaluated}
	final := generated.Text
	// A technical fallback is not a reply the policy may match on, but an
	// explicit request for a human still escalates.
	candidate := generated.Text
	if generated.Technical {
		outcome.Reason = ReasonTechnical
		candidate = ""
	}
	if verdict := p.policy.ShouldEscalate(question, candidate); verdict.Escalate {
		outcome.Escalated = true
		outcome.Trigger = verdict.Trigger
		final = phrases.Forwarding(lang)
		p.metrics.IncEscalation(string(verdict.Trigger))
	}

	p.dispatch(ctx, msg, property, question, final, lang, outcome)

	outcome.Stage = StageResponded
	return Response{Text: final, Language: lang, Outcome: outcome}
}

// dispatch hands the log write and the host notification to the task runner
// once the reply text is final. Ids are minted here so task retries write the
// same row and queue the same event.
func (p *Pipeline) dispatch(ctx context.Context, msg Message, property *models.Property, question, final string, lang phrases.Language, outcome Outcome) {
	entry := conversations.Entry{
		ID:           uuid.New(),
		PropertyID:   property.ID,
		FromNumber:   msg.From,
		ToNumber:     msg.To,
		GuestMessage: question,
		BotReply:     final,
		Escalated:    outcome.Escalated,
	}
	p.tasks.Submit(ctx, "log_message", func(ctx context.Context) error {
		return p.log.Append(ctx, entry)
	})

	if !outcome.Escalated {
		return
	}
	handoff := notifications.Handoff{
		EventID:      uuid.New(),
		PropertyID:   property.ID,
		OwnerID:      property.OwnerID,
		PropertyCode: property.Code,
		PropertyName: property.Name,
		HandoffEmail: property.HandoffEmail,
		GuestNumber:  strings.TrimSpace(msg.From),
		GuestMessage: strings.TrimSpace(msg.Body),
		Language:     string(lang),
		Trigger:      string(outcome.Trigger),
	}
	p.tasks.Submit(ctx, "notify_host", func(ctx context.Context) error {
		_, err := p.notifier.Notify(ctx, handoff)
		return err
	})
}

func rejected(stage Stage, reason Reason, lang phrases.Language, text string) Response {
	return Response{
		Text:     text,
		Language: lang,
		Outcome:  Outcome{Stage: stage, Reason: reason, Rejected: true},
	}
}
