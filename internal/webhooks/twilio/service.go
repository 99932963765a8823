// Package twiliowebhook adapts Twilio's WhatsApp webhook to the inbound pipeline.
package twiliowebhook

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gostly/gostly-backend/internal/inbound"
	"github.com/gostly/gostly-backend/internal/phrases"
	"github.com/gostly/gostly-backend/internal/reply"
	"github.com/gostly/gostly-backend/pkg/logger"
	"github.com/gostly/gostly-backend/pkg/redis"
)

const provider = "twilio"

// pendingReply holds the sid while the first delivery is still running.
const (
	pendingReply = "\x00pending"
	replayPoll   = 100 * time.Millisecond
)

type handler interface {
	Handle(ctx context.Context, msg inbound.Message) inbound.Response
}

type replyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReplyKey(provider, messageID string) string
}

type limiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Options tune the retry cache. PendingTTL bounds how long an in-flight claim
// blocks redeliveries; ReplayWait is how long a redelivery waits for it.
type Options struct {
	DedupeTTL    time.Duration
	PendingTTL   time.Duration
	ReplayWait   time.Duration
	SenderLimit  int
	SenderWindow time.Duration
}

type ServiceParams struct {
	Options  Options
	Pipeline handler
	Replies  replyStore
	Limiter  limiter
	Logger   *logger.Logger
}

// Service puts the provider retry cache and the per-sender flood guard in
// front of the pipeline. Redis trouble degrades to running the pipeline.
type Service struct {
	opts     Options
	pipeline handler
	replies  replyStore
	limiter  limiter
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	opts := params.Options
	if opts.DedupeTTL <= 0 {
		opts.DedupeTTL = 24 * time.Hour
	}
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = 2 * time.Minute
	}
	if opts.ReplayWait <= 0 {
		opts.ReplayWait = 8 * time.Second
	}
	if opts.SenderWindow <= 0 {
		opts.SenderWindow = time.Minute
	}
	return &Service{
		opts:     opts,
		pipeline: params.Pipeline,
		replies:  params.Replies,
		limiter:  params.Limiter,
		logg:     params.Logger,
	}, nil
}

// Result is the text to wrap in TwiML. Replayed marks a cached answer.
type Result struct {
	Text     string
	Replayed bool
	Limited  bool
}

func (s *Service) Receive(ctx context.Context, msg inbound.Message) Result {
	msg.Body = strings.TrimSpace(msg.Body)
	msg.From = strings.TrimSpace(msg.From)
	msg.MessageSID = strings.TrimSpace(msg.MessageSID)
	sidCtx := s.logg.WithField(ctx, "message_sid", msg.MessageSID)

	if cached, ok := s.cached(ctx, msg.MessageSID); ok {
		return s.replay(sidCtx, msg, cached)
	}

	if !s.allowSender(ctx, msg.From) {
		lang := reply.DetectLanguage(msg.Body)
		s.logg.Warn(s.logg.WithSender(ctx, msg.From), "sender rate limited")
		return Result{Text: phrases.SlowDown(lang), Limited: true}
	}

	if !s.claim(ctx, msg.MessageSID) {
		cached, _ := s.cached(ctx, msg.MessageSID)
		return s.replay(sidCtx, msg, cached)
	}

	resp := s.pipeline.Handle(ctx, msg)
	s.remember(ctx, msg.MessageSID, resp.Text)
	return Result{Text: resp.Text}
}

// replay answers a redelivery without running the pipeline again. A pending
// claim is polled until the first delivery stores its reply or ReplayWait
// passes.
func (s *Service) replay(ctx context.Context, msg inbound.Message, value string) Result {
	if value == pendingReply || value == "" {
		value = s.awaitReply(ctx, msg.MessageSID)
	}
	if value == "" {
		s.logg.Warn(ctx, "in-flight reply not ready for redelivery")
		return Result{Text: phrases.Unavailable(reply.DetectLanguage(msg.Body)), Replayed: true}
	}
	s.logg.Info(ctx, "replaying cached reply")
	return Result{Text: value, Replayed: true}
}

func (s *Service) awaitReply(ctx context.Context, sid string) string {
	deadline := time.NewTimer(s.opts.ReplayWait)
	defer deadline.Stop()
	ticker := time.NewTicker(replayPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ""
		case <-deadline.C:
			return ""
		case <-ticker.C:
			if value, ok := s.cached(ctx, sid); ok && value != pendingReply {
				return value
			}
		}
	}
}

func (s *Service) cached(ctx context.Context, sid string) (string, bool) {
	if sid == "" || s.replies == nil {
		return "", false
	}
	value, err := s.replies.Get(ctx, s.replies.ReplyKey(provider, sid))
	if err != nil {
		if !redis.IsNil(err) {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "reply cache lookup failed")
		}
		return "", false
	}
	if value == "" {
		return "", false
	}
	return value, true
}

// claim reserves sid for this delivery. Without a sid or a working cache
// every delivery runs the pipeline.
func (s *Service) claim(ctx context.Context, sid string) bool {
	if sid == "" || s.replies == nil {
		return true
	}
	ok, err := s.replies.SetNX(ctx, s.replies.ReplyKey(provider, sid), pendingReply, s.opts.PendingTTL)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "reply claim failed")
		return true
	}
	return ok
}

func (s *Service) remember(ctx context.Context, sid, text string) {
	if sid == "" || s.replies == nil || text == "" {
		return
	}
	if err := s.replies.Set(ctx, s.replies.ReplyKey(provider, sid), text, s.opts.DedupeTTL); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "reply cache store failed")
	}
}

func (s *Service) allowSender(ctx context.Context, from string) bool {
	if s.limiter == nil || s.opts.SenderLimit <= 0 || from == "" {
		return true
	}
	allowed, _, err := s.limiter.FixedWindowAllow(ctx, "whatsapp:sender:"+strings.TrimPrefix(from, "whatsapp:"), int64(s.opts.SenderLimit), s.opts.SenderWindow)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "sender rate limit check failed")
		return true
	}
	return allowed
}
