package twiliowebhook

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gostly/gostly-backend/internal/inbound"
	"github.com/gostly/gostly-backend/internal/phrases"
	"github.com/gostly/gostly-backend/pkg/logger"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestComputeSignatureKnownValue(t *testing.T) {
	// Reference vector published in the provider's security documentation.
	form := url.Values{
		"CallSid": {"CA1234567890ABCDE"},
		"Caller":  {"+12349013030"},
		"Digits":  {"1234"},
		"From":    {"+12349013030"},
		"To":      {"+18005551212"},
	}
	got := ComputeSignature("12345", "https://mycompany.com/myapp.php?foo=1&bar=2", form)
	require.Equal(t, "0/KCTR6DLpKmkAf8muzZqo1nDgQ=", got)
}

func TestValidSignature(t *testing.T) {
	form := url.Values{"Body": {"H1234 wifi?"}, "From": {"whatsapp:+385911234567"}}
	webhookURL := "https://api.gostly.app/webhooks/whatsapp"
	sig := ComputeSignature("token", webhookURL, form)

	require.True(t, ValidSignature("token", webhookURL, form, sig))
	require.False(t, ValidSignature("other", webhookURL, form, sig))
	require.False(t, ValidSignature("token", webhookURL+"/x", form, sig))
	require.False(t, ValidSignature("token", webhookURL, form, ""))
	require.False(t, ValidSignature("", webhookURL, form, sig))

	tampered := url.Values{"Body": {"H1234 wifi!"}, "From": {"whatsapp:+385911234567"}}
	require.False(t, ValidSignature("token", webhookURL, tampered, sig))
}

type fakePipeline struct {
	calls atomic.Int32
	text  string
	delay time.Duration
}

func (f *fakePipeline) Handle(_ context.Context, msg inbound.Message) inbound.Response {
	f.calls.Add(1)
	time.Sleep(f.delay)
	return inbound.Response{Text: f.text + msg.Body}
}

type memoryReplies struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
	setErr error
}

func (m *memoryReplies) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryReplies) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value.(string)
	return nil
}

func (m *memoryReplies) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryReplies) ReplyKey(provider, id string) string { return provider + ":" + id }

type countingLimiter struct {
	counts map[string]int64
	err    error
}

func (c *countingLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if c.err != nil {
		return false, 0, c.err
	}
	c.counts[scope]++
	return c.counts[scope] <= limit, c.counts[scope], nil
}

func newService(t *testing.T, p *fakePipeline, replies replyStore, lim limiter, limit int) *Service {
	t.Helper()
	return newServiceWithOptions(t, p, replies, lim, Options{SenderLimit: limit})
}

func newServiceWithOptions(t *testing.T, p *fakePipeline, replies replyStore, lim limiter, opts Options) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Options:  opts,
		Pipeline: p,
		Replies:  replies,
		Limiter:  lim,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc
}

func TestReceiveReplaysCachedReply(t *testing.T) {
	p := &fakePipeline{text: "reply:"}
	replies := &memoryReplies{values: map[string]string{}}
	svc := newService(t, p, replies, nil, 0)

	msg := inbound.Message{Body: "H1234 wifi?", From: "whatsapp:+385911234567", MessageSID: "SM1"}
	first := svc.Receive(context.Background(), msg)
	second := svc.Receive(context.Background(), msg)

	require.EqualValues(t, 1, p.calls.Load())
	require.False(t, first.Replayed)
	require.True(t, second.Replayed)
	require.Equal(t, first.Text, second.Text)
}

func TestReceiveInFlightRedeliveryWaitsForFirstReply(t *testing.T) {
	p := &fakePipeline{text: "reply:", delay: 300 * time.Millisecond}
	replies := &memoryReplies{values: map[string]string{}}
	svc := newServiceWithOptions(t, p, replies, nil, Options{ReplayWait: 5 * time.Second})

	msg := inbound.Message{Body: "H1234 wifi?", From: "whatsapp:+385911234567", MessageSID: "SM1"}
	results := make([]Result, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Receive(context.Background(), msg)
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, p.calls.Load())
	require.Equal(t, "reply:H1234 wifi?", results[0].Text)
	require.Equal(t, "reply:H1234 wifi?", results[1].Text)
	require.NotEqual(t, results[0].Replayed, results[1].Replayed)
	require.Equal(t, "reply:H1234 wifi?", replies.values["twilio:SM1"])
}

func TestReceiveInFlightRedeliveryTimesOutWithoutRerun(t *testing.T) {
	p := &fakePipeline{text: "reply:"}
	replies := &memoryReplies{values: map[string]string{"twilio:SM9": pendingReply}}
	svc := newServiceWithOptions(t, p, replies, nil, Options{ReplayWait: 250 * time.Millisecond})

	res := svc.Receive(context.Background(), inbound.Message{Body: "H1234 hello, is the pool open?", MessageSID: "SM9"})

	require.EqualValues(t, 0, p.calls.Load())
	require.True(t, res.Replayed)
	require.Equal(t, phrases.Unavailable(phrases.English), res.Text)
}

func TestReceiveWithoutSIDSkipsCache(t *testing.T) {
	p := &fakePipeline{text: "reply:"}
	replies := &memoryReplies{values: map[string]string{}}
	svc := newService(t, p, replies, nil, 0)

	msg := inbound.Message{Body: "H1234 wifi?", From: "whatsapp:+385911234567"}
	svc.Receive(context.Background(), msg)
	svc.Receive(context.Background(), msg)

	require.EqualValues(t, 2, p.calls.Load())
	require.Empty(t, replies.values)
}

func TestReceiveCacheOutageRunsPipeline(t *testing.T) {
	p := &fakePipeline{text: "reply:"}
	replies := &memoryReplies{values: map[string]string{}, getErr: errors.New("down"), setErr: errors.New("down")}
	svc := newService(t, p, replies, nil, 0)

	res := svc.Receive(context.Background(), inbound.Message{Body: "H1234 hi", MessageSID: "SM2"})
	require.Equal(t, "reply:H1234 hi", res.Text)
	require.EqualValues(t, 1, p.calls.Load())
}

func TestReceiveLimitsFloodingSender(t *testing.T) {
	p := &fakePipeline{text: "reply:"}
	lim := &countingLimiter{counts: map[string]int64{}}
	svc := newService(t, p, nil, lim, 2)

	from := "whatsapp:+385911234567"
	for i := 0; i < 2; i++ {
		res := svc.Receive(context.Background(), inbound.Message{Body: "H1234 hvala", From: from})
		require.False(t, res.Limited)
	}
	res := svc.Receive(context.Background(), inbound.Message{Body: "H1234 hvala", From: from})
	require.True(t, res.Limited)
	require.Equal(t, phrases.SlowDown(phrases.Croatian), res.Text)
	require.EqualValues(t, 2, p.calls.Load())

	other := svc.Receive(context.Background(), inbound.Message{Body: "H1234 hi", From: "whatsapp:+4917000000"})
	require.False(t, other.Limited)
}

func TestReceiveLimiterOutageAllows(t *testing.T) {
	p := &fakePipeline{}
	svc := newService(t, p, nil, &countingLimiter{err: errors.New("down")}, 1)

	res := svc.Receive(context.Background(), inbound.Message{Body: "H1234 hi", From: "whatsapp:+1"})
	require.False(t, res.Limited)
	require.EqualValues(t, 1, p.calls.Load())
}

func TestNewServiceValidates(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.New(logger.Options{Output: io.Discard})})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Pipeline: &fakePipeline{}})
	require.Error(t, err)
}
