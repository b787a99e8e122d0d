package relay

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	tenant  string
	payload string
}

type fakeFanout struct {
	mu   sync.Mutex
	got  []delivery
	sent int
}

func (f *fakeFanout) Broadcast(tenantID string, payload []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, delivery{tenantID, string(payload)})
	return f.sent
}

func (f *fakeFanout) deliveries() []delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]delivery(nil), f.got...)
}

// unreachable returns a client whose commands fail fast.
func unreachable() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func envelope(t *testing.T, origin, tenant, frame string) string {
	t.Helper()
	raw, err := json.Marshal(Envelope{Origin: origin, TenantID: tenant, Frame: json.RawMessage(frame)})
	require.NoError(t, err)
	return string(raw)
}

func TestRelay_HandleForwardsPeerEnvelopes(t *testing.T) {
	local := &fakeFanout{sent: 2}
	r := New(unreachable(), "", local, nil)

	n := r.handle(envelope(t, "peer-1", "acme", `{"type":"data:change","resource":"cost-centers"}`))
	require.Equal(t, 2, n)
	require.Equal(t, []delivery{{"acme", `{"type":"data:change","resource":"cost-centers"}`}}, local.deliveries())
}

func TestRelay_HandleIgnoresOwnAndBrokenEnvelopes(t *testing.T) {
	local := &fakeFanout{sent: 1}
	r := New(unreachable(), "", local, nil)

	require.Zero(t, r.handle(envelope(t, r.origin, "acme", `{}`)))
	require.Zero(t, r.handle("not json"))
	require.Zero(t, r.handle(envelope(t, "peer-1", "", `{}`)))
	require.Zero(t, r.handle(`{"origin":"peer-1","tenantId":"acme"}`))
	require.Empty(t, local.deliveries())
}

func TestRelay_BroadcastDeliversLocallyWhenRedisIsDown(t *testing.T) {
	local := &fakeFanout{sent: 3}
	r := New(unreachable(), "test", local, nil)

	require.Equal(t, 3, r.Broadcast("acme", []byte(`{"type":"data:change"}`)))
	require.Len(t, local.deliveries(), 1)
}

func TestConnect_RejectsBadURL(t *testing.T) {
	_, err := Connect(context.Background(), "http://not-redis")
	require.Error(t, err)
}

// Needs a real server, e.g. FINANCEIRO_TEST_REDIS_URL=redis://localhost:6379/0.
func TestRelay_CrossInstance(t *testing.T) {
	url := os.Getenv("FINANCEIRO_TEST_REDIS_URL")
	if url == "" {
		t.Skip("FINANCEIRO_TEST_REDIS_URL not set")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientA, err := Connect(ctx, url)
	require.NoError(t, err)
	defer clientA.Close()
	clientB, err := Connect(ctx, url)
	require.NoError(t, err)
	defer clientB.Close()

	channel := "financeiro:test:" + time.Now().Format("150405.000000")
	localA, localB := &fakeFanout{}, &fakeFanout{}
	a := New(clientA, channel, localA, nil)
	b := New(clientB, channel, localB, nil)

	go func() { _ = a.Run(ctx) }()
	go func() { _ = b.Run(ctx) }()

	require.Eventually(t, func() bool {
		n, err := clientA.PubSubNumSub(ctx, channel).Result()
		return err == nil && n[channel] == 2
	}, 3*time.Second, 20*time.Millisecond)

	a.Broadcast("acme", []byte(`{"type":"data:change","resource":"accounts"}`))

	require.Eventually(t, func() bool { return len(localB.deliveries()) == 1 }, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, "acme", localB.deliveries()[0].tenant)

	// The publisher delivered locally once and ignored its own echo.
	time.Sleep(100 * time.Millisecond)
	require.Len(t, localA.deliveries(), 1)
}
