package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/stadtaev/beatstatus/internal/metrics"
	"github.com/stadtaev/beatstatus/internal/server"
	"github.com/stadtaev/beatstatus/internal/status"
)

type fakeClient struct {
	mu        sync.Mutex
	sets      map[string]string
	published []string
	setErr    error
	// gate, when set, holds every Publish until a value is received.
	gate chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{sets: make(map[string]string)}
}

func (f *fakeClient) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, channel+" "+string(message.([]byte)))
	return redis.NewIntResult(1, nil)
}

func (f *fakeClient) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.sets[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) snapshot() ([]string, map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sets := make(map[string]string, len(f.sets))
	for k, v := range f.sets {
		sets[k] = v
	}
	return append([]string(nil), f.published...), sets
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func frameEvent(t *testing.T, published string) string {
	t.Helper()
	_, data, ok := strings.Cut(published, " ")
	if !ok {
		t.Fatalf("malformed publish %q", published)
	}
	var env struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		t.Fatalf("decoding frame: %v", err)
	}
	return env.Event
}

func envelope(event string) status.Envelope {
	return status.Envelope{Event: event, Status: json.RawMessage(`{}`)}
}

var testOpts = Options{Channel: "beatstatus:events", SnapshotKey: "beatstatus:snapshot"}

func TestMirrorForwardsFrames(t *testing.T) {
	hub := server.NewHub(discardLogger(), clockwork.NewFakeClock(), 8)
	client := newFakeClient()
	m := New(client, hub, discardLogger(), testOpts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	eventually(t, func() bool { return hub.Count() == 1 })
	hub.Broadcast(envelope(status.EventSongStart))
	hub.Broadcast(envelope(status.EventNoteCut))

	eventually(t, func() bool {
		published, _ := client.snapshot()
		return len(published) == 3
	})

	published, sets := client.snapshot()
	want := []string{status.EventHello, status.EventSongStart, status.EventNoteCut}
	for i, ev := range want {
		if got := frameEvent(t, published[i]); got != ev {
			t.Errorf("publish %d event = %q, want %q", i, got, ev)
		}
		if ch, _, _ := strings.Cut(published[i], " "); ch != testOpts.Channel {
			t.Errorf("publish %d channel = %q", i, ch)
		}
	}
	if got := frameEvent(t, "x "+sets[testOpts.SnapshotKey]); got != status.EventNoteCut {
		t.Errorf("snapshot key holds %q, want latest frame", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("run: %v", err)
	}
	if got := hub.Count(); got != 0 {
		t.Errorf("subscribers after stop = %d, want 0", got)
	}
}

func TestMirrorStopsWhenHubCloses(t *testing.T) {
	hub := server.NewHub(discardLogger(), clockwork.NewFakeClock(), 8)
	m := New(newFakeClient(), hub, discardLogger(), testOpts)

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()

	eventually(t, func() bool { return hub.Count() == 1 })
	hub.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("mirror did not stop")
	}
}

func TestMirrorResubscribesAfterEviction(t *testing.T) {
	hub := server.NewHub(discardLogger(), clockwork.NewFakeClock(), 1)
	client := newFakeClient()
	client.gate = make(chan struct{})
	m := New(client, hub, discardLogger(), testOpts)

	before := testutil.ToFloat64(metrics.MirrorErrors.WithLabelValues("evicted"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	// The mirror is stuck publishing the snapshot; the queue holds one
	// more frame, so the second broadcast evicts it.
	eventually(t, func() bool {
		_, sets := client.snapshot()
		return len(sets) == 1
	})
	hub.Broadcast(envelope(status.EventScoreChanged))
	hub.Broadcast(envelope(status.EventFinished))
	close(client.gate)

	eventually(t, func() bool {
		published, _ := client.snapshot()
		return len(published) >= 2 && frameEvent(t, published[len(published)-1]) == status.EventHello
	})
	if got := testutil.ToFloat64(metrics.MirrorErrors.WithLabelValues("evicted")); got != before+1 {
		t.Errorf("evictions = %v, want %v", got, before+1)
	}
	eventually(t, func() bool { return hub.Count() == 1 })

	cancel()
	if err := <-done; err != nil {
		t.Errorf("run: %v", err)
	}
}

func TestMirrorKeepsGoingOnRedisErrors(t *testing.T) {
	hub := server.NewHub(discardLogger(), clockwork.NewFakeClock(), 8)
	client := newFakeClient()
	client.setErr = errors.New("READONLY")
	m := New(client, hub, discardLogger(), testOpts)

	before := testutil.ToFloat64(metrics.MirrorErrors.WithLabelValues("set"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	eventually(t, func() bool { return hub.Count() == 1 })
	hub.Broadcast(envelope(status.EventMenu))

	eventually(t, func() bool {
		published, _ := client.snapshot()
		return len(published) == 2
	})
	if got := testutil.ToFloat64(metrics.MirrorErrors.WithLabelValues("set")); got != before+2 {
		t.Errorf("set errors = %v, want %v", got, before+2)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("run: %v", err)
	}
}
