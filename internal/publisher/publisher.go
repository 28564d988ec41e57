// Package publisher owns the live status and turns each producer
// emission into an envelope handed to the broadcast layer.
package publisher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/stadtaev/beatstatus/internal/metrics"
	"github.com/stadtaev/beatstatus/internal/status"
)

// Sink receives rendered envelopes. Broadcast must not block on slow
// consumers.
type Sink interface {
	// Retain stores env as the current snapshot without fanning it out.
	Retain(env status.Envelope)
	Broadcast(env status.Envelope)
}

type Options struct {
	PluginVersion string
	GameVersion   string
	// EmbedCover renders cover art as base64 text; when false songCover
	// is always null.
	EmbedCover bool
}

// Publisher is the producer handle. The producer mutates Status()
// directly and then calls EmitStatusUpdate; both must happen on one
// goroutine.
type Publisher struct {
	mu         sync.Mutex
	status     *status.Status
	cuts       *status.PendingCuts
	sink       Sink
	clock      clockwork.Clock
	logger     *slog.Logger
	embedCover bool
}

// New creates a publisher with a default status and seeds sink with its
// snapshot, so observers get a complete document before any session.
func New(sink Sink, logger *slog.Logger, clock clockwork.Clock, opts Options) (*Publisher, error) {
	p := &Publisher{
		status:     status.New(opts.PluginVersion, opts.GameVersion),
		cuts:       status.NewPendingCuts(),
		sink:       sink,
		clock:      clock,
		logger:     logger,
		embedCover: opts.EmbedCover,
	}

	env, err := p.envelope(status.ChangedAll, status.EventHello)
	if err != nil {
		return nil, fmt.Errorf("rendering initial status: %w", err)
	}
	sink.Retain(env)
	return p, nil
}

// Status returns the live model for mutation by the producer.
func (p *Publisher) Status() *status.Status { return p.status }

// Cuts returns the registry correlating cuts with their resolution.
func (p *Publisher) Cuts() *status.PendingCuts { return p.cuts }

func (p *Publisher) ResetMapInfo() { p.status.ResetMapInfo() }
func (p *Publisher) ResetPerformance() { p.status.ResetPerformance() }
func (p *Publisher) ResetNoteCut() { p.status.ResetNoteCut() }

// EmitStatusUpdate renders the whole status with changed as the hint and
// hands it to the sink. It returns once every current subscriber has the
// envelope queued.
func (p *Publisher) EmitStatusUpdate(changed status.ChangeSet, event string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	env, err := p.envelope(changed, event)
	if err != nil {
		p.logger.Error("rendering status failed", "event", event, "error", err)
		return fmt.Errorf("rendering %s: %w", event, err)
	}

	p.sink.Broadcast(env)
	metrics.EnvelopesPublished.WithLabelValues(event).Inc()
	p.logger.Debug("status emitted", "event", event, "changed", changed.String())
	return nil
}

// Emit classifies event with the static table and emits it.
func (p *Publisher) Emit(event string) error {
	changed, ok := status.Classify(event)
	if !ok {
		return fmt.Errorf("unknown event %q", event)
	}
	return p.EmitStatusUpdate(changed, event)
}

func (p *Publisher) envelope(changed status.ChangeSet, event string) (status.Envelope, error) {
	doc, err := json.Marshal(Render(p.status, p.embedCover))
	if err != nil {
		return status.Envelope{}, err
	}
	return status.Envelope{
		Event:   event,
		Time:    p.clock.Now().UnixMilli(),
		Changed: changed,
		Status:  doc,
	}, nil
}
