package surface

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Poller drains a Queue on a fixed interval and hands each item to a Sink.
type Poller struct {
	queue    *Queue
	surface  Surface
	sink     Sink
	interval time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller(queue *Queue, surface Surface, sink Sink, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Poller{
		queue:    queue,
		surface:  surface,
		sink:     sink,
		interval: interval,
		logger:   logger.With().Str("component", "poller").Logger(),
	}
}

// Start launches the polling goroutine. Calling Start twice is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
}

// Stop cancels the polling goroutine and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll()
		}
	}
}

// Poll processes everything currently queued and returns the number of items
// accepted by the sink.
func (p *Poller) Poll() int {
	accepted := 0
	for _, item := range p.queue.Drain() {
		if item.Text == "" {
			text, ok := p.surface.ReadVisibleText(item.Target.SurfaceID, item.Target.NodeID)
			if !ok {
				continue
			}
			item.Text = text
		}
		if !p.sink.SubmitWork(item) {
			p.logger.Debug().
				Str("kind", item.Kind.String()).
				Str("target", item.Target.String()).
				Msg("work item dropped")
			continue
		}
		accepted++
	}
	return accepted
}
