package depspider

import (
	"context"
	"fmt"
	"sync"
)

// PipelineEventKind discriminates the messages a background indexing run
// emits.
type PipelineEventKind string

const (
	EventCounting PipelineEventKind = "counting"
	EventProgress PipelineEventKind = "progress"
	EventComplete PipelineEventKind = "complete"
	EventError    PipelineEventKind = "error"
)

// PipelineEvent is one message from a background indexing run. Progress
// events carry counters; the complete event carries the final result after
// its data has been merged into the owning Spider.
type PipelineEvent struct {
	Kind      PipelineEventKind `json:"kind"`
	Processed int               `json:"processed,omitempty"`
	Total     int               `json:"total,omitempty"`
	File      string            `json:"file,omitempty"`
	Result    *IndexResult      `json:"result,omitempty"`
	Err       error             `json:"-"`
}

// Pipeline runs full-workspace indexing in the background on an isolated
// Spider and communicates with the owner exclusively by message passing:
// no structure is shared between the two while the run is in flight. On
// completion the worker's per-file results are merged into the owner
// atomically per source, then the complete event is emitted.
type Pipeline struct {
	owner  *Spider
	events chan PipelineEvent

	mu      sync.Mutex
	worker  *Spider
	running bool
}

// NewPipeline creates a pipeline bound to the Spider that will receive the
// merged results.
func NewPipeline(owner *Spider) *Pipeline {
	return &Pipeline{
		owner:  owner,
		events: make(chan PipelineEvent, 64),
	}
}

// Events returns the event stream. Closed when the run finishes; a
// subsequent Start allocates a fresh stream, so re-fetch it per run.
func (p *Pipeline) Events() <-chan PipelineEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events
}

// Start launches a background indexing run. Returns an error when one is
// already in flight.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("pipeline: indexing already in progress")
	}

	// The worker gets its own caches, index, and status; it is built from
	// the owner's construction options so analysis behaves identically.
	worker, err := New(p.owner.root, p.owner.opts...)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	runCtx, stop := context.WithCancel(ctx)
	p.worker = worker
	p.running = true
	events := p.events

	go func() {
		defer stop()
		p.run(runCtx, worker, events)
	}()
	return nil
}

// Cancel requests cooperative cancellation of the in-flight run. The run
// still emits its complete event with whatever finished.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running && p.worker != nil {
		p.worker.CancelIndex()
	}
}

func (p *Pipeline) run(ctx context.Context, worker *Spider, events chan PipelineEvent) {
	defer func() {
		p.mu.Lock()
		p.running = false
		p.worker = nil
		p.events = make(chan PipelineEvent, 64)
		p.mu.Unlock()
		close(events)
	}()

	emit := func(ev PipelineEvent) {
		select {
		case events <- ev:
		default: // slow consumer drops intermediate progress, never blocks the run
		}
	}

	// Terminal events are never dropped and never wedge the run: when a
	// stalled consumer has let the buffer fill with stale progress events,
	// discard one to make room and retry.
	deliver := func(ev PipelineEvent) {
		for {
			select {
			case events <- ev:
				return
			default:
			}
			select {
			case <-events:
			default:
			}
		}
	}

	emit(PipelineEvent{Kind: EventCounting})
	result, err := worker.BuildFullIndex(ctx, func(snap IndexerSnapshot) {
		if snap.Phase == PhaseIndexing {
			emit(PipelineEvent{
				Kind:      EventProgress,
				Processed: snap.Processed,
				Total:     snap.Total,
				File:      snap.CurrentFile,
			})
		}
	})
	if err != nil {
		deliver(PipelineEvent{Kind: EventError, Err: err})
		return
	}

	deps, metas := worker.IndexData()
	p.owner.MergeIndexData(deps, metas)

	deliver(PipelineEvent{
		Kind:      EventComplete,
		Processed: result.Processed,
		Total:     result.Total,
		Result:    result,
	})
}
