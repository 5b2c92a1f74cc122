package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/burnable-tech/DAIHard/internal/chain"
	"github.com/burnable-tech/DAIHard/internal/chain/events"
	"github.com/burnable-tech/DAIHard/internal/domain"
)

// Snapshot is a consistent copy of the collection at one point in time.
type Snapshot struct {
	Trades   []domain.Trade
	Progress Progress
	TakenAt  time.Time
}

// Loaded returns the loaded trades of the snapshot in factory id order.
func (s Snapshot) Loaded() []domain.LoadedTrade {
	out := make([]domain.LoadedTrade, 0, len(s.Trades))
	for _, t := range s.Trades {
		if lt, ok := t.(domain.LoadedTrade); ok {
			out = append(out, lt)
		}
	}
	return out
}

// Listener receives a snapshot after every refresh tick. Calls for one
// listener are sequential; if it falls behind, intermediate snapshots are
// dropped and only the latest is delivered.
type Listener interface {
	OnSnapshot(ctx context.Context, snap Snapshot)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, snap Snapshot)

func (f ListenerFunc) OnSnapshot(ctx context.Context, snap Snapshot) { f(ctx, snap) }

// Runner owns an Aggregator. A single loop goroutine applies results one at a
// time; each request runs in its own goroutine and reports back on a channel.
type Runner struct {
	agg       *Aggregator
	initial   []Request
	reader    chain.Reader
	interval  time.Duration
	listeners []Listener
	logger    *slog.Logger

	results   chan Result
	snapshots chan chan Snapshot
	now       func() time.Time

	mu      sync.Mutex
	running bool
}

// NewRunner prepares a runner for agg. initial holds the requests returned by
// New.
func NewRunner(agg *Aggregator, initial []Request, reader chain.Reader, interval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		agg:       agg,
		initial:   initial,
		reader:    reader,
		interval:  interval,
		logger:    logger.With(slog.String("component", "runner")),
		results:   make(chan Result, 256),
		snapshots: make(chan chan Snapshot),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AddListener registers l. It must be called before Run.
func (r *Runner) AddListener(l Listener) {
	r.listeners = append(r.listeners, l)
}

// Run drives the aggregator until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("aggregator: runner already started")
	}
	r.running = true
	r.mu.Unlock()

	r.logger.Info("runner starting",
		slog.String("factory", r.agg.Config().Factory.Hex()),
		slog.Duration("refresh_interval", r.interval),
		slog.Int("listeners", len(r.listeners)),
	)

	feeds := make([]chan Snapshot, len(r.listeners))
	for i, l := range r.listeners {
		feeds[i] = make(chan Snapshot, 1)
		go r.feed(ctx, l, feeds[i])
	}

	r.dispatch(ctx, r.initial)
	r.initial = nil

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopped")
			return ctx.Err()
		case res := <-r.results:
			r.dispatch(ctx, r.agg.Apply(res))
		case <-ticker.C:
			reqs := r.agg.Refresh()
			r.logger.Debug("refresh tick", slog.Int("state_requests", len(reqs)))
			r.dispatch(ctx, reqs)
			snap := r.snapshot()
			for _, ch := range feeds {
				offerLatest(ch, snap)
			}
		case reply := <-r.snapshots:
			reply <- r.snapshot()
		}
	}
}

// Snapshot returns the current collection, read through the loop.
func (r *Runner) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case r.snapshots <- reply:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (r *Runner) snapshot() Snapshot {
	return Snapshot{
		Trades:   r.agg.Trades(),
		Progress: r.agg.Progress(),
		TakenAt:  r.now(),
	}
}

func (r *Runner) dispatch(ctx context.Context, reqs []Request) {
	for _, req := range reqs {
		go func(req Request) {
			res := r.execute(ctx, req)
			if res == nil {
				return
			}
			select {
			case r.results <- res:
			case <-ctx.Done():
			}
		}(req)
	}
}

func (r *Runner) execute(ctx context.Context, req Request) Result {
	factory := r.agg.Config().Factory
	switch q := req.(type) {
	case TotalCountRequest:
		n, err := r.reader.TotalCount(ctx, factory)
		return TotalCountResult{Count: n, Err: err}
	case CreationInfoRequest:
		info, err := r.reader.CreationInfo(ctx, factory, q.ID)
		return CreationInfoResult{ID: q.ID, Info: info, Err: err}
	case ParametersRequest:
		p, err := r.reader.Parameters(ctx, q.Address)
		return ParametersResult{ID: q.ID, Parameters: p, Err: err}
	case StateRequest:
		s, err := r.reader.State(ctx, q.Address)
		return StateResult{ID: q.ID, State: s, Err: err}
	case OpenedRequest:
		logs, err := r.reader.EventLogs(ctx, q.Address, events.MustTopic("Opened"), q.FromBlock)
		return OpenedResult{ID: q.ID, Logs: logs, Err: err}
	case CommittedRequest:
		logs, err := r.reader.EventLogs(ctx, q.Address, events.MustTopic("Committed"), q.FromBlock)
		return CommittedResult{ID: q.ID, Logs: logs, Err: err}
	default:
		r.logger.Warn("logic error", slog.String("reason", fmt.Sprintf("unknown request %T", req)))
		return nil
	}
}

func (r *Runner) feed(ctx context.Context, l Listener, ch <-chan Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			l.OnSnapshot(ctx, snap)
		}
	}
}

// offerLatest replaces any undelivered snapshot in ch with snap.
func offerLatest(ch chan Snapshot, snap Snapshot) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
