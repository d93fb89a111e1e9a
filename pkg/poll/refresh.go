// Package poll keeps Kore resources current while they converge: an
// unbounded auto-refresh poller that runs until a terminal status, and a
// bounded verifier used after submitting resources that are checked
// asynchronously.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/fivetwenty-io/kore-client/internal/constants"
	"github.com/fivetwenty-io/kore-client/pkg/kore"
)

// State is the state of an AutoRefresher.
type State int

const (
	// Stopped: no further fetches will be issued.
	Stopped State = iota
	// Polling: a fetch is issued on every interval tick.
	Polling
)

func (s State) String() string {
	if s == Polling {
		return "Polling"
	}

	return "Stopped"
}

// FetchFunc re-reads the watched resource. A nil or empty result means the
// resource is gone.
type FetchFunc func(ctx context.Context) (*kore.Resource, error)

// Callback receives the resource at a state transition.
type Callback func(resource *kore.Resource)

// AutoRefresher polls a resource on a fixed interval until its status is
// terminal or it disappears. There is no backoff, no jitter and no overall
// deadline: a resource that never settles is polled until Stop.
type AutoRefresher struct {
	fetch    FetchFunc
	interval time.Duration
	logger   kore.Logger
	metrics  *Metrics

	onUpdate   Callback
	onComplete Callback
	onDeleted  Callback

	// gate is held from the stop check until fetch returns, so Stop can wait
	// out a fetch that already started.
	gate sync.Mutex

	mutex    sync.Mutex
	current  *kore.Resource
	state    State
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once
}

// RefreshOption configures an AutoRefresher.
type RefreshOption func(*AutoRefresher)

// WithInterval sets the polling interval. Non-positive values keep the
// default.
func WithInterval(interval time.Duration) RefreshOption {
	return func(r *AutoRefresher) {
		if interval > 0 {
			r.interval = interval
		}
	}
}

// WithLogger reports fetch errors.
func WithLogger(logger kore.Logger) RefreshOption {
	return func(r *AutoRefresher) {
		r.logger = logger
	}
}

// WithMetrics records every fetch outcome.
func WithMetrics(metrics *Metrics) RefreshOption {
	return func(r *AutoRefresher) {
		r.metrics = metrics
	}
}

// OnUpdate is called after each fetch that leaves the resource non-terminal.
func OnUpdate(fn Callback) RefreshOption {
	return func(r *AutoRefresher) {
		r.onUpdate = fn
	}
}

// OnComplete is called once when the resource reaches a terminal status. It
// is also used for deletion when no OnDeleted callback is set.
func OnComplete(fn Callback) RefreshOption {
	return func(r *AutoRefresher) {
		r.onComplete = fn
	}
}

// OnDeleted is called once with the last known resource marked Deleted.
func OnDeleted(fn Callback) RefreshOption {
	return func(r *AutoRefresher) {
		r.onDeleted = fn
	}
}

// NewAutoRefresher creates a poller for resource. Nothing happens until Start.
func NewAutoRefresher(resource *kore.Resource, fetch FetchFunc, opts ...RefreshOption) *AutoRefresher {
	r := &AutoRefresher{
		fetch:    fetch,
		interval: constants.DefaultRefreshInterval,
		current:  resource,
		state:    Stopped,
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Start begins polling unless the resource is already terminal or deleted.
// It returns immediately; calling it again has no effect.
func (r *AutoRefresher) Start(ctx context.Context) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.started {
		return
	}

	r.started = true

	if r.stopped || r.current == nil || r.current.Deleted || r.current.IsTerminal() {
		r.finish()

		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.state = Polling

	go r.run(ctx)
}

// Stop tears the poller down. Once it returns no fetch is running and none
// will be issued; a result still in flight is discarded without callbacks.
// It is safe to call more than once, and from a callback.
func (r *AutoRefresher) Stop() {
	r.mutex.Lock()
	r.stopped = true
	r.state = Stopped
	cancel := r.cancel

	if !r.started {
		r.started = true
		r.finish()
	}
	r.mutex.Unlock()

	if cancel != nil {
		cancel()
	}

	r.gate.Lock()
	r.gate.Unlock() //nolint:staticcheck // waits for an in-flight fetch
}

// Done is closed once the poller has stopped for any reason.
func (r *AutoRefresher) Done() <-chan struct{} {
	return r.done
}

// State returns the current state.
func (r *AutoRefresher) State() State {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.state
}

// Current returns the most recently fetched copy of the resource.
func (r *AutoRefresher) Current() *kore.Resource {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.current
}

// finish must be called with r.mutex held.
func (r *AutoRefresher) finish() {
	r.state = Stopped
	r.doneOnce.Do(func() { close(r.done) })
}

func (r *AutoRefresher) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)

	defer func() {
		ticker.Stop()

		r.mutex.Lock()
		r.finish()
		r.mutex.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if r.tick(ctx) {
			return
		}
	}
}

// tick performs one fetch and applies its result. It reports whether
// polling is over.
func (r *AutoRefresher) tick(ctx context.Context) bool {
	kind := r.kind()

	r.gate.Lock()

	if r.isStopped() {
		r.gate.Unlock()

		return true
	}

	resource, err := r.fetch(ctx)
	r.gate.Unlock()

	r.mutex.Lock()

	if r.stopped || ctx.Err() != nil {
		r.finish()
		r.mutex.Unlock()
		r.metrics.observeFetch(kind, OutcomeDropped)

		return true
	}

	if err != nil {
		r.mutex.Unlock()
		r.metrics.observeFetch(kind, OutcomeError)

		if r.logger != nil {
			r.logger.Warn("failed to refresh resource", map[string]interface{}{
				"kind":  kind,
				"name":  r.name(),
				"error": err.Error(),
			})
		}

		return false
	}

	var (
		callback Callback
		outcome  string
		over     = true
	)

	switch {
	case resource.IsEmpty():
		deleted := r.deletedCopy()
		r.current = deleted
		resource = deleted
		outcome = OutcomeDeleted

		callback = r.onDeleted
		if callback == nil {
			callback = r.onComplete
		}

	case resource.IsTerminal():
		r.current = resource
		outcome = OutcomeCompleted
		callback = r.onComplete

	default:
		r.current = resource
		outcome = OutcomeUpdated
		callback = r.onUpdate
		over = false
	}

	// Done is closed by run once the callback has returned.
	if over {
		r.state = Stopped
	}
	r.mutex.Unlock()

	r.metrics.observeFetch(kind, outcome)

	if callback != nil {
		callback(resource)
	}

	return over
}

// deletedCopy must be called with r.mutex held.
func (r *AutoRefresher) deletedCopy() *kore.Resource {
	deleted := kore.Resource{}
	if r.current != nil {
		deleted = *r.current
	}

	deleted.Deleted = true

	return &deleted
}

func (r *AutoRefresher) isStopped() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.stopped
}

func (r *AutoRefresher) kind() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.current == nil {
		return ""
	}

	return r.current.Kind
}

func (r *AutoRefresher) name() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.current == nil {
		return ""
	}

	return r.current.Metadata.Name
}
