package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/safealert/internal/api"
	"github.com/dukerupert/safealert/internal/geo"
	"github.com/dukerupert/safealert/internal/logging"
	"github.com/dukerupert/safealert/internal/model"
)

const DefaultInterval = 30 * time.Second

// API is the subset of the backend client the poller uses.
type API interface {
	GetTracker(ctx context.Context, id string) (*model.Tracker, error)
	UpdateTrackerLocation(ctx context.Context, id string, update model.LocationUpdate) (*model.LocationFix, error)
}

type Sampler interface {
	Sample(ctx context.Context, opts geo.Options) (model.LocationFix, error)
}

type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) string
}

// Ticker abstracts time.Ticker so tests can drive the loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// WithActiveCheck controls whether each cycle re-reads the tracker from the
// backend before pushing a fix. On by default.
func WithActiveCheck(enabled bool) Option {
	return func(p *Poller) {
		p.verifyActive = enabled
	}
}

// WithUpdateHook is called with a copy of the snapshot after every change.
// The hook must not call Stop.
func WithUpdateHook(fn func(model.Tracker)) Option {
	return func(p *Poller) {
		p.onUpdate = fn
	}
}

func withTicker(fn func(time.Duration) Ticker) Option {
	return func(p *Poller) {
		p.newTicker = fn
	}
}

// Poller periodically samples the device location and pushes it to the
// current tracker. At most one loop, and so one ticker, is live at a time.
type Poller struct {
	api          API
	sampler      Sampler
	geocoder     Geocoder
	interval     time.Duration
	verifyActive bool
	logger       *slog.Logger
	onUpdate     func(model.Tracker)
	newTicker    func(time.Duration) Ticker

	mu      sync.Mutex
	tracker *model.Tracker
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}

	cycleMu sync.Mutex
}

func NewPoller(client API, sampler Sampler, geocoder Geocoder, opts ...Option) *Poller {
	p := &Poller{
		api:          client,
		sampler:      sampler,
		geocoder:     geocoder,
		interval:     DefaultInterval,
		verifyActive: true,
		logger:       slog.Default(),
		newTicker:    newTimeTicker,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start follows t, replacing any running loop. One cycle runs before Start
// returns; later cycles run every interval until Stop. Cancelling ctx does
// not end the loop, only its values are carried.
func (p *Poller) Start(ctx context.Context, t model.Tracker) {
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	p.mu.Lock()
	prevCancel, prevDone := p.cancel, p.done
	p.gen++
	gen := p.gen
	p.tracker = clone(t)
	p.cancel, p.done = cancel, done
	p.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	p.logger.Info("tracking started", "tracker_id", t.ID, "child", t.ChildName, "interval", p.interval)
	p.cycle(loopCtx, gen)

	ticker := p.newTicker(p.interval)
	go func() {
		defer close(done)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C():
				p.cycle(loopCtx, gen)
			}
		}
	}()
}

// Stop ends the loop and waits for it to exit. A cycle already in flight
// finishes but its result is discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.gen++
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Info("tracking stopped")
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Snapshot returns a copy of the followed tracker, or nil.
func (p *Poller) Snapshot() *model.Tracker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tracker == nil {
		return nil
	}
	return clone(*p.tracker)
}

// SetActive updates the snapshot's active flag. It does not start or stop
// the loop.
func (p *Poller) SetActive(active bool) {
	p.mu.Lock()
	if p.tracker == nil {
		p.mu.Unlock()
		return
	}
	p.tracker.IsActive = active
	snap := clone(*p.tracker)
	p.mu.Unlock()
	p.notify(*snap)
}

// Follow makes t the snapshot without starting the loop. A running loop is
// stopped.
func (p *Poller) Follow(t model.Tracker) {
	p.Stop()
	p.mu.Lock()
	p.tracker = clone(t)
	p.mu.Unlock()
	p.notify(*clone(t))
}

// Clear stops the loop and forgets the tracker.
func (p *Poller) Clear() {
	p.Stop()
	p.mu.Lock()
	p.tracker = nil
	p.mu.Unlock()
}

// current returns the snapshot when gen is still live and the tracker active.
func (p *Poller) current(gen uint64) (*model.Tracker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen || p.tracker == nil || !p.tracker.IsActive {
		return nil, false
	}
	return clone(*p.tracker), true
}

func (p *Poller) cycle(ctx context.Context, gen uint64) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	snap, ok := p.current(gen)
	if !ok {
		return
	}

	// Requests already issued are allowed to complete after Stop.
	reqCtx := context.WithoutCancel(ctx)
	log := p.logger.With("tracker_id", snap.ID)

	if p.verifyActive {
		remote, err := p.api.GetTracker(reqCtx, snap.ID)
		if err != nil {
			p.fail(log, "refresh tracker", snap.ID, err)
			return
		}
		if remote != nil && !remote.IsActive {
			log.Info("tracker inactive on server, skipping update")
			p.apply(gen, func(t *model.Tracker) { t.IsActive = false })
			return
		}
	}

	fix, err := p.sampler.Sample(reqCtx, geo.DefaultOptions())
	if err != nil {
		p.fail(log, "sample location", snap.ID, err)
		return
	}
	fix.Address = p.geocoder.ReverseGeocode(reqCtx, fix.Latitude, fix.Longitude)

	last, err := p.api.UpdateTrackerLocation(reqCtx, snap.ID, fix.Update())
	if err != nil {
		p.fail(log, "push location", snap.ID, err)
		return
	}
	if last == nil {
		last = &fix
	}

	if !p.apply(gen, func(t *model.Tracker) {
		l := *last
		t.LastLocation = &l
	}) {
		log.Debug("discarding location result after stop")
		return
	}
	log.Debug("location pushed", "lat", last.Latitude, "lon", last.Longitude)
}

// apply mutates the snapshot if gen is still live and notifies the hook.
func (p *Poller) apply(gen uint64, fn func(*model.Tracker)) bool {
	p.mu.Lock()
	if gen != p.gen || p.tracker == nil {
		p.mu.Unlock()
		return false
	}
	fn(p.tracker)
	snap := clone(*p.tracker)
	p.mu.Unlock()

	p.notify(*snap)
	return true
}

func (p *Poller) notify(t model.Tracker) {
	if p.onUpdate != nil {
		p.onUpdate(t)
	}
}

func (p *Poller) fail(log *slog.Logger, op, trackerID string, err error) {
	log.Warn("tracker cycle failed", "op", op, "error", err)

	var le *geo.LocationError
	var ne *api.NetworkError
	if errors.As(err, &le) || errors.As(err, &ne) || errors.Is(err, api.ErrSessionExpired) {
		return
	}
	logging.CaptureError(err, map[string]string{"component": "tracker", "op": op, "tracker_id": trackerID})
}

func clone(t model.Tracker) *model.Tracker {
	if t.LastLocation != nil {
		l := *t.LastLocation
		t.LastLocation = &l
	}
	return &t
}
