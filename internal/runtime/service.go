package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	configpkg "github.com/relaykit/deferral/internal/runtime/config"
	errspkg "github.com/relaykit/deferral/internal/runtime/errors"
	jsoncodec "github.com/relaykit/deferral/internal/runtime/jsoncodec"
	loggingpkg "github.com/relaykit/deferral/internal/runtime/logging"
)

// ServiceDependencies holds the collaborators the Service orchestrates.
// Confirmer, Resolver, Activator, Restarter, and State are required; the
// rest default sensibly when nil.
type ServiceDependencies struct {
	Confirmer Confirmer
	Resolver  LifecycleResolver
	Activator ActivationTrigger
	Restarter HostRestarter
	State     StateStore

	// Notifier shows progress and prompts; nil drops notifications.
	Notifier Notifier
	// Clock drives retention timestamps; nil uses the wall clock.
	Clock Clock
	// Metrics receives routing statistics; nil creates fresh collectors.
	Metrics *RouterMetrics
	// MetricsRegisterer is where collectors are registered when metrics are
	// enabled; nil uses prometheus.DefaultRegisterer.
	MetricsRegisterer prometheus.Registerer
	// TransportFactory builds the broker ingress; nil uses the registry.
	TransportFactory TransportFactory
	// SweepTicks overrides the sweep timer so tests control time; nil runs a
	// time.Ticker at the configured interval.
	SweepTicks <-chan time.Time
}

// Service routes addressed messages to subscribers that may not be ready yet,
// buffering them with bounded retention and replaying them in order once the
// subscriber registers.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	registry *handlerRegistry
	pending  *retentionStore
	locks    *addressLocks
	metrics  *RouterMetrics
	clock    Clock

	confirmer Confirmer
	resolver  LifecycleResolver
	activator ActivationTrigger
	restarter HostRestarter
	state     StateStore
	notifier  Notifier

	transportFactory TransportFactory
	sweepTicks       <-chan time.Time

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	eg      *errgroup.Group
}

// NewService constructs a Service for the supplied configuration. Register
// handlers on the returned Service and call Start to begin the sweep, the
// broker ingress, and the restart-carry replay.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		conf = &configpkg.Config{}
	}
	if log == nil {
		log = loggingpkg.NewNopServiceLogger()
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	switch {
	case deps.Confirmer == nil:
		return nil, errspkg.ErrConfirmerRequired
	case deps.Resolver == nil:
		return nil, errspkg.ErrResolverRequired
	case deps.Activator == nil:
		return nil, errspkg.ErrActivatorRequired
	case deps.Restarter == nil:
		return nil, errspkg.ErrRestarterRequired
	case deps.State == nil:
		return nil, errspkg.ErrStateRequired
	}

	clock := deps.Clock
	if clock == nil {
		clock = systemClock{}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewRouterMetrics()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	factory := deps.TransportFactory
	if factory == nil {
		factory = DefaultTransportFactory()
	}

	if conf.MetricsEnabled {
		reg := deps.MetricsRegisterer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		if err := metrics.Register(reg); err != nil {
			return nil, err
		}
	}

	log.Info("Creating deferral service", loggingpkg.LogFields{
		"pubsub_system": conf.PubSubSystem,
		"config":        conf,
	})

	return &Service{
		Conf:   conf,
		Logger: log,

		registry: newHandlerRegistry(),
		pending:  newRetentionStore(conf.EffectiveRetentionWindow(), clock),
		locks:    newAddressLocks(),
		metrics:  metrics,
		clock:    clock,

		confirmer: deps.Confirmer,
		resolver:  deps.Resolver,
		activator: deps.Activator,
		restarter: deps.Restarter,
		state:     deps.State,
		notifier:  notifier,

		transportFactory: factory,
		sweepTicks:       deps.SweepTicks,
	}, nil
}

// Register installs or replaces the handler binding for the address, then
// drains every buffered message for it in arrival order. Drained deliveries
// are best-effort: their original callers already saw handled=true.
func (s *Service) Register(ctx context.Context, address string, handler Handler) error {
	if handler == nil {
		return errspkg.ErrHandlerRequired
	}
	if address == "" {
		return errspkg.ErrAddressRequired
	}
	addr, ok := ParseAddress(address)
	if !ok {
		return errspkg.ErrInvalidAddress
	}

	unlock := s.locks.Lock(addr)
	s.registry.Bind(addr, handler)
	drained := s.pending.Drain(addr)
	unlock()

	log := s.Logger.With(loggingpkg.LogFields{"address": addr.String()})
	if len(drained) == 0 {
		log.Info("Registered handler", nil)
		return nil
	}

	log.Info("Registered handler, draining buffered messages", loggingpkg.LogFields{
		"count": len(drained),
	})
	now := s.clock.Now()
	ages := make([]time.Duration, len(drained))
	for i, entry := range drained {
		ages[i] = now.Sub(entry.enqueuedAt)
		s.dispatch(ctx, handler, entry.msg, log)
	}
	s.metrics.RecordDrained(ages)
	return nil
}

// Unregister removes the handler binding if present. Buffered entries are
// untouched; they wait for a future registration or the sweep.
func (s *Service) Unregister(address string) error {
	addr, ok := ParseAddress(address)
	if !ok {
		return errspkg.ErrInvalidAddress
	}
	s.registry.Unbind(addr)
	s.Logger.Info("Unregistered handler", loggingpkg.LogFields{"address": addr.String()})
	return nil
}

// Start launches the sweep, the broker ingress when configured, and the
// metrics endpoint, then replays any message carried across a restart. It
// does not block; call Stop to shut the background work down.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errspkg.ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	eg, egCtx := errgroup.WithContext(runCtx)
	s.started = true
	s.cancel = cancel
	s.eg = eg
	s.mu.Unlock()

	eg.Go(func() error { return s.sweepLoop(egCtx) })
	if s.Conf.PubSubSystem != "" {
		eg.Go(func() error { return s.runIngress(egCtx) })
	}
	if s.Conf.MetricsEnabled && s.Conf.MetricsPort > 0 {
		eg.Go(func() error { return s.serveMetrics(egCtx) })
	}

	s.replayCarry(runCtx)
	return nil
}

// Stop cancels the background work and waits for it to finish.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errspkg.ErrNotStarted
	}
	cancel := s.cancel
	eg := s.eg
	s.started = false
	s.cancel = nil
	s.eg = nil
	s.mu.Unlock()

	cancel()
	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Service) sweepLoop(ctx context.Context) error {
	ticks := s.sweepTicks
	if ticks == nil {
		ticker := time.NewTicker(s.Conf.EffectiveSweepInterval())
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks:
			if evicted := s.pending.Sweep(); evicted > 0 {
				s.metrics.RecordEvicted(evicted)
				s.Logger.Debug("Evicted stale buffered messages", loggingpkg.LogFields{
					"count": evicted,
				})
			}
		}
	}
}

func (s *Service) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/pending", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := jsoncodec.Encode(w, s.PendingSnapshot()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", s.Conf.MetricsPort), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.Logger.Info("Serving metrics", loggingpkg.LogFields{"address": srv.Addr})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// PendingSnapshot reports the buffered messages without mutating them.
func (s *Service) PendingSnapshot() PendingSnapshot {
	return s.pending.Snapshot()
}

// MetricsSnapshot reports accumulated routing activity.
func (s *Service) MetricsSnapshot() RouterMetricsSnapshot {
	return s.metrics.Snapshot(s.pending.Total(), s.clock.Now())
}

type nopNotifier struct{}

func (nopNotifier) StartProgress(string) ProgressHandle     { return nopProgress{} }
func (nopNotifier) Notify(Severity, string)                 {}
func (nopNotifier) Prompt(Severity, string, string, func()) {}

type nopProgress struct{}

func (nopProgress) Update(string)   {}
func (nopProgress) Fail(error)      {}
func (nopProgress) Done()           {}
func (nopProgress) Dismissed() bool { return false }
