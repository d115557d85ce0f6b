// Package reachability tracks whether the network path to an upstream is
// usable. The client's retry interceptor consults it to retry failures
// that happen while the path is down.
package reachability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/gaborage/courier/config"
	"github.com/gaborage/courier/logger"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultTimeout  = 2 * time.Second
)

// ErrAlreadyStarted is returned by Start on a running monitor.
var ErrAlreadyStarted = errors.New("reachability: monitor already started")

// Probe checks the path once. A nil error means reachable.
type Probe interface {
	Probe(ctx context.Context) error
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context) error

// Probe calls f.
func (f ProbeFunc) Probe(ctx context.Context) error { return f(ctx) }

// TCPProbe reports the path reachable when a TCP connection to address
// can be opened.
func TCPProbe(address string) Probe {
	return ProbeFunc(func(ctx context.Context) error {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", address)
		if err != nil {
			return err
		}
		return conn.Close()
	})
}

// Static is a fixed answer, handy for tests and for disabling monitoring.
type Static bool

// IsReachable returns s.
func (s Static) IsReachable() bool { return bool(s) }

// Monitor probes periodically and caches the last answer. It reports
// reachable until a probe says otherwise.
type Monitor struct {
	probe    Probe
	interval time.Duration
	timeout  time.Duration
	log      logger.Logger

	reachable atomic.Bool
	probes    atomic.Int64

	mu        sync.Mutex
	scheduler gocron.Scheduler
	onChange  func(reachable bool)
}

// NewMonitor creates a stopped monitor. Non-positive durations select the defaults.
func NewMonitor(probe Probe, interval, timeout time.Duration, log logger.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	m := &Monitor{probe: probe, interval: interval, timeout: timeout, log: log}
	m.reachable.Store(true)
	return m
}

// NewFromConfig builds a TCP monitor for cfg.Address. A disabled config
// returns an error satisfying config.IsNotConfigured.
func NewFromConfig(cfg config.ReachabilityConfig, log logger.Logger) (*Monitor, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("reachability: %w", config.ErrNotConfigured)
	}
	if cfg.Address == "" {
		return nil, config.NewMissingFieldError("reachability.address", config.EnvPrefix+"REACHABILITY_ADDRESS", "reachability.address")
	}
	return NewMonitor(TCPProbe(cfg.Address), cfg.Interval, cfg.Timeout, log), nil
}

// OnChange registers fn to run after every transition. It must be set
// before Start.
func (m *Monitor) OnChange(fn func(reachable bool)) *Monitor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
	return m
}

// IsReachable returns the last probe result.
func (m *Monitor) IsReachable() bool {
	return m.reachable.Load()
}

// Probes returns how many probes have completed.
func (m *Monitor) Probes() int64 {
	return m.probes.Load()
}

// Check probes now and returns the new state.
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.probe.Probe(ctx)
	m.probes.Add(1)
	ok := err == nil
	if prev := m.reachable.Swap(ok); prev != ok {
		ev := m.log.Warn()
		if ok {
			ev = m.log.Info()
		}
		ev.Bool("reachable", ok).Err(err).Msg("Network path changed")

		m.mu.Lock()
		fn := m.onChange
		m.mu.Unlock()
		if fn != nil {
			fn(ok)
		}
	}
	return ok
}

// Start probes immediately and then every interval. Overlapping runs are
// skipped rather than queued.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scheduler != nil {
		return ErrAlreadyStarted
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("reachability: failed to create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(m.interval),
		gocron.NewTask(func() { m.Check(context.Background()) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("reachability: failed to schedule probe: %w", err)
	}

	s.Start()
	m.scheduler = s
	m.log.Debug().Dur("interval", m.interval).Msg("Reachability monitor started")
	return nil
}

// Stop halts probing and waits for a running probe to finish. The cached
// state is kept. Stopping a stopped monitor is a no-op.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	s := m.scheduler
	m.scheduler = nil
	m.mu.Unlock()

	if s == nil {
		return nil
	}
	if err := s.Shutdown(); err != nil {
		return fmt.Errorf("reachability: failed to stop scheduler: %w", err)
	}
	return nil
}
