// Package ratelimit gates the analysis endpoint with two fixed windows per client:
// a short burst window and a daily window.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	WindowMinute = "minute"
	WindowDaily  = "daily"
)

type Config struct {
	PerMinute     int
	PerDay        int
	MinuteWindow  time.Duration
	DailyWindow   time.Duration
	SweepInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		PerMinute:     2,
		PerDay:        30,
		MinuteWindow:  time.Minute,
		DailyWindow:   24 * time.Hour,
		SweepInterval: time.Hour,
	}
}

type Remaining struct {
	Minute int `json:"minute"`
	Daily  int `json:"daily"`
}

// Decision is the outcome of a single check. Window names the limit that rejected
// the request and is empty when Allowed.
type Decision struct {
	Allowed           bool
	RetryAfterSeconds int
	Message           string
	Window            string
	Remaining         Remaining
}

// Checker is implemented by every limiter backend.
type Checker interface {
	Check(ctx context.Context, clientKey string) Decision
}

type entry struct {
	minuteCount int
	minuteReset time.Time
	dailyCount  int
	dailyReset  time.Time
}

// Limiter is the in-process backend. Check and increment happen under one mutex.
type Limiter struct {
	cfg     Config
	now     func() time.Time
	logger  *zap.Logger
	mu      sync.Mutex
	entries map[string]*entry
}

type Option func(*Limiter)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func New(cfg Config, opts ...Option) *Limiter {
	def := DefaultConfig()
	if cfg.MinuteWindow <= 0 {
		cfg.MinuteWindow = def.MinuteWindow
	}
	if cfg.DailyWindow <= 0 {
		cfg.DailyWindow = def.DailyWindow
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	l := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		logger:  zap.NewNop(),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Check(_ context.Context, clientKey string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[clientKey]
	if !ok {
		e = &entry{
			minuteReset: now.Add(l.cfg.MinuteWindow),
			dailyReset:  now.Add(l.cfg.DailyWindow),
		}
		l.entries[clientKey] = e
	}
	if !now.Before(e.minuteReset) {
		e.minuteCount = 0
		e.minuteReset = now.Add(l.cfg.MinuteWindow)
	}
	if !now.Before(e.dailyReset) {
		e.dailyCount = 0
		e.dailyReset = now.Add(l.cfg.DailyWindow)
	}

	if e.dailyCount >= l.cfg.PerDay {
		return reject(WindowDaily, e.dailyReset.Sub(now))
	}
	if e.minuteCount >= l.cfg.PerMinute {
		return reject(WindowMinute, e.minuteReset.Sub(now))
	}

	e.minuteCount++
	e.dailyCount++
	return Decision{
		Allowed: true,
		Remaining: Remaining{
			Minute: l.cfg.PerMinute - e.minuteCount,
			Daily:  l.cfg.PerDay - e.dailyCount,
		},
	}
}

// Sweep removes clients whose daily window lapsed more than one daily window ago.
// It returns the number of entries removed.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, e := range l.entries {
		if now.Sub(e.dailyReset) > l.cfg.DailyWindow {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Run sweeps on the configured interval until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := l.Sweep(l.now()); n > 0 {
				l.logger.Debug("rate limiter sweep", zap.Int("removed", n), zap.Int("tracked", l.Len()))
			}
		}
	}
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func reject(window string, wait time.Duration) Decision {
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return Decision{
		Allowed:           false,
		RetryAfterSeconds: seconds,
		Message:           rejectMessage(window, seconds),
		Window:            window,
	}
}

func rejectMessage(window string, seconds int) string {
	if window == WindowDaily {
		hours := int(math.Ceil(float64(seconds) / 3600))
		return fmt.Sprintf("Daily analysis limit reached. You can run a new analysis in about %d hour(s).", hours)
	}
	return fmt.Sprintf("Too many analysis requests. Please wait %d seconds and try again.", seconds)
}
