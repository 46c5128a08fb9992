package examsession

import (
	"context"
	"sync"
	"time"
)

// CountdownState is the countdown state machine: Idle -> Running -> Expired,
// with Cancelled reachable from Idle or Running.
type CountdownState int

const (
	CountdownIdle CountdownState = iota
	CountdownRunning
	CountdownExpired
	CountdownCancelled
)

func (s CountdownState) String() string {
	switch s {
	case CountdownIdle:
		return "idle"
	case CountdownRunning:
		return "running"
	case CountdownExpired:
		return "expired"
	case CountdownCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Tier is the presentation urgency of the remaining time.
type Tier string

const (
	TierNormal  Tier = "normal"
	TierWarning Tier = "warning"
	TierUrgent  Tier = "urgent"
)

const (
	urgentThreshold  = 60
	warningThreshold = 180
)

// TierFor maps remaining seconds to a presentation tier.
func TierFor(secondsLeft int) Tier {
	switch {
	case secondsLeft <= urgentThreshold:
		return TierUrgent
	case secondsLeft <= warningThreshold:
		return TierWarning
	default:
		return TierNormal
	}
}

// DefaultTickInterval is one countdown step.
const DefaultTickInterval = time.Second

// Countdown decrements remaining time by one per tick and fires onExpire
// exactly once when it reaches zero.
type Countdown struct {
	mu          sync.Mutex
	state       CountdownState
	secondsLeft int
	expired     bool
	running     bool

	interval time.Duration
	onExpire func()
	onTick   func(secondsLeft int)

	done     chan struct{}
	doneOnce sync.Once
}

// NewCountdown creates an idle countdown. onTick may be nil.
func NewCountdown(interval time.Duration, onExpire func(), onTick func(secondsLeft int)) *Countdown {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Countdown{
		interval: interval,
		onExpire: onExpire,
		onTick:   onTick,
		done:     make(chan struct{}),
	}
}

// Start initializes the remaining time and clears the expired flag.
// Only an idle countdown with a positive total can start; later calls,
// such as a reload of the same exam, are ignored.
func (c *Countdown) Start(totalSeconds int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != CountdownIdle || totalSeconds <= 0 {
		return false
	}
	c.secondsLeft = totalSeconds
	c.expired = false
	c.state = CountdownRunning
	return true
}

// Tick advances the countdown by one step. It reports whether the
// countdown is still running afterwards.
func (c *Countdown) Tick() bool {
	c.mu.Lock()
	if c.state != CountdownRunning {
		c.mu.Unlock()
		return false
	}

	if c.secondsLeft > 0 {
		c.secondsLeft--
	}
	left := c.secondsLeft

	fire := false
	if left == 0 && !c.expired {
		c.expired = true
		c.state = CountdownExpired
		fire = true
	}
	onTick := c.onTick
	c.mu.Unlock()

	if onTick != nil {
		onTick(left)
	}
	if fire {
		c.stop()
		if c.onExpire != nil {
			c.onExpire()
		}
	}
	return !fire
}

// Run drives Tick from a ticker until the countdown stops or ctx ends.
// At most one Run loop is active per countdown.
func (c *Countdown) Run(ctx context.Context) {
	c.mu.Lock()
	if c.running || c.state != CountdownRunning {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			if !c.Tick() {
				return
			}
		}
	}
}

// Cancel silences the countdown. Pending and future ticks become no-ops.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	if c.state == CountdownIdle || c.state == CountdownRunning {
		c.state = CountdownCancelled
	}
	c.mu.Unlock()
	c.stop()
}

// SecondsLeft returns the remaining time while running or expired.
func (c *Countdown) SecondsLeft() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != CountdownRunning && c.state != CountdownExpired {
		return 0, false
	}
	return c.secondsLeft, true
}

// State returns the current state.
func (c *Countdown) State() CountdownState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Expired reports whether onExpire has fired.
func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

func (c *Countdown) stop() {
	c.doneOnce.Do(func() { close(c.done) })
}
