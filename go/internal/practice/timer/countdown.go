package timer

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

const tickInterval = time.Second

// Countdown is a one-shot-per-start clock that ticks once per second and
// notifies exactly once when the remaining time reaches zero.
//
// Notifications are delivered on the countdown's own goroutine and never while
// its lock is held, so callbacks may call back into Cancel or Start.
type Countdown struct {
	clock  Clock
	onTick func(remaining int)

	mu        sync.Mutex
	gen       uint64
	stop      chan struct{}
	ticker    clockwork.Ticker
	deadline  time.Time
	remaining int
	ticking   bool
}

// Option configures a Countdown.
type Option func(*Countdown)

// WithTickHandler registers fn to be called with the remaining seconds after every tick.
func WithTickHandler(fn func(remaining int)) Option {
	return func(c *Countdown) {
		c.onTick = fn
	}
}

// NewCountdown creates an idle countdown driven by clock.
func NewCountdown(clock Clock, opts ...Option) *Countdown {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	c := &Countdown{clock: clock}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a new run of durationSec seconds. Any prior run is cancelled
// first, so at most one run is ever live. onExpire fires at most once for this run.
func (c *Countdown) Start(durationSec int, onExpire func()) {
	c.StartWithTicks(durationSec, c.onTick, onExpire)
}

// StartWithTicks is Start with a tick handler bound to this run only, in place
// of the one registered with WithTickHandler.
func (c *Countdown) StartWithTicks(durationSec int, onTick func(remaining int), onExpire func()) {
	if durationSec < 0 {
		durationSec = 0
	}

	c.mu.Lock()
	c.stopLocked()
	c.gen++
	gen := c.gen
	c.deadline = c.clock.Now().Add(time.Duration(durationSec) * time.Second)
	c.remaining = durationSec
	c.ticking = true
	c.stop = make(chan struct{})
	c.ticker = c.clock.NewTicker(tickInterval)
	stop, ticker := c.stop, c.ticker
	c.mu.Unlock()

	log.Debug().Uint64("run", gen).Int("duration_sec", durationSec).Msg("countdown started")

	go c.run(gen, ticker, stop, onTick, onExpire)
}

// Cancel stops the live run, if any, and suppresses its expiry notification.
// The remaining seconds are frozen at their value when Cancel was called.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ticking {
		return
	}
	c.remaining = c.remainingLocked()
	c.stopLocked()
	log.Debug().Uint64("run", c.gen).Int("remaining_sec", c.remaining).Msg("countdown cancelled")
}

// Remaining returns the whole seconds left in the current run. It is never negative.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked()
}

// Ticking reports whether a run is live.
func (c *Countdown) Ticking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticking
}

func (c *Countdown) run(gen uint64, ticker clockwork.Ticker, stop <-chan struct{}, onTick func(int), onExpire func()) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
		}

		c.mu.Lock()
		if c.gen != gen || !c.ticking {
			c.mu.Unlock()
			return
		}
		rem := c.remainingLocked()
		expired := rem == 0
		if expired {
			c.remaining = 0
			c.stopLocked()
		}
		c.mu.Unlock()

		if onTick != nil {
			onTick(rem)
		}
		if expired {
			log.Debug().Uint64("run", gen).Msg("countdown expired")
			if onExpire != nil {
				onExpire()
			}
			return
		}
	}
}

func (c *Countdown) remainingLocked() int {
	if !c.ticking {
		return c.remaining
	}
	left := c.deadline.Sub(c.clock.Now())
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

// stopLocked tears down the live run. Callers must hold c.mu.
func (c *Countdown) stopLocked() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.ticking = false
}

// FormatRemaining renders seconds as MM:SS for display.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
