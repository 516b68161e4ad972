package mapview

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// DashSequence is the cycle of dash arrays that makes work-in-progress
// sections look like they are moving.
var DashSequence = [][]float64{
	{0, 2, 2},
	{0.5, 2, 1.5},
	{1, 2, 1},
	{1.5, 2, 0.5},
	{2, 2, 0},
	{0, 0.5, 2, 1.5},
	{0, 1, 2, 1},
	{0, 1.5, 2, 0.5},
}

// dashStepMillis controls the animation speed.
const dashStepMillis = 45

// DashStep returns the DashSequence index for a frame timestamp.
func DashStep(elapsed time.Duration) int {
	ms := float64(elapsed) / float64(time.Millisecond)
	return int(math.Floor(math.Mod(ms/dashStepMillis, float64(len(DashSequence)))))
}

// FrameID identifies a scheduled frame callback.
type FrameID uint64

// FrameClock schedules one-shot per-frame callbacks, like a browser's
// requestAnimationFrame. Callbacks receive the time since the clock started.
type FrameClock interface {
	RequestFrame(fn func(elapsed time.Duration)) FrameID
	CancelFrame(id FrameID)
}

// TickerClock is a FrameClock backed by timers firing every Interval.
type TickerClock struct {
	Interval time.Duration

	once   sync.Once
	start  time.Time
	mu     sync.Mutex
	next   FrameID
	timers map[FrameID]*time.Timer
}

// NewTickerClock returns a clock firing frames every interval.
func NewTickerClock(interval time.Duration) *TickerClock {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &TickerClock{Interval: interval}
}

func (c *TickerClock) init() {
	c.once.Do(func() {
		c.start = time.Now()
		c.timers = make(map[FrameID]*time.Timer)
	})
}

// RequestFrame implements FrameClock.
func (c *TickerClock) RequestFrame(fn func(elapsed time.Duration)) FrameID {
	c.init()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.next++
	id := c.next
	c.timers[id] = time.AfterFunc(c.Interval, func() {
		c.mu.Lock()
		_, pending := c.timers[id]
		delete(c.timers, id)
		c.mu.Unlock()
		if pending {
			fn(time.Since(c.start))
		}
	})
	return id
}

// CancelFrame implements FrameClock.
func (c *TickerClock) CancelFrame(id FrameID) {
	c.init()
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
}

// DashAnimator cycles a line layer's dash array on every frame. It is either
// stopped or running with exactly one scheduled frame.
type DashAnimator struct {
	clock   FrameClock
	surface Surface
	layer   string
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	frame   FrameID
	gen     uint64
	step    int
}

// NewDashAnimator returns a stopped animator for layer.
func NewDashAnimator(clock FrameClock, surface Surface, layer string, logger *slog.Logger) *DashAnimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashAnimator{clock: clock, surface: surface, layer: layer, logger: logger}
}

// Start begins the animation, cancelling any loop already running.
func (a *DashAnimator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopLocked()
	a.gen++
	a.running = true
	a.step = 0
	a.schedule(a.gen)
}

// Stop cancels the animation loop.
func (a *DashAnimator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

// Running reports whether a loop is active.
func (a *DashAnimator) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Step returns the dash step currently applied.
func (a *DashAnimator) Step() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.step
}

func (a *DashAnimator) stopLocked() {
	if !a.running {
		return
	}
	a.clock.CancelFrame(a.frame)
	a.running = false
	a.gen++
}

func (a *DashAnimator) schedule(gen uint64) {
	a.frame = a.clock.RequestFrame(func(elapsed time.Duration) {
		a.tick(gen, elapsed)
	})
}

func (a *DashAnimator) tick(gen uint64, elapsed time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// A callback from a cancelled loop may still fire once.
	if !a.running || gen != a.gen {
		return
	}
	if step := DashStep(elapsed); step != a.step {
		if err := a.surface.SetPaintProperty(a.layer, "line-dasharray", DashSequence[step]); err != nil {
			a.logger.Error("Dash animation stopped", "layer", a.layer, "error", err)
			a.running = false
			return
		}
		a.step = step
	}
	a.schedule(gen)
}
