// Package timeline maps horizontal drag gestures over a thumbnail strip to
// a fixed-length time window of the source video. Everything here is pure
// arithmetic: no clocks, no I/O, no goroutines.
package timeline

import (
	"errors"
	"math"
)

// DefaultMaxDuration is the selection length in seconds.
const DefaultMaxDuration = 5.0

// Spring parameters for the release animation.
const (
	SpringDamping   = 20.0
	SpringStiffness = 10.0
	SpringMass      = 1.5

	// FrameRate is the sampling rate of settle frames.
	FrameRate = 60.0
	// maxSettleFrames caps the animation at ten seconds.
	maxSettleFrames = 600
	restDistance    = 0.5
	restVelocity    = 0.5
)

var ErrInvalidGeometry = errors.New("timeline: duration and width must be positive")

// Config describes the strip being dragged over.
type Config struct {
	// Duration is the total source length in seconds.
	Duration float64
	// Width is the active area width in pixels.
	Width float64
	// MaxDuration is the selection length; zero means DefaultMaxDuration.
	MaxDuration float64
	// Snap, when positive, makes the release settle on a start time that is
	// a multiple of Snap seconds.
	Snap float64
}

func (c Config) maxDuration() float64 {
	if c.MaxDuration <= 0 {
		return DefaultMaxDuration
	}
	return c.MaxDuration
}

// SegmentWidth is the pixel width of the selection box. It saturates at
// Width when the video is no longer than MaxDuration.
func (c Config) SegmentWidth() float64 {
	return math.Min((c.maxDuration()/c.Duration)*c.Width, c.Width)
}

// MaxPosition is the largest valid left edge of the selection box.
func (c Config) MaxPosition() float64 {
	return math.Max(c.Width-c.SegmentWidth(), 0)
}

// Window is one emitted selection.
type Window struct {
	Position float64 `json:"position"`
	Start    float64 `json:"start_time"`
	End      float64 `json:"end_time"`
}

// Duration of the window in seconds.
func (w Window) Duration() float64 {
	return w.End - w.Start
}

// Controller holds the selection position between gesture events.
type Controller struct {
	cfg      Config
	position float64
}

// New returns a controller whose selection starts at position, clamped.
func New(cfg Config, position float64) (*Controller, error) {
	if !(cfg.Duration > 0) || !(cfg.Width > 0) || math.IsInf(cfg.Duration, 0) || math.IsInf(cfg.Width, 0) {
		return nil, ErrInvalidGeometry
	}
	c := &Controller{cfg: cfg}
	c.position = c.clamp(position)
	return c, nil
}

func (c *Controller) Config() Config {
	return c.cfg
}

func (c *Controller) Position() float64 {
	return c.position
}

// Window returns the selection for the current position.
func (c *Controller) Window() Window {
	return c.windowAt(c.position)
}

// Drag moves the selection by dx pixels and returns the new window. The
// position is clamped before anything is emitted.
func (c *Controller) Drag(dx float64) Window {
	if math.IsNaN(dx) || math.IsInf(dx, 0) {
		return c.Window()
	}
	c.position = c.clamp(c.position + dx)
	return c.Window()
}

// Settle is the release animation and the window it comes to rest on.
type Settle struct {
	Frames []float64 `json:"frames"`
	Window Window    `json:"window"`
}

// Release animates the selection to its resting position with a damped
// spring sampled at FrameRate. Every frame is clamped to the valid range and
// the last frame is exactly the rest position.
func (c *Controller) Release() Settle {
	target := c.restTarget()
	frames := springFrames(c.position, target, c.clamp)
	c.position = target
	return Settle{Frames: frames, Window: c.Window()}
}

// Playhead is the indicator offset in pixels inside the selection box for
// playback time current. It is display only and never moves the selection.
func (c *Controller) Playhead(current float64) float64 {
	w := c.Window()
	seg := c.cfg.SegmentWidth()
	p := (current - w.Start) / c.cfg.maxDuration() * seg
	return math.Max(0, math.Min(p, seg))
}

func (c *Controller) restTarget() float64 {
	if c.cfg.Snap <= 0 {
		return c.position
	}
	start := c.position / c.cfg.Width * c.cfg.Duration
	snapped := math.Round(start/c.cfg.Snap) * c.cfg.Snap
	return c.clamp(snapped / c.cfg.Duration * c.cfg.Width)
}

func (c *Controller) windowAt(position float64) Window {
	start := (position / c.cfg.Width) * c.cfg.Duration
	end := math.Min(start+c.cfg.maxDuration(), c.cfg.Duration)
	return Window{Position: position, Start: start, End: end}
}

func (c *Controller) clamp(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(0, math.Min(p, c.cfg.MaxPosition()))
}

func springFrames(from, to float64, clamp func(float64) float64) []float64 {
	const dt = 1 / FrameRate
	x, v := from, 0.0
	frames := []float64{}
	for i := 0; i < maxSettleFrames; i++ {
		if math.Abs(x-to) < restDistance && math.Abs(v) < restVelocity {
			break
		}
		a := (-SpringStiffness*(x-to) - SpringDamping*v) / SpringMass
		v += a * dt
		x = clamp(x + v*dt)
		frames = append(frames, x)
	}
	return append(frames, to)
}

// Reduce folds a delta stream into the windows a controller would emit,
// starting from position start.
func Reduce(cfg Config, start float64, deltas []float64) ([]Window, error) {
	c, err := New(cfg, start)
	if err != nil {
		return nil, err
	}
	out := make([]Window, 0, len(deltas))
	for _, dx := range deltas {
		out = append(out, c.Drag(dx))
	}
	return out, nil
}
