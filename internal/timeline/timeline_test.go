package timeline

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func TestSegmentWidth(t *testing.T) {
	assert.InDelta(t, 100.0, Config{Duration: 30, Width: 600}.SegmentWidth(), eps)
	assert.InDelta(t, 600.0, Config{Duration: 5, Width: 600}.SegmentWidth(), eps)
	assert.InDelta(t, 600.0, Config{Duration: 2, Width: 600}.SegmentWidth(), eps)
	assert.InDelta(t, 200.0, Config{Duration: 30, Width: 600, MaxDuration: 10}.SegmentWidth(), eps)
}

func TestNew_RejectsBadGeometry(t *testing.T) {
	for _, cfg := range []Config{
		{Duration: 0, Width: 100},
		{Duration: 10, Width: 0},
		{Duration: math.NaN(), Width: 100},
		{Duration: math.Inf(1), Width: 100},
	} {
		_, err := New(cfg, 0)
		assert.ErrorIs(t, err, ErrInvalidGeometry)
	}
}

func TestDrag_MapsPositionToTime(t *testing.T) {
	c, err := New(Config{Duration: 30, Width: 600}, 0)
	require.NoError(t, err)

	w := c.Drag(200)
	assert.InDelta(t, 200.0, w.Position, eps)
	assert.InDelta(t, 10.0, w.Start, eps)
	assert.InDelta(t, 15.0, w.End, eps)
}

func TestDrag_ClampsBothEdges(t *testing.T) {
	c, err := New(Config{Duration: 30, Width: 600}, 0)
	require.NoError(t, err)

	w := c.Drag(-50)
	assert.Equal(t, 0.0, w.Position)
	assert.Equal(t, 0.0, w.Start)

	w = c.Drag(10_000)
	assert.InDelta(t, 500.0, w.Position, eps)
	assert.InDelta(t, 25.0, w.Start, eps)
	assert.InDelta(t, 30.0, w.End, eps)
}

func TestDrag_ShortVideoSelectsEverything(t *testing.T) {
	c, err := New(Config{Duration: 3, Width: 400}, 0)
	require.NoError(t, err)

	for _, dx := range []float64{50, -20, 300} {
		w := c.Drag(dx)
		assert.Equal(t, 0.0, w.Position)
		assert.Equal(t, 0.0, w.Start)
		assert.Equal(t, 3.0, w.End)
	}
}

func TestDrag_IgnoresNonFiniteDelta(t *testing.T) {
	c, err := New(Config{Duration: 30, Width: 600}, 100)
	require.NoError(t, err)

	assert.InDelta(t, 100.0, c.Drag(math.NaN()).Position, eps)
	assert.InDelta(t, 100.0, c.Drag(math.Inf(1)).Position, eps)
}

func TestDrag_RandomStreamsStayInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		cfg := Config{
			Duration: 1 + rng.Float64()*120,
			Width:    100 + rng.Float64()*900,
		}
		c, err := New(cfg, rng.Float64()*cfg.Width)
		require.NoError(t, err)

		maxPos := cfg.MaxPosition()
		for step := 0; step < 100; step++ {
			w := c.Drag((rng.Float64() - 0.5) * cfg.Width)
			require.GreaterOrEqual(t, w.Position, 0.0)
			require.LessOrEqual(t, w.Position, maxPos+eps)
			require.GreaterOrEqual(t, w.Start, 0.0)
			require.Less(t, w.Start, w.End+eps)
			require.LessOrEqual(t, w.End, cfg.Duration+eps)
			require.LessOrEqual(t, w.Duration(), DefaultMaxDuration+eps)
		}
	}
}

func TestRelease_SettlesOnValidatedPosition(t *testing.T) {
	c, err := New(Config{Duration: 30, Width: 600}, 0)
	require.NoError(t, err)
	dragged := c.Drag(237)

	s := c.Release()
	require.NotEmpty(t, s.Frames)
	assert.Equal(t, dragged.Position, s.Frames[len(s.Frames)-1])
	assert.Equal(t, dragged, s.Window)
}

func TestRelease_SpringIsAnimatedAndClamped(t *testing.T) {
	cfg := Config{Duration: 30, Width: 600, Snap: 1}
	c, err := New(cfg, 0)
	require.NoError(t, err)
	c.Drag(230) // 11.5s, snaps to 12s = 240px

	s := c.Release()
	require.Greater(t, len(s.Frames), 2, "release must animate, not jump")
	for _, f := range s.Frames {
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, cfg.MaxPosition())
	}
	assert.InDelta(t, 240.0, s.Frames[len(s.Frames)-1], eps)
	assert.InDelta(t, 12.0, s.Window.Start, eps)
	assert.InDelta(t, 17.0, s.Window.End, eps)
	assert.InDelta(t, 240.0, c.Position(), eps)

	// Overdamped: frames approach the target monotonically.
	for i := 1; i < len(s.Frames); i++ {
		assert.GreaterOrEqual(t, s.Frames[i]+eps, s.Frames[i-1])
	}
}

func TestRelease_SnapNearEndStaysInRange(t *testing.T) {
	cfg := Config{Duration: 12.4, Width: 620, Snap: 1}
	c, err := New(cfg, 0)
	require.NoError(t, err)
	c.Drag(10_000)

	s := c.Release()
	assert.LessOrEqual(t, s.Window.End, cfg.Duration+eps)
	assert.LessOrEqual(t, c.Position(), cfg.MaxPosition()+eps)
}

func TestPlayhead(t *testing.T) {
	c, err := New(Config{Duration: 30, Width: 600}, 200) // window 10..15, segment 100px
	require.NoError(t, err)

	assert.InDelta(t, 0.0, c.Playhead(9), eps)
	assert.InDelta(t, 0.0, c.Playhead(10), eps)
	assert.InDelta(t, 50.0, c.Playhead(12.5), eps)
	assert.InDelta(t, 100.0, c.Playhead(20), eps)
	assert.InDelta(t, 200.0, c.Position(), eps, "playhead must not move the selection")
}

func TestReduce(t *testing.T) {
	windows, err := Reduce(Config{Duration: 30, Width: 600}, 0, []float64{100, 100, -300})
	require.NoError(t, err)
	require.Len(t, windows, 3)
	assert.InDelta(t, 5.0, windows[0].Start, eps)
	assert.InDelta(t, 10.0, windows[1].Start, eps)
	assert.Equal(t, 0.0, windows[2].Start)

	_, err = Reduce(Config{}, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}
