package metrics

import (
	"math"

	"github.com/san-kum/popsim/internal/dynamo"
)

const (
	NamePeak             = "peak"
	NameRelativeChange   = "relative_change"
	NameCapacityFraction = "capacity_fraction"
	NameHalfCapacityTime = "half_capacity_time"
)

// NotReached is the value of a threshold metric whose threshold the
// trajectory never crossed.
const NotReached = -1.0

// Reached reports whether v is a real observation of the named metric rather
// than its NotReached marker. Metrics without a threshold are always reached.
func Reached(name string, v float64) bool {
	return name != NameHalfCapacityTime || v != NotReached
}

// Default returns a fresh set of population metrics for one run.
func Default(capacity float64) []dynamo.Metric {
	return []dynamo.Metric{
		NewPeak(),
		NewRelativeChange(),
		NewCapacityFraction(capacity),
		NewHalfCapacityTime(capacity),
	}
}

type Peak struct {
	name string
	max  float64
	seen bool
}

func NewPeak() *Peak {
	return &Peak{name: NamePeak}
}

func (p *Peak) Name() string { return p.name }

func (p *Peak) Observe(x dynamo.State, t float64) {
	if len(x) == 0 {
		return
	}
	if !p.seen || x[0] > p.max {
		p.max = x[0]
		p.seen = true
	}
}

func (p *Peak) Value() float64 { return p.max }

func (p *Peak) Reset() {
	p.max = 0
	p.seen = false
}

// RelativeChange is (last - first) / first.
type RelativeChange struct {
	name  string
	first float64
	last  float64
	seen  bool
}

func NewRelativeChange() *RelativeChange {
	return &RelativeChange{name: NameRelativeChange}
}

func (r *RelativeChange) Name() string { return r.name }

func (r *RelativeChange) Observe(x dynamo.State, t float64) {
	if len(x) == 0 {
		return
	}
	if !r.seen {
		r.first = x[0]
		r.seen = true
	}
	r.last = x[0]
}

func (r *RelativeChange) Value() float64 {
	if r.first == 0 {
		return 0
	}
	return (r.last - r.first) / r.first
}

func (r *RelativeChange) Reset() {
	r.first = 0
	r.last = 0
	r.seen = false
}

type CapacityFraction struct {
	name     string
	capacity float64
	last     float64
}

func NewCapacityFraction(capacity float64) *CapacityFraction {
	return &CapacityFraction{name: NameCapacityFraction, capacity: capacity}
}

func (c *CapacityFraction) Name() string { return c.name }

func (c *CapacityFraction) Observe(x dynamo.State, t float64) {
	if len(x) > 0 {
		c.last = x[0]
	}
}

func (c *CapacityFraction) Value() float64 {
	if c.capacity == 0 {
		return 0
	}
	return c.last / c.capacity
}

func (c *CapacityFraction) Reset() { c.last = 0 }

// HalfCapacityTime is the first observed time at which the population
// crossed K/2, linearly interpolated between samples. It is -1 when the
// trajectory starts at or above K/2 or never reaches it.
type HalfCapacityTime struct {
	name      string
	threshold float64
	prevX     float64
	prevT     float64
	seen      bool
	crossed   float64
}

func NewHalfCapacityTime(capacity float64) *HalfCapacityTime {
	return &HalfCapacityTime{
		name:      NameHalfCapacityTime,
		threshold: capacity / 2,
		crossed:   NotReached,
	}
}

func (h *HalfCapacityTime) Name() string { return h.name }

func (h *HalfCapacityTime) Observe(x dynamo.State, t float64) {
	if len(x) == 0 || h.crossed >= 0 {
		return
	}
	p := x[0]
	if h.seen && h.prevX < h.threshold && p >= h.threshold {
		frac := (h.threshold - h.prevX) / (p - h.prevX)
		if math.IsNaN(frac) || math.IsInf(frac, 0) {
			frac = 1
		}
		h.crossed = h.prevT + frac*(t-h.prevT)
	}
	h.prevX, h.prevT, h.seen = p, t, true
}

func (h *HalfCapacityTime) Value() float64 { return h.crossed }

func (h *HalfCapacityTime) Reset() {
	h.prevX, h.prevT, h.seen = 0, 0, false
	h.crossed = NotReached
}
