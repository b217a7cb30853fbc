// Package filter implements the adaptive low-pass smoothing applied to board
// poses: a one-euro filter per scalar degree of freedom.
package filter

import (
	"math"
	"time"

	"github.com/smazurov/nectar/internal/geometry"
)

// Defaults used when a bank is created with zero values.
const (
	DefaultFrequency = 30.0
	DefaultMinCutoff = 1.0
	DefaultBeta      = 0.007
	DefaultDCutoff   = 1.0
)

// BankSize is the number of filtered scalars: the top three rows of a transform.
const BankSize = 12

type lowPass struct {
	value       float64
	initialized bool
}

// filter blends x into the stored value. The incremental form keeps a
// constant input exactly constant.
func (l *lowPass) filter(x, alpha float64) float64 {
	if !l.initialized {
		l.value = x
		l.initialized = true
		return x
	}
	l.value += alpha * (x - l.value)
	return l.value
}

func smoothing(rate, cutoff float64) float64 {
	tau := 1 / (2 * math.Pi * cutoff)
	te := 1 / rate
	return 1 / (1 + tau/te)
}

// OneEuro raises its cutoff frequency as the estimated rate of change of
// the signal increases: slow motion is smoothed hard, fast motion follows
// with little lag.
type OneEuro struct {
	frequency float64
	minCutoff float64
	beta      float64
	dCutoff   float64

	x        lowPass
	dx       lowPass
	previous float64
	lastTime time.Time
}

// NewOneEuro creates a filter sampled at frequency Hz.
func NewOneEuro(frequency, minCutoff, beta, dCutoff float64) *OneEuro {
	if frequency <= 0 {
		frequency = DefaultFrequency
	}
	if minCutoff <= 0 {
		minCutoff = DefaultMinCutoff
	}
	if dCutoff <= 0 {
		dCutoff = DefaultDCutoff
	}
	if beta < 0 {
		beta = 0
	}
	return &OneEuro{
		frequency: frequency,
		minCutoff: minCutoff,
		beta:      beta,
		dCutoff:   dCutoff,
	}
}

// Frequency returns the current sampling frequency estimate.
func (f *OneEuro) Frequency() float64 {
	return f.frequency
}

// Filter smooths x assuming the configured sampling frequency.
func (f *OneEuro) Filter(x float64) float64 {
	var dx float64
	if f.x.initialized {
		dx = (x - f.previous) * f.frequency
	}
	f.previous = x

	edx := f.dx.filter(dx, smoothing(f.frequency, f.dCutoff))
	cutoff := f.minCutoff + f.beta*math.Abs(edx)
	return f.x.filter(x, smoothing(f.frequency, cutoff))
}

// FilterAt smooths x sampled at ts, updating the frequency estimate from
// the time since the previous sample.
func (f *OneEuro) FilterAt(x float64, ts time.Time) float64 {
	if !f.lastTime.IsZero() {
		if dt := ts.Sub(f.lastTime).Seconds(); dt > 0 {
			f.frequency = 1 / dt
		}
	}
	f.lastTime = ts
	return f.Filter(x)
}

// Bank filters every scalar of the rotation and translation part of a
// transform independently.
type Bank struct {
	filters [BankSize]*OneEuro
}

// NewBank creates BankSize filters with the same parameters.
func NewBank(frequency, minCutoff float64) *Bank {
	b := &Bank{}
	for i := range b.filters {
		b.filters[i] = NewOneEuro(frequency, minCutoff, DefaultBeta, DefaultDCutoff)
	}
	return b
}

// Apply returns m with its first three rows smoothed. The homogeneous row
// is passed through.
func (b *Bank) Apply(m geometry.Matrix4, ts time.Time) geometry.Matrix4 {
	out := m
	for i, f := range b.filters {
		if ts.IsZero() {
			out[i] = f.Filter(m[i])
		} else {
			out[i] = f.FilterAt(m[i], ts)
		}
	}
	return out
}
