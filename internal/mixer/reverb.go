package mixer

import "math"

// reverb is the single stateful algorithmic reverb shared by all three
// engines' sends (spec.md §4.6). Schroeder topology: a short pre-delay
// feeds a bank of damped feedback combs in parallel; their sum is diffused
// through two series allpass stages. Stage tunings are given in
// milliseconds and scaled to the session sample rate at construction, and
// each comb's feedback gain is derived from the target decay time via the
// RT60 relation, so the tail keeps the same length and character at any
// supported rate.
type reverb struct {
	pre   delayLine
	combs [numCombs]dampedComb
	diff  [numAllpass]allpass
}

const (
	numCombs   = 4
	numAllpass = 2

	preDelayMs  = 10.0
	decayTimeMs = 1200.0 // RT60: tail falls 60 dB in this many ms
	combDamping = 0.25   // one-pole lowpass in each comb loop, rolls off the tail's highs
	allpassGain = 0.6
	wetGain     = 0.3
)

// Mutually prime comb tunings spread the echo density; allpass stages are
// short for diffusion, not audible as discrete repeats.
var combTuningMs = [numCombs]float64{29.7, 37.1, 41.1, 43.7}
var allpassTuningMs = [numAllpass]float64{5.0, 1.7}

// delayLine is a fixed-length circular buffer advanced one sample at a
// time. Zero-allocation after construction.
type delayLine struct {
	buf []float32
	pos int
}

func newDelayLine(ms float64, sampleRate int) delayLine {
	n := int(ms * float64(sampleRate) / 1000.0)
	if n < 1 {
		n = 1
	}
	return delayLine{buf: make([]float32, n)}
}

// step writes in at the current position and returns the sample that was
// delayed by the line's full length.
func (d *delayLine) step(in float32) float32 {
	out := d.buf[d.pos]
	d.buf[d.pos] = in
	d.pos++
	if d.pos == len(d.buf) {
		d.pos = 0
	}
	return out
}

// dampedComb is a feedback comb with a one-pole lowpass inside the loop:
// every trip around the loop loses some high end, the way air and walls do.
type dampedComb struct {
	line     delayLine
	feedback float32
	lowpass  float32
}

func newDampedComb(ms float64, sampleRate int) dampedComb {
	// RT60: after decayTimeMs the signal has cycled the loop
	// decayTimeMs/ms times and must be 60 dB down.
	fb := math.Pow(10, -3.0*ms/decayTimeMs)
	return dampedComb{
		line:     newDelayLine(ms, sampleRate),
		feedback: float32(fb),
	}
}

func (c *dampedComb) step(in float32) float32 {
	out := c.line.buf[c.line.pos]
	c.lowpass = out + combDamping*(c.lowpass-out)
	c.line.step(in + c.lowpass*c.feedback)
	return out
}

// allpass is the canonical Schroeder diffuser: flat magnitude response,
// smeared phase.
type allpass struct {
	line delayLine
	gain float32
}

func newAllpass(ms float64, sampleRate int) allpass {
	return allpass{line: newDelayLine(ms, sampleRate), gain: allpassGain}
}

func (a *allpass) step(in float32) float32 {
	buffered := a.line.buf[a.line.pos]
	v := in + buffered*a.gain
	a.line.step(v)
	return buffered - v*a.gain
}

// newReverb sizes every delay line for the given sample rate. Called once
// at mixer construction; process never allocates.
func newReverb(sampleRate int) *reverb {
	r := &reverb{pre: newDelayLine(preDelayMs, sampleRate)}
	for i := range r.combs {
		r.combs[i] = newDampedComb(combTuningMs[i], sampleRate)
	}
	for i := range r.diff {
		r.diff[i] = newAllpass(allpassTuningMs[i], sampleRate)
	}
	return r
}

// process runs one sample of the send bus through the chain and returns
// the wet signal.
func (r *reverb) process(input float32) float32 {
	delayed := r.pre.step(input)

	var sum float32
	for i := range r.combs {
		sum += r.combs[i].step(delayed)
	}
	sum /= numCombs

	for i := range r.diff {
		sum = r.diff[i].step(sum)
	}
	return sum * wetGain
}
