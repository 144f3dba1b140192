package poly

// harmonic is one oscillator derived from the image line at note-on time
// (spec.md §4.4 "Harmonic derivation").
type harmonic struct {
	amplitude  float64
	multiplier float64 // multiple of the voice's fundamental frequency
}

// voice is one polyphonic note (spec.md §3 Voice).
type voice struct {
	active      bool
	note        int
	velocity    int
	triggerSeq  uint64
	fundamental float64

	volEnv    *adsr
	filterEnv *adsr

	harmonics []harmonic
	phases    []float64 // per-harmonic phase accumulator, normalized [0,1)

	filterState float64 // single-pole low-pass state
}

func newVoice(sampleRate float64, maxHarmonics int) *voice {
	return &voice{
		volEnv:    newADSR(sampleRate),
		filterEnv: newADSR(sampleRate),
		harmonics: make([]harmonic, 0, maxHarmonics),
		phases:    make([]float64, 0, maxHarmonics),
	}
}

// releasing reports whether the voice is in its Release stage (used by
// voice-steal tier 3).
func (v *voice) releasing() bool { return v.volEnv.stage == stageRelease }

// idle reports whether the volume envelope has fully decayed (voice may be
// reused without audible discontinuity); the filter envelope is not
// consulted.
func (v *voice) idle() bool { return v.volEnv.idle() }
