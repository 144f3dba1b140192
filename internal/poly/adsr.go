package poly

// envStage mirrors audio_chip.go's envelopePhase state machine (ENV_ATTACK /
// ENV_DECAY / ENV_SUSTAIN / ENV_RELEASE), generalized to spec.md §4.4's
// explicit Idle state and sample-count-or-threshold transitions instead of
// a fixed register-driven rate.
type envStage int

const (
	stageIdle envStage = iota
	stageAttack
	stageDecay
	stageSustain
	stageRelease
)

// adsr is one volume or filter envelope (spec.md §3 Voice: "two ADSR
// envelopes (volume, filter)"). When the knobs change, setRates recomputes
// the stage lengths in place without resetting the stage or the level. The
// next step then computes the level from the samples already spent in the
// stage against the new length and sustain level, so a change made
// mid-stage moves the level to the matching point of the new ramp; the
// current level is not carried over.
type adsr struct {
	stage envStage
	level float64

	sampleRate float64

	attackMs, decayMs, releaseMs float64
	sustain                      float64

	attackSamples, decaySamples, releaseSamples int
	samplesInStage                              int
	attackStartLevel                            float64
	releaseStartLevel                           float64
}

func newADSR(sampleRate float64) *adsr {
	return &adsr{stage: stageIdle, sampleRate: sampleRate}
}

// setRates recomputes stage durations in samples; called whenever ADSR
// knobs change. Does not reset level or stage.
func (a *adsr) setRates(attackMs, decayMs, sustain, releaseMs float64) {
	a.attackMs, a.decayMs, a.releaseMs, a.sustain = attackMs, decayMs, releaseMs, sustain
	a.attackSamples = msToSamples(attackMs, a.sampleRate)
	a.decaySamples = msToSamples(decayMs, a.sampleRate)
	a.releaseSamples = msToSamples(releaseMs, a.sampleRate)
}

func msToSamples(ms, sampleRate float64) int {
	n := int(ms / 1000.0 * sampleRate)
	if n < 1 {
		n = 1
	}
	return n
}

// trigger moves the envelope into Attack, preserving level (no click) if it
// was already sounding (voice steal reuses a non-idle envelope).
func (a *adsr) trigger() {
	a.stage = stageAttack
	a.samplesInStage = 0
	a.attackStartLevel = a.level
}

// release moves the envelope into Release from any non-idle stage.
func (a *adsr) release() {
	if a.stage == stageIdle {
		return
	}
	a.stage = stageRelease
	a.samplesInStage = 0
	a.releaseStartLevel = a.level
}

// step advances the envelope by one sample and returns the new level.
func (a *adsr) step() float64 {
	switch a.stage {
	case stageIdle:
		a.level = 0
	case stageAttack:
		a.samplesInStage++
		a.level = a.attackStartLevel + (1-a.attackStartLevel)*float64(a.samplesInStage)/float64(a.attackSamples)
		if a.level >= 1 || a.samplesInStage >= a.attackSamples {
			a.level = 1
			a.stage = stageDecay
			a.samplesInStage = 0
		}
	case stageDecay:
		a.samplesInStage++
		a.level = 1 - (1-a.sustain)*float64(a.samplesInStage)/float64(a.decaySamples)
		if a.level <= a.sustain || a.samplesInStage >= a.decaySamples {
			a.level = a.sustain
			a.stage = stageSustain
			a.samplesInStage = 0
		}
	case stageSustain:
		a.level = a.sustain
	case stageRelease:
		a.samplesInStage++
		a.level = a.releaseStartLevel * (1 - float64(a.samplesInStage)/float64(a.releaseSamples))
		if a.level <= 0 || a.samplesInStage >= a.releaseSamples {
			a.level = 0
			a.stage = stageIdle
			a.samplesInStage = 0
		}
	}
	if a.level < 0 {
		a.level = 0
	}
	return a.level
}

func (a *adsr) idle() bool { return a.stage == stageIdle }
