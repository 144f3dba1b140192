package config

import "github.com/sp3ctra/sp3ctra/internal/bus"

// ParameterID names a single MIDI/control-surface-bound scalar carried by
// the Inbox (spec.md §6 push_parameter, §4.7).
type ParameterID int

const (
	ParamAdditiveSend ParameterID = iota
	ParamPolyphonicSend
	ParamPhotowaveSend
	ParamReverbSend
	ParamReverbMix
	ParamAdditiveMasterVolume
	ParamPolyMasterVolume
	ParamPolyVolAttackMs
	ParamPolyVolDecayMs
	ParamPolyVolSustain
	ParamPolyVolReleaseMs
	ParamPolyFilterAttackMs
	ParamPolyFilterDecayMs
	ParamPolyFilterSustain
	ParamPolyFilterReleaseMs
	ParamPolyLFORateHz
	ParamPolyLFODepthSemitones
	ParamPolyFilterCutoffHz
	ParamPolyFilterEnvDepthHz
	ParamPhotowaveAmplitude
	// ParamPhotowaveScanMode and ParamPhotowaveInterpMode carry the CC1/CC74
	// selections as scalars so the photowave producer picks them up at its
	// block boundary like any other inbox parameter.
	ParamPhotowaveScanMode
	ParamPhotowaveInterpMode
	paramCount
)

// ParameterSnapshot is the immutable payload published through the Inbox's
// sequence lock. Engines read whichever ADSR/LFO/send knobs concern them out
// of a single snapshot at their block boundary, so within one audio block
// every parameter is self-consistent (no torn reads across two knobs changed
// by the same MIDI CC burst).
type ParameterSnapshot struct {
	Values [paramCount]float64
}

// Inbox is the single-producer/many-consumer parameter channel described in
// spec.md §4.7 and §5 ("the parameter inbox is single-producer/many-consumer
// with sequence-lock semantics"). The control plane (midi_rx CC dispatch and
// push_parameter) is the writer side; every engine's producer thread and the
// audio callback are readers.
type Inbox struct {
	lock    *bus.SeqLock[ParameterSnapshot]
	current ParameterSnapshot // writer-owned working copy
}

// NewInbox seeds the inbox from the initial RuntimeConfig so the first
// Snapshot a reader observes already reflects start-up configuration rather
// than zero values.
func NewInbox(cfg RuntimeConfig) *Inbox {
	ib := &Inbox{lock: bus.NewSeqLock[ParameterSnapshot]()}
	ib.current.Values[ParamAdditiveSend] = cfg.Mix.AdditiveSend
	ib.current.Values[ParamPolyphonicSend] = cfg.Mix.PolyphonicSend
	ib.current.Values[ParamPhotowaveSend] = cfg.Mix.PhotowaveSend
	ib.current.Values[ParamReverbSend] = cfg.Mix.ReverbSend
	ib.current.Values[ParamReverbMix] = cfg.Mix.ReverbMix
	ib.current.Values[ParamAdditiveMasterVolume] = 1.0
	ib.current.Values[ParamPolyMasterVolume] = cfg.Polyphonic.MasterVolume
	ib.current.Values[ParamPolyVolAttackMs] = cfg.Polyphonic.VolAttackMs
	ib.current.Values[ParamPolyVolDecayMs] = cfg.Polyphonic.VolDecayMs
	ib.current.Values[ParamPolyVolSustain] = cfg.Polyphonic.VolSustain
	ib.current.Values[ParamPolyVolReleaseMs] = cfg.Polyphonic.VolReleaseMs
	ib.current.Values[ParamPolyFilterAttackMs] = cfg.Polyphonic.FilterAttackMs
	ib.current.Values[ParamPolyFilterDecayMs] = cfg.Polyphonic.FilterDecayMs
	ib.current.Values[ParamPolyFilterSustain] = cfg.Polyphonic.FilterSustain
	ib.current.Values[ParamPolyFilterReleaseMs] = cfg.Polyphonic.FilterReleaseMs
	ib.current.Values[ParamPolyLFORateHz] = cfg.Polyphonic.LFORateHz
	ib.current.Values[ParamPolyLFODepthSemitones] = cfg.Polyphonic.LFODepthSemitones
	ib.current.Values[ParamPolyFilterCutoffHz] = cfg.Polyphonic.FilterCutoffHz
	ib.current.Values[ParamPolyFilterEnvDepthHz] = cfg.Polyphonic.FilterEnvDepthHz
	ib.current.Values[ParamPhotowaveAmplitude] = cfg.Photowave.Amplitude
	ib.current.Values[ParamPhotowaveScanMode] = float64(cfg.Photowave.ScanMode)
	ib.current.Values[ParamPhotowaveInterpMode] = float64(cfg.Photowave.InterpMode)
	first := ib.current
	ib.lock.Publish(&first)
	return ib
}

// Push implements spec.md §6's push_parameter(id, value). Only the control
// surface / MIDI CC dispatcher may call this. Each publish hands the
// seqlock a fresh copy: a published snapshot is never written again, so a
// reader holding an older slot can keep dereferencing it safely.
func (ib *Inbox) Push(id ParameterID, value float64) {
	if id < 0 || id >= paramCount {
		return
	}
	ib.current.Values[id] = value
	next := ib.current
	ib.lock.Publish(&next)
}

// Snapshot returns the most recently published parameter set. Safe for
// concurrent use by any engine's producer thread.
func (ib *Inbox) Snapshot() ParameterSnapshot {
	_, snap := ib.lock.Snapshot()
	if snap == nil {
		return ParameterSnapshot{}
	}
	return *snap
}
