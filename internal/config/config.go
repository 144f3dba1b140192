// Package config holds the parameter bundle every Sp3ctra component reads
// from. Loading an INI file onto a RuntimeConfig is an external collaborator's
// job (see spec.md §1 Non-goals); this package only defines the shape and
// validates it.
package config

import (
	"fmt"
	"strings"
)

// Audio holds the audio device parameters.
type Audio struct {
	SamplingFrequency int `ini:"audio.sampling_frequency" yaml:"sampling_frequency"`
	BufferSize        int `ini:"audio.audio_buffer_size" yaml:"buffer_size"`
}

// Synthesis holds the additive engine's frequency-grid bounds and sensor
// geometry.
type Synthesis struct {
	LowFrequency            float64 `ini:"synthesis.low_frequency" yaml:"low_frequency"`
	HighFrequency           float64 `ini:"synthesis.high_frequency" yaml:"high_frequency"`
	SensorDPI               int     `ini:"synthesis.sensor_dpi" yaml:"sensor_dpi"`
	InvertIntensity         bool    `ini:"synthesis.invert_intensity" yaml:"invert_intensity"`
	NonLinearMapping        bool    `ini:"synthesis.non_linear_mapping" yaml:"non_linear_mapping"`
	InstantAttack           bool    `ini:"synthesis.instant_attack" yaml:"instant_attack"`
	PixelsPerNote           int     `ini:"synthesis.pixels_per_note" yaml:"pixels_per_note"`
	NumDMXZones             int     `ini:"synthesis.num_dmx_zones" yaml:"num_dmx_zones"`
	ContrastStride          int     `ini:"synthesis.contrast_stride" yaml:"contrast_stride"`
	ContrastAdjustmentPower float64 `ini:"synthesis.contrast_adjustment_power" yaml:"contrast_adjustment_power"`
	ContrastMin             float64 `ini:"synthesis.contrast_min" yaml:"contrast_min"`
}

// EnvelopeSlew holds the additive engine's amplitude-follower time constants.
type EnvelopeSlew struct {
	TauUpBaseMs    float64 `ini:"envelope_slew.tau_up_base_ms" yaml:"tau_up_base_ms"`
	TauDownBaseMs  float64 `ini:"envelope_slew.tau_down_base_ms" yaml:"tau_down_base_ms"`
	DecayFreqRefHz float64 `ini:"envelope_slew.decay_freq_ref_hz" yaml:"decay_freq_ref_hz"`
	DecayFreqBeta  float64 `ini:"envelope_slew.decay_freq_beta" yaml:"decay_freq_beta"`
}

// StereoProcessing holds the per-note color-temperature pan parameters.
type StereoProcessing struct {
	Enabled                  bool    `ini:"stereo_processing.stereo_mode_enabled" yaml:"enabled"`
	TemperatureAmplification float64 `ini:"stereo_processing.stereo_temperature_amplification" yaml:"temperature_amplification"`
	BlueRedWeight            float64 `ini:"stereo_processing.stereo_blue_red_weight" yaml:"blue_red_weight"`
	CyanYellowWeight         float64 `ini:"stereo_processing.stereo_cyan_yellow_weight" yaml:"cyan_yellow_weight"`
	TemperatureCurveExponent float64 `ini:"stereo_processing.stereo_temperature_curve_exponent" yaml:"temperature_curve_exponent"`
}

// SummationNormalization holds the additive engine's mix-shaping parameters.
type SummationNormalization struct {
	VolumeWeightingExponent float64 `ini:"summation_normalization.volume_weighting_exponent" yaml:"volume_weighting_exponent"`
	SummationResponseExp    float64 `ini:"summation_normalization.summation_response_exponent" yaml:"summation_response_exponent"`
	NoiseGateThreshold      float64 `ini:"summation_normalization.noise_gate_threshold" yaml:"noise_gate_threshold"`
	SoftLimitThreshold      float64 `ini:"summation_normalization.soft_limit_threshold" yaml:"soft_limit_threshold"`
	SoftLimitKnee           float64 `ini:"summation_normalization.soft_limit_knee" yaml:"soft_limit_knee"`
	// LogVolumeCurve selects the SID+-derived logarithmic weighting curve
	// (see SPEC_FULL.md Supplemented Features) instead of the
	// VolumeWeightingExponent power law. Off by default.
	LogVolumeCurve bool `ini:"summation_normalization.log_volume_curve" yaml:"log_volume_curve"`
}

// Photowave holds the wavetable-engine parameters.
type Photowave struct {
	ScanMode       int     `ini:"photowave.scan_mode" yaml:"scan_mode"`
	InterpMode     int     `ini:"photowave.interp_mode" yaml:"interp_mode"`
	Amplitude      float64 `ini:"photowave.amplitude" yaml:"amplitude"`
	ContinuousMode bool    `ini:"photowave.continuous_mode" yaml:"continuous_mode"`
	NumVoices      int     `ini:"photowave.num_voices" yaml:"num_voices"`
}

// Polyphonic holds the polyphonic engine's voice-shaping parameters.
type Polyphonic struct {
	NumVoices             int     `ini:"polyphonic.num_voices" yaml:"num_voices"`
	MaxOscillators        int     `ini:"polyphonic.max_oscillators" yaml:"max_oscillators"`
	MaxHarmonicsPerVoice  int     `ini:"polyphonic.max_harmonics_per_voice" yaml:"max_harmonics_per_voice"`
	HighFreqHarmonicLimit float64 `ini:"polyphonic.high_freq_harmonic_limit_hz" yaml:"high_freq_harmonic_limit_hz"`
	AmplitudeGamma        float64 `ini:"polyphonic.amplitude_gamma" yaml:"amplitude_gamma"`
	MinAudibleAmplitude   float64 `ini:"polyphonic.min_audible_amplitude" yaml:"min_audible_amplitude"`
	MasterVolume          float64 `ini:"polyphonic.master_volume" yaml:"master_volume"`
	VolAttackMs           float64 `ini:"polyphonic.vol_adsr_attack_ms" yaml:"vol_attack_ms"`
	VolDecayMs            float64 `ini:"polyphonic.vol_adsr_decay_ms" yaml:"vol_decay_ms"`
	VolSustain            float64 `ini:"polyphonic.vol_adsr_sustain" yaml:"vol_sustain"`
	VolReleaseMs          float64 `ini:"polyphonic.vol_adsr_release_ms" yaml:"vol_release_ms"`
	FilterAttackMs        float64 `ini:"polyphonic.filter_adsr_attack_ms" yaml:"filter_attack_ms"`
	FilterDecayMs         float64 `ini:"polyphonic.filter_adsr_decay_ms" yaml:"filter_decay_ms"`
	FilterSustain         float64 `ini:"polyphonic.filter_adsr_sustain" yaml:"filter_sustain"`
	FilterReleaseMs       float64 `ini:"polyphonic.filter_adsr_release_ms" yaml:"filter_release_ms"`
	LFORateHz             float64 `ini:"polyphonic.lfo_rate_hz" yaml:"lfo_rate_hz"`
	LFODepthSemitones     float64 `ini:"polyphonic.lfo_depth_semitones" yaml:"lfo_depth_semitones"`
	FilterCutoffHz        float64 `ini:"polyphonic.filter_cutoff_hz" yaml:"filter_cutoff_hz"`
	FilterEnvDepthHz      float64 `ini:"polyphonic.filter_env_depth_hz" yaml:"filter_env_depth_hz"`
}

// Mix holds per-engine send levels and the shared reverb parameters consumed
// by the mixer.
type Mix struct {
	AdditiveSend   float64 `ini:"mix.additive_send" yaml:"additive_send"`
	PolyphonicSend float64 `ini:"mix.polyphonic_send" yaml:"polyphonic_send"`
	PhotowaveSend  float64 `ini:"mix.photowave_send" yaml:"photowave_send"`
	ReverbSend     float64 `ini:"mix.reverb_send" yaml:"reverb_send"`
	ReverbMix      float64 `ini:"mix.reverb_mix" yaml:"reverb_mix"`
}

// RuntimeConfig is the value-type bundle assembled once from the external
// loader before any component is constructed (spec.md §4.7). After start-up
// the only mutable surface is the parameter inbox (see Inbox).
type RuntimeConfig struct {
	Audio                  Audio                  `yaml:"audio"`
	Synthesis              Synthesis              `yaml:"synthesis"`
	EnvelopeSlew           EnvelopeSlew           `yaml:"envelope_slew"`
	StereoProcessing       StereoProcessing       `yaml:"stereo_processing"`
	SummationNormalization SummationNormalization `yaml:"summation_normalization"`
	Photowave              Photowave              `yaml:"photowave"`
	Polyphonic             Polyphonic             `yaml:"polyphonic"`
	Mix                    Mix                    `yaml:"mix"`
}

// NPixels returns N_PIXELS as selected once from the sensor DPI (spec.md §3).
func (c *RuntimeConfig) NPixels() (int, error) {
	switch c.Synthesis.SensorDPI {
	case 200:
		return 1728, nil
	case 400:
		return 3456, nil
	default:
		return 0, fmt.Errorf("sensor_dpi must be 200 or 400, got %d", c.Synthesis.SensorDPI)
	}
}

// Default returns a RuntimeConfig populated with the engine's stock defaults,
// the same role the teacher's zero-value Channel/SoundChip construction
// plays for audio_chip.go.
func Default() RuntimeConfig {
	return RuntimeConfig{
		Audio: Audio{SamplingFrequency: 48000, BufferSize: 512},
		Synthesis: Synthesis{
			LowFrequency: 65.0, HighFrequency: 8000.0, SensorDPI: 400,
			InvertIntensity: true, NonLinearMapping: true,
			PixelsPerNote: 2, NumDMXZones: 8,
			ContrastStride: 8, ContrastAdjustmentPower: 1.0, ContrastMin: 0.1,
		},
		EnvelopeSlew: EnvelopeSlew{
			TauUpBaseMs: 5.0, TauDownBaseMs: 80.0,
			DecayFreqRefHz: 440.0, DecayFreqBeta: -0.3,
		},
		StereoProcessing: StereoProcessing{
			Enabled: true, TemperatureAmplification: 1.5,
			BlueRedWeight: 1.0, CyanYellowWeight: 1.0,
			TemperatureCurveExponent: 1.0,
		},
		SummationNormalization: SummationNormalization{
			VolumeWeightingExponent: 0.7, SummationResponseExp: 1.2,
			NoiseGateThreshold: 0.0005, SoftLimitThreshold: 0.85, SoftLimitKnee: 0.15,
		},
		Photowave: Photowave{ScanMode: 0, InterpMode: 1, Amplitude: 1.0, NumVoices: 8},
		Polyphonic: Polyphonic{
			NumVoices: 16, MaxOscillators: 256, MaxHarmonicsPerVoice: 8,
			HighFreqHarmonicLimit: 18000, AmplitudeGamma: 1.0, MinAudibleAmplitude: 0.0005,
			MasterVolume: 0.8, VolAttackMs: 10, VolDecayMs: 120, VolSustain: 0.7, VolReleaseMs: 250,
			FilterAttackMs: 10, FilterDecayMs: 200, FilterSustain: 0.5, FilterReleaseMs: 300,
			LFORateHz: 5, LFODepthSemitones: 0.1, FilterCutoffHz: 4000, FilterEnvDepthHz: 2000,
		},
		Mix: Mix{AdditiveSend: 0.8, PolyphonicSend: 0.8, PhotowaveSend: 0.8, ReverbSend: 0.2, ReverbMix: 0.25},
	}
}

// Validate checks every parameter in one batch and returns all violations at
// once (spec.md §7 ConfigInvalid: "the core refuses to construct and reports
// all violations in one batch").
func (c *RuntimeConfig) Validate() error {
	var errs []string

	switch c.Audio.SamplingFrequency {
	case 22050, 44100, 48000, 96000:
	default:
		errs = append(errs, fmt.Sprintf("audio.sampling_frequency: unsupported rate %d", c.Audio.SamplingFrequency))
	}
	if c.Audio.BufferSize < 16 || c.Audio.BufferSize > 2048 {
		errs = append(errs, fmt.Sprintf("audio.audio_buffer_size: %d out of [16,2048]", c.Audio.BufferSize))
	}

	if _, err := c.NPixels(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Synthesis.LowFrequency <= 0 || c.Synthesis.HighFrequency <= c.Synthesis.LowFrequency {
		errs = append(errs, "synthesis: low_frequency must be positive and less than high_frequency")
	}
	nyquist := float64(c.Audio.SamplingFrequency) / 2
	if c.Synthesis.HighFrequency >= nyquist {
		errs = append(errs, fmt.Sprintf("synthesis.high_frequency %.1f must be below Nyquist %.1f", c.Synthesis.HighFrequency, nyquist))
	}
	if c.Synthesis.PixelsPerNote <= 0 {
		errs = append(errs, "synthesis.pixels_per_note must be positive")
	}
	if c.Synthesis.NumDMXZones <= 0 {
		errs = append(errs, "synthesis.num_dmx_zones must be positive")
	}
	if c.Synthesis.ContrastStride <= 0 {
		errs = append(errs, "synthesis.contrast_stride must be positive")
	}
	if c.Synthesis.ContrastMin < 0 || c.Synthesis.ContrastMin > 1 {
		errs = append(errs, "synthesis.contrast_min must be in [0,1]")
	}

	if c.EnvelopeSlew.TauUpBaseMs <= 0 || c.EnvelopeSlew.TauDownBaseMs <= 0 {
		errs = append(errs, "envelope_slew: tau_up_base_ms and tau_down_base_ms must be positive")
	}
	if c.EnvelopeSlew.DecayFreqRefHz <= 0 {
		errs = append(errs, "envelope_slew.decay_freq_ref_hz must be positive")
	}

	if c.SummationNormalization.VolumeWeightingExponent <= 0 {
		errs = append(errs, "summation_normalization.volume_weighting_exponent must be positive")
	}
	if c.SummationNormalization.SummationResponseExp <= 0 {
		errs = append(errs, "summation_normalization.summation_response_exponent must be positive")
	}

	if c.Photowave.ScanMode < 0 || c.Photowave.ScanMode > 2 {
		errs = append(errs, "photowave.scan_mode must be in {0,1,2}")
	}
	if c.Photowave.InterpMode < 0 || c.Photowave.InterpMode > 1 {
		errs = append(errs, "photowave.interp_mode must be in {0,1}")
	}
	if c.Photowave.NumVoices <= 0 {
		errs = append(errs, "photowave.num_voices must be positive")
	}

	if c.Polyphonic.NumVoices <= 0 {
		errs = append(errs, "polyphonic.num_voices must be positive")
	}
	if c.Polyphonic.MaxHarmonicsPerVoice <= 0 {
		errs = append(errs, "polyphonic.max_harmonics_per_voice must be positive")
	}
	if c.Polyphonic.MaxOscillators <= 0 {
		errs = append(errs, "polyphonic.max_oscillators must be positive")
	}
	if c.Polyphonic.MasterVolume < 0 || c.Polyphonic.MasterVolume > 1 {
		errs = append(errs, "polyphonic.master_volume must be in [0,1]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config invalid:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
