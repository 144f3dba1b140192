// Package audiosink abstracts the physical audio device as a pull callback
// with a fixed frame count (spec.md §1: "The physical audio device is
// abstracted as a pull callback with a fixed frame count"). Concrete
// backends are grounded on audio_backend_oto.go, audio_backend_alsa.go and
// audio_backend_headless.go, generalized from the teacher's mono
// ring-buffer read to a stereo render callback.
package audiosink

// RenderFunc is invoked by a Sink whenever it needs n frames of stereo
// audio. outLeft and outRight are pre-allocated by the sink and must be
// filled in place; RenderFunc must not allocate (spec.md §4.6 Contract,
// P7).
type RenderFunc func(outLeft, outRight []float32)

// Sink is any audio output backend driven by a pull callback.
type Sink interface {
	Start() error
	Stop() error
	Close() error
}

// UnderrunReporter is implemented by backends that can observe device
// underflow. The handler backs spec.md §7's UnderrunReported counter and
// must be RT-safe (it is invoked from the audio thread).
type UnderrunReporter interface {
	SetUnderrunHandler(func())
}
