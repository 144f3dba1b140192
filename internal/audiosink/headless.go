package audiosink

// HeadlessSink discards rendered audio. Adapted from
// audio_backend_headless.go's no-op OtoPlayer, used for CI and
// server-side deployments with no physical audio device (tests still
// exercise render via the engines directly, never through this backend).
// Unlike OtoSink and PortaudioSink, it carries no build tag: it never
// depends on a native audio library, so it is always available as a
// fallback backend regardless of the "headless" build tag's setting.
type HeadlessSink struct {
	render  RenderFunc
	left    []float32
	right   []float32
	started bool
}

// NewHeadlessSink returns a sink that calls render once per Pump call and
// drops the result.
func NewHeadlessSink(bufferFrames int, render RenderFunc) *HeadlessSink {
	return &HeadlessSink{
		render: render,
		left:   make([]float32, bufferFrames),
		right:  make([]float32, bufferFrames),
	}
}

// Pump renders and discards one block; a caller can drive this on a ticker
// to keep counters/side effects flowing without real audio hardware.
func (s *HeadlessSink) Pump() {
	s.render(s.left, s.right)
}

func (s *HeadlessSink) Start() error { s.started = true; return nil }
func (s *HeadlessSink) Stop() error  { s.started = false; return nil }
func (s *HeadlessSink) Close() error { s.started = false; return nil }
