//go:build !headless

package audiosink

import (
	"github.com/gordonklaus/portaudio"
)

// PortaudioSink is the alternate low-latency backend selectable at
// start-up alongside OtoSink, mirroring the teacher's oto/alsa dual-backend
// split (audio_backend_oto.go, audio_backend_alsa.go). Grounded on the
// portaudio.Stream-from-callback pattern used elsewhere in the retrieved
// pack (a real-time daemon driving portaudio.OpenDefaultStream from a
// pull callback).
type PortaudioSink struct {
	stream     *portaudio.Stream
	render     RenderFunc
	left       []float32
	right      []float32
	onUnderrun func()
}

// NewPortaudioSink opens the default output device at sampleRate with a
// stereo interleaved float32 stream of bufferFrames frames per callback.
func NewPortaudioSink(sampleRate, bufferFrames int, render RenderFunc) (*PortaudioSink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	s := &PortaudioSink{
		render: render,
		left:   make([]float32, bufferFrames),
		right:  make([]float32, bufferFrames),
	}
	stream, err := portaudio.OpenDefaultStream(0, 2, float64(sampleRate), bufferFrames, s.callback)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}
	s.stream = stream
	return s, nil
}

// SetUnderrunHandler implements UnderrunReporter; handler runs on the
// audio thread whenever portaudio flags an output underflow.
func (s *PortaudioSink) SetUnderrunHandler(handler func()) { s.onUnderrun = handler }

// callback is invoked by portaudio's native bridge with an interleaved
// stereo output buffer. No allocation on this path: left/right are
// pre-allocated scratch reused on every call.
func (s *PortaudioSink) callback(out []float32, timeInfo portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	if flags&portaudio.OutputUnderflow != 0 && s.onUnderrun != nil {
		s.onUnderrun()
	}
	n := len(out) / 2
	if n > len(s.left) {
		n = len(s.left)
	}
	left := s.left[:n]
	right := s.right[:n]
	s.render(left, right)
	for i := 0; i < n; i++ {
		out[2*i] = left[i]
		out[2*i+1] = right[i]
	}
}

func (s *PortaudioSink) Start() error { return s.stream.Start() }
func (s *PortaudioSink) Stop() error  { return s.stream.Stop() }

func (s *PortaudioSink) Close() error {
	if err := s.stream.Close(); err != nil {
		return err
	}
	return portaudio.Terminate()
}
