//go:build !headless

package audiosink

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

// OtoSink is the primary cross-platform backend (spec.md's pull-callback
// audio sink), adapted from audio_backend_oto.go's OtoPlayer: the teacher
// reads one mono sample at a time from a ring buffer on each Read; this
// sink instead calls the synthesis core's RenderFunc once per Read to
// produce a whole stereo block, matching spec.md §6's
// render(out_left[], out_right[], n_frames) contract.
type OtoSink struct {
	ctx    *oto.Context
	player *oto.Player

	render RenderFunc

	left, right []float32

	mu      sync.Mutex
	started bool
}

// NewOtoSink opens an oto context at sampleRate and wires render as the
// pull callback. bufferFrames sizes the scratch buffers reused across Read
// calls (no per-call allocation).
func NewOtoSink(sampleRate, bufferFrames int, render RenderFunc) (*OtoSink, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   0,
	}
	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, err
	}
	<-ready

	s := &OtoSink{
		ctx:    ctx,
		render: render,
		left:   make([]float32, bufferFrames),
		right:  make([]float32, bufferFrames),
	}
	s.player = ctx.NewPlayer(s)
	return s, nil
}

// Read implements io.Reader for oto.Player: fills p with interleaved
// stereo float32 frames produced by render.
func (s *OtoSink) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	frameBytes := 8 // 2 channels * 4 bytes
	numFrames := len(p) / frameBytes
	if numFrames > len(s.left) {
		numFrames = len(s.left)
	}
	left := s.left[:numFrames]
	right := s.right[:numFrames]

	s.render(left, right)

	interleaved := (*[1 << 30]float32)(unsafe.Pointer(&p[0]))[: numFrames*2 : numFrames*2]
	for i := 0; i < numFrames; i++ {
		interleaved[2*i] = left[i]
		interleaved[2*i+1] = right[i]
	}
	return numFrames * frameBytes, nil
}

func (s *OtoSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.player.Play()
		s.started = true
	}
	return nil
}

func (s *OtoSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.player.Pause()
		s.started = false
	}
	return nil
}

func (s *OtoSink) Close() error {
	_ = s.Stop()
	return s.player.Close()
}
