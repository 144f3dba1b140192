//go:build !linux || headless

package audiosink

import "fmt"

// OpenALSASink reports that ALSA is unavailable on this build: either the
// target OS isn't Linux, or the headless build tag excludes every native
// backend.
func OpenALSASink(sampleRate, bufferFrames int, render RenderFunc) (Sink, error) {
	return nil, fmt.Errorf("alsa backend is only available on linux builds without the headless tag")
}
