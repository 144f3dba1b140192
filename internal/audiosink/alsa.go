//go:build linux && !headless

// ALSA output, adapted from audio_backend_alsa.go's push-style ALSAPlayer
// to the pull-callback model every Sink implements: instead of a caller
// handing it samples to Write, AlsaSink pulls a block from render() itself
// on a dedicated goroutine and writes it straight through snd_pcm_writei.
package audiosink

/*
#cgo LDFLAGS: -lasound
#include <alsa/asoundlib.h>
#include <stdlib.h>

static snd_pcm_t* sp3ctra_alsa_open(const char* device, int* err) {
    snd_pcm_t* handle;
    *err = snd_pcm_open(&handle, device, SND_PCM_STREAM_PLAYBACK, 0);
    return handle;
}

static int sp3ctra_alsa_setup(snd_pcm_t* handle, unsigned int rate) {
    snd_pcm_hw_params_t* params;
    int err;

    snd_pcm_hw_params_alloca(&params);
    err = snd_pcm_hw_params_any(handle, params);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_access(handle, params, SND_PCM_ACCESS_RW_INTERLEAVED);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_format(handle, params, SND_PCM_FORMAT_FLOAT);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_channels(handle, params, 2);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_rate(handle, params, rate, 0);
    if (err < 0) return err;

    err = snd_pcm_hw_params(handle, params);
    if (err < 0) return err;

    return snd_pcm_prepare(handle);
}

static int sp3ctra_alsa_write(snd_pcm_t* handle, float* buffer, int frames) {
    return snd_pcm_writei(handle, buffer, frames);
}

static void sp3ctra_alsa_close(snd_pcm_t* handle) {
    if (handle != NULL) {
        snd_pcm_drain(handle);
        snd_pcm_close(handle);
    }
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

// AlsaSink drives libasound directly via cgo, interleaving stereo frames
// pulled from render() into one snd_pcm_writei call per block.
type AlsaSink struct {
	handle *C.snd_pcm_t

	render      RenderFunc
	left, right []float32
	interleaved []float32
	onUnderrun  func()

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// SetUnderrunHandler implements UnderrunReporter; handler runs on the
// write loop goroutine whenever snd_pcm_writei reports a broken pipe.
func (a *AlsaSink) SetUnderrunHandler(handler func()) { a.onUnderrun = handler }

// OpenALSASink opens an AlsaSink as a Sink. Exists alongside alsa_stub.go's
// build-tag-excluded counterpart so main.go's backend switch never needs its
// own per-platform build tags.
func OpenALSASink(sampleRate, bufferFrames int, render RenderFunc) (Sink, error) {
	return NewAlsaSink(sampleRate, bufferFrames, render)
}

// NewAlsaSink opens the default PCM device in stereo float32 at sampleRate.
func NewAlsaSink(sampleRate, bufferFrames int, render RenderFunc) (*AlsaSink, error) {
	var cErr C.int
	device := C.CString("default")
	defer C.free(unsafe.Pointer(device))

	handle := C.sp3ctra_alsa_open(device, &cErr)
	if cErr < 0 {
		return nil, fmt.Errorf("alsa: open PCM device: %s", C.GoString(C.snd_strerror(cErr)))
	}
	if cErr = C.sp3ctra_alsa_setup(handle, C.uint(sampleRate)); cErr < 0 {
		C.sp3ctra_alsa_close(handle)
		return nil, fmt.Errorf("alsa: setup PCM: %s", C.GoString(C.snd_strerror(cErr)))
	}

	return &AlsaSink{
		handle:      handle,
		render:      render,
		left:        make([]float32, bufferFrames),
		right:       make([]float32, bufferFrames),
		interleaved: make([]float32, bufferFrames*2),
		done:        make(chan struct{}),
	}, nil
}

func (a *AlsaSink) Start() error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = true
	a.mu.Unlock()

	go a.loop()
	return nil
}

func (a *AlsaSink) loop() {
	for {
		select {
		case <-a.done:
			return
		default:
		}

		a.render(a.left, a.right)
		for i := range a.left {
			a.interleaved[2*i] = a.left[i]
			a.interleaved[2*i+1] = a.right[i]
		}

		frames := C.sp3ctra_alsa_write(a.handle, (*C.float)(unsafe.Pointer(&a.interleaved[0])), C.int(len(a.left)))
		if frames == -C.EPIPE {
			if a.onUnderrun != nil {
				a.onUnderrun()
			}
			C.snd_pcm_prepare(a.handle)
		}
	}
}

func (a *AlsaSink) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return nil
	}
	a.running = false
	close(a.done)
	return nil
}

func (a *AlsaSink) Close() error {
	if a.handle != nil {
		C.sp3ctra_alsa_close(a.handle)
		a.handle = nil
	}
	return nil
}
