// Package netrx is a reference net_rx implementation (spec.md §5): it
// receives line-scan frames and calls publish_image_line. The wire format
// itself is an explicit Non-goal (spec.md §1); this package is one
// concrete way an external network layer could satisfy that contract,
// grounded on the retrieved pack's gorilla/websocket + portaudio client
// (a binary combining both in the same process, same shape as Sp3ctra's
// net_rx/audio_callback split).
package netrx

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/sp3ctra/sp3ctra/internal/imaging"
)

// LineHandler is called once per fully reassembled line, matching spec.md
// §6's publish_image_line(r[], g[], b[]).
type LineHandler func(line *imaging.ImageLine)

// Receiver connects to a WebSocket endpoint and decodes one ImageLine per
// binary message: the message body is three consecutive N_PIXELS-length
// byte arrays (R, then G, then B). Framing beyond this is not specified by
// spec.md and is free for a real deployment to replace.
type Receiver struct {
	url     string
	nPixels int
	onLine  LineHandler
	conn    *websocket.Conn
}

// NewReceiver builds a Receiver for the given endpoint. Connection happens
// in Run, not here, so construction never blocks on the network.
func NewReceiver(url string, nPixels int, onLine LineHandler) *Receiver {
	return &Receiver{url: url, nPixels: nPixels, onLine: onLine}
}

// Run dials the endpoint and reads frames until ctx is cancelled or the
// connection fails. This is the net_rx thread (spec.md §5: "may block, on
// socket").
func (r *Receiver) Run(ctx context.Context) error {
	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("netrx: dial %s: %w", r.url, err)
	}
	r.conn = conn
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	frameLen := r.nPixels * 3
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("netrx: read: %w", err)
		}
		if len(data) != frameLen {
			continue // malformed frame: dropped upstream of the preprocessor too
		}
		line := &imaging.ImageLine{
			R: append([]uint8(nil), data[0:r.nPixels]...),
			G: append([]uint8(nil), data[r.nPixels:2*r.nPixels]...),
			B: append([]uint8(nil), data[2*r.nPixels:3*r.nPixels]...),
		}
		r.onLine(line)
	}
}
