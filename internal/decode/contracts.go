// Package decode wraps the QR decoding capability behind a small
// contract so the acquisition controller never touches a concrete
// camera or decoding library.
package decode

import (
	"context"
	"errors"
	"image"
	"io"
)

// ErrNotFound signals that a frame or image carried no decodable code.
// It is an expected per-frame outcome during live capture, not an error
// condition: the scan loop keeps listening.
var ErrNotFound = errors.New("decode: no code found")

// Facing is the camera lens orientation hint.
type Facing string

const (
	FacingUnknown     Facing = ""
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

// Constraints describes a capability request for opening a stream.
// Exact requests fail when no device matches the facing; non-exact
// requests treat it as a preference.
type Constraints struct {
	Facing Facing
	Exact  bool
}

// VideoDevice describes one enumerated video input.
type VideoDevice struct {
	ID     string
	Label  string
	Facing Facing
}

// Result is one outcome of the continuous decode loop. Either Text is
// set, or Err is (ErrNotFound for empty frames, anything else for a
// read failure).
type Result struct {
	Text string
	Err  error
}

// ResultFunc receives stream results. It may be invoked repeatedly
// until the returned stream is closed.
type ResultFunc func(Result)

// Decoder is the black-box QR decoding capability: live streaming from
// constraints or an explicit device, still-image decode, and device
// enumeration. Closing the returned io.Closer releases the camera.
type Decoder interface {
	OpenStream(ctx context.Context, cons Constraints, fn ResultFunc) (io.Closer, error)
	OpenDevice(ctx context.Context, deviceID string, fn ResultFunc) (io.Closer, error)
	DecodeImage(ctx context.Context, img image.Image) (string, error)
	VideoInputs(ctx context.Context) ([]VideoDevice, error)
}
