package scan

import (
	"context"
	"io"
	"strings"

	"github.com/dpazeto/scanform/internal/common"
	"github.com/dpazeto/scanform/internal/decode"
)

// rearLabelTerms is the rear-camera naming heuristic used when device
// labels are all we have. Matched case-insensitively as substrings.
var rearLabelTerms = []string{"back", "rear", "environment", "traseira", "trás"}

// acquire runs the ordered attempt sequence. First success wins; each
// failure triggers the next attempt; exhaustion fails the session.
func (c *Controller) acquire(ctx context.Context) {
	attempts := []struct {
		name string
		open func() (io.Closer, error)
	}{
		{"rear camera (preferred)", func() (io.Closer, error) {
			return c.dec.OpenStream(ctx, decode.Constraints{Facing: decode.FacingEnvironment}, c.onResult)
		}},
		{"rear camera (exact)", func() (io.Closer, error) {
			return c.dec.OpenStream(ctx, decode.Constraints{Facing: decode.FacingEnvironment, Exact: true}, c.onResult)
		}},
		{"enumerated device", func() (io.Closer, error) {
			return c.openByEnumeration(ctx)
		}},
	}

	var lastErr error
	for _, a := range attempts {
		if c.sessionEnded() {
			return
		}
		c.status("requesting " + a.name)

		closer, err := a.open()
		if err != nil {
			if common.CodeOf(err) == common.CodeNoCameraAvailable {
				c.failSession(err)
				return
			}
			c.logger.Warn("scanner.attempt.failed", "attempt", a.name, "error", err)
			lastErr = err
			continue
		}

		c.mu.Lock()
		if !c.active || c.done {
			// Timeout or stop raced the open; give the device back.
			c.mu.Unlock()
			closer.Close()
			return
		}
		c.stream = closer
		c.mu.Unlock()

		c.logger.Info("scanner.attempt.ok", "attempt", a.name)
		c.status("camera open, scanning")
		return
	}

	c.failSession(common.NewAppError(common.CodeCameraOpenFailed, "all camera attempts failed", lastErr))
}

// openByEnumeration is the last attempt: list devices, pick the most
// likely rear camera, open it explicitly.
func (c *Controller) openByEnumeration(ctx context.Context) (io.Closer, error) {
	devices, err := c.dec.VideoInputs(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, common.NewAppError(common.CodeNoCameraAvailable, "no video input devices found", nil)
	}

	dev := pickDevice(devices)
	c.logger.Info("scanner.device.selected", "id", dev.ID, "label", dev.Label)
	c.status("opening device " + deviceName(dev))
	return c.dec.OpenDevice(ctx, dev.ID, c.onResult)
}

// pickDevice selects by priority: rear-looking label, then declared
// environment facing, then the first enumerated device.
func pickDevice(devices []decode.VideoDevice) decode.VideoDevice {
	for _, d := range devices {
		if looksRearFacing(d.Label) {
			return d
		}
	}
	for _, d := range devices {
		if d.Facing == decode.FacingEnvironment {
			return d
		}
	}
	return devices[0]
}

func looksRearFacing(label string) bool {
	lower := strings.ToLower(label)
	for _, term := range rearLabelTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func deviceName(d decode.VideoDevice) string {
	if d.Label != "" {
		return d.Label
	}
	return d.ID
}
