package decode

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	defaultProbeDevices  = 4
	defaultFrameInterval = 150 * time.Millisecond
)

// CameraDecoder implements Decoder over local capture devices. Frames
// are grabbed on a fixed interval and pushed through an ImageDecoder.
//
// V4L2 exposes no facing-mode metadata, so exact facing requests fail
// here the same way they do on a desktop browser; preferred (non-exact)
// requests fall back to the default device.
type CameraDecoder struct {
	logger   *slog.Logger
	images   *ImageDecoder
	probe    int
	interval time.Duration
}

func NewCameraDecoder(images *ImageDecoder, logger *slog.Logger, probeDevices int, frameInterval time.Duration) *CameraDecoder {
	if logger == nil {
		logger = slog.Default()
	}
	if images == nil {
		images = NewImageDecoder(logger)
	}
	if probeDevices <= 0 {
		probeDevices = defaultProbeDevices
	}
	if frameInterval <= 0 {
		frameInterval = defaultFrameInterval
	}
	return &CameraDecoder{logger: logger, images: images, probe: probeDevices, interval: frameInterval}
}

// OpenStream opens the default capture device. Exact facing requests
// cannot be satisfied without facing metadata and fail immediately.
func (c *CameraDecoder) OpenStream(ctx context.Context, cons Constraints, fn ResultFunc) (io.Closer, error) {
	if cons.Exact && cons.Facing != FacingUnknown {
		return nil, fmt.Errorf("no device with exact facing %q", cons.Facing)
	}
	return c.open(ctx, 0, fn)
}

// OpenDevice opens the capture device with the given enumerated ID.
func (c *CameraDecoder) OpenDevice(ctx context.Context, deviceID string, fn ResultFunc) (io.Closer, error) {
	idx, err := strconv.Atoi(deviceID)
	if err != nil {
		return nil, fmt.Errorf("device id %q: %w", deviceID, err)
	}
	return c.open(ctx, idx, fn)
}

// DecodeImage decodes a single still image without touching any device.
func (c *CameraDecoder) DecodeImage(ctx context.Context, img image.Image) (string, error) {
	return c.images.Decode(ctx, img)
}

// VideoInputs enumerates capture devices. Labels come from the V4L2
// sysfs tree when available; otherwise devices are probed by index.
func (c *CameraDecoder) VideoInputs(ctx context.Context) ([]VideoDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var devices []VideoDevice
	for i := 0; i < c.probe; i++ {
		label, ok := v4l2Label(i)
		if !ok {
			continue
		}
		devices = append(devices, VideoDevice{ID: strconv.Itoa(i), Label: label})
	}
	if len(devices) > 0 {
		return devices, nil
	}

	// No sysfs (non-Linux): probe indexes directly.
	for i := 0; i < c.probe; i++ {
		cap, err := gocv.OpenVideoCapture(i)
		if err != nil || cap == nil {
			continue
		}
		opened := cap.IsOpened()
		cap.Close()
		if opened {
			devices = append(devices, VideoDevice{ID: strconv.Itoa(i), Label: fmt.Sprintf("camera %d", i)})
		}
	}
	return devices, nil
}

func v4l2Label(idx int) (string, bool) {
	b, err := os.ReadFile(filepath.Join("/sys/class/video4linux", fmt.Sprintf("video%d", idx), "name"))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(b)), true
}

func (c *CameraDecoder) open(ctx context.Context, idx int, fn ResultFunc) (io.Closer, error) {
	cap, err := gocv.OpenVideoCapture(idx)
	if err != nil {
		return nil, fmt.Errorf("open capture device %d: %w", idx, err)
	}
	if cap == nil || !cap.IsOpened() {
		if cap != nil {
			cap.Close()
		}
		return nil, fmt.Errorf("capture device %d did not open", idx)
	}

	s := &stream{
		ctx:      ctx,
		cap:      cap,
		images:   c.images,
		fn:       fn,
		interval: c.interval,
		logger:   c.logger,
		done:     make(chan struct{}),
		released: make(chan struct{}),
	}
	c.logger.Info("camera.stream.open", "device", idx)
	go s.run()
	return s, nil
}

// stream owns one open capture device. Close stops the frame loop and
// returns only after the device has been released.
type stream struct {
	ctx      context.Context
	cap      *gocv.VideoCapture
	images   *ImageDecoder
	fn       ResultFunc
	interval time.Duration
	logger   *slog.Logger

	once     sync.Once
	done     chan struct{}
	released chan struct{}
}

func (s *stream) run() {
	defer close(s.released)
	defer s.cap.Close()

	mat := gocv.NewMat()
	defer mat.Close()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}

		if ok := s.cap.Read(&mat); !ok || mat.Empty() {
			s.fn(Result{Err: fmt.Errorf("read frame: capture returned no data")})
			continue
		}
		img, err := mat.ToImage()
		if err != nil {
			s.fn(Result{Err: fmt.Errorf("convert frame: %w", err)})
			continue
		}
		text, err := s.images.Decode(s.ctx, img)
		if err != nil {
			s.fn(Result{Err: err})
			continue
		}
		s.fn(Result{Text: text})
	}
}

func (s *stream) Close() error {
	s.once.Do(func() { close(s.done) })
	<-s.released
	return nil
}
