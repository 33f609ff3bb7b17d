// Package scan implements the camera acquisition controller: a bounded,
// ordered sequence of camera-opening strategies against the decoder,
// one overall timeout, and a release-on-every-exit-path discipline.
package scan

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dpazeto/scanform/internal/common"
	"github.com/dpazeto/scanform/internal/decode"
	"github.com/dpazeto/scanform/internal/events"
)

// DefaultTimeout bounds the whole acquisition sequence, not any single
// attempt.
const DefaultTimeout = 30 * time.Second

// Source tags where a decoded payload came from.
const (
	SourceLive  = "live"
	SourceImage = "image"
)

// Processor consumes one decoded payload: validation, field
// extraction, and form population happen behind this.
type Processor interface {
	Process(ctx context.Context, raw, source string) (map[string]string, error)
}

// Config holds controller tunables.
type Config struct {
	Timeout time.Duration
}

// Controller drives one camera session at a time. The zero value is
// uninitialized: Start and DecodeImage fail with NOT_INITIALIZED until
// the controller is built through New.
type Controller struct {
	dec     decode.Decoder
	proc    Processor
	emitter *events.Emitter
	logger  *slog.Logger
	timeout time.Duration

	mu          sync.Mutex
	initialized bool
	active      bool
	done        bool // positive result or timeout already handled this session
	timer       *time.Timer
	stream      io.Closer
	sessionCtx  context.Context
}

func New(dec decode.Decoder, proc Processor, emitter *events.Emitter, logger *slog.Logger, cfg Config) (*Controller, error) {
	if dec == nil {
		return nil, common.NewAppError(common.CodeNotInitialized, "decoder is required", nil)
	}
	if proc == nil {
		return nil, common.NewAppError(common.CodeNotInitialized, "processor is required", nil)
	}
	if emitter == nil {
		emitter = events.NewEmitter()
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Controller{
		dec:         dec,
		proc:        proc,
		emitter:     emitter,
		logger:      logger,
		timeout:     timeout,
		initialized: true,
	}, nil
}

// Events exposes the controller's emitter for subscription.
func (c *Controller) Events() *events.Emitter {
	return c.emitter
}

// Active reports whether a camera session is currently running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Start begins a camera session: arms the session timer and launches
// the attempt sequence. Starting an already-active controller is a
// no-op; starting an uninitialized one fails with NOT_INITIALIZED.
func (c *Controller) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		err := common.NewAppError(common.CodeNotInitialized, "controller not initialized", nil)
		c.emit(events.Event{Kind: events.KindError, Err: err})
		return err
	}
	if c.active {
		c.mu.Unlock()
		return nil
	}
	c.active = true
	c.done = false
	c.sessionCtx = ctx
	c.timer = time.AfterFunc(c.timeout, c.onTimeout)
	c.mu.Unlock()

	c.status("session starting")
	c.logger.Info("scanner.start", "timeout", c.timeout)
	go c.acquire(ctx)
	return nil
}

// Stop is idempotent: it disarms the timer, releases the camera, and
// marks the session inactive. Safe to call when never started.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.done = true // late decoder results must not re-trigger processing
	c.mu.Unlock()

	c.release()
	c.emit(events.Event{Kind: events.KindReset})
}

// DecodeImage decodes a single still image, independent of the live
// session state machine, and routes the payload through the same
// processing path as live capture. Errors are both returned and
// emitted as events.
func (c *Controller) DecodeImage(ctx context.Context, img image.Image) (map[string]string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	initialized := c.initialized
	c.mu.Unlock()
	if !initialized {
		err := common.NewAppError(common.CodeNotInitialized, "controller not initialized", nil)
		c.emit(events.Event{Kind: events.KindError, Err: err})
		return nil, err
	}

	c.status("decoding still image")
	text, err := c.dec.DecodeImage(ctx, img)
	if err != nil {
		c.logger.Warn("scanner.image.decode_failed", "error", err)
		c.emit(events.Event{Kind: events.KindError, Err: err})
		return nil, err
	}

	fields, err := c.proc.Process(ctx, text, SourceImage)
	if err != nil {
		c.emit(events.Event{Kind: events.KindError, Err: err})
		return nil, err
	}
	c.emit(events.Event{Kind: events.KindProcessed, Fields: fields})
	c.status("image processed")
	return fields, nil
}

// onResult is the continuous-decode callback. "Not found this frame"
// is silent; other decode errors surface as non-fatal errorLeitura
// events; the first positive result ends the session.
func (c *Controller) onResult(r decode.Result) {
	c.mu.Lock()
	if !c.active || c.done {
		c.mu.Unlock()
		return
	}
	if r.Err != nil {
		c.mu.Unlock()
		if errors.Is(r.Err, decode.ErrNotFound) {
			return
		}
		c.logger.Warn("scanner.frame.error", "error", r.Err)
		c.emit(events.Event{Kind: events.KindReadError, Err: r.Err})
		return
	}
	c.done = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	ctx := c.sessionCtx
	c.mu.Unlock()

	// The decoder invokes this callback from its frame loop, and
	// releasing the stream waits for that loop to exit. Processing must
	// leave the callback goroutine or release would wait on itself.
	go c.handleDecoded(ctx, r.Text)
}

// handleDecoded processes exactly one positive result per session and
// releases the camera no matter how processing went.
func (c *Controller) handleDecoded(ctx context.Context, raw string) {
	defer c.release()

	c.status("code detected, processing")
	fields, err := c.proc.Process(ctx, raw, SourceLive)
	if err != nil {
		c.logger.Warn("scanner.process.failed", "error", err)
		c.emit(events.Event{Kind: events.KindError, Err: err})
		return
	}
	c.emit(events.Event{Kind: events.KindProcessed, Fields: fields})
	c.status("processing complete")
}

// onTimeout fires once for the whole attempt sequence.
func (c *Controller) onTimeout() {
	c.mu.Lock()
	if !c.active || c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	c.timer = nil
	c.mu.Unlock()

	c.logger.Warn("scanner.timeout", "timeout", c.timeout)
	c.emit(events.Event{
		Kind: events.KindError,
		Err:  common.NewAppError(common.CodeCameraTimeout, "camera acquisition timed out", nil),
	})
	c.release()
}

// failSession ends the session with a fatal acquisition error.
func (c *Controller) failSession(err error) {
	c.mu.Lock()
	if !c.active || c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	c.mu.Unlock()

	c.logger.Error("scanner.session.failed", "error", err)
	c.emit(events.Event{Kind: events.KindError, Err: err})
	c.release()
}

// release covers every exit path: disarm the timer, close the stream,
// mark inactive. Idempotent.
func (c *Controller) release() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	s := c.stream
	c.stream = nil
	wasActive := c.active
	c.active = false
	c.mu.Unlock()

	if s != nil {
		s.Close()
	}
	if wasActive {
		c.status("session released")
		c.logger.Info("scanner.released")
	}
}

func (c *Controller) sessionEnded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.active || c.done
}

func (c *Controller) emit(ev events.Event) {
	if c.emitter != nil {
		c.emitter.Emit(ev)
	}
}

func (c *Controller) status(s string) {
	c.emit(events.Event{Kind: events.KindStatus, Status: s})
}
