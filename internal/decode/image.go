package decode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/liyue201/goqr"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ImageDecoder decodes QR payloads from still images. The primary
// reader is zxing with the try-harder hint; frames zxing gives up on
// get a second pass through goqr before reporting ErrNotFound.
type ImageDecoder struct {
	logger *slog.Logger

	mu     sync.Mutex
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
}

func NewImageDecoder(logger *slog.Logger) *ImageDecoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageDecoder{
		logger: logger,
		reader: qrcode.NewQRCodeReader(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Decode extracts a QR payload from img. Returns ErrNotFound when the
// image carries no decodable code.
func (d *ImageDecoder) Decode(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	start := time.Now()

	text, err := d.decodeZXing(img)
	if err == nil {
		d.logger.Debug("decode.image.ok", "method", "zxing", "elapsed_ms", time.Since(start).Milliseconds())
		return text, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	// Fallback reader for codes zxing's binarizer misses.
	codes, qerr := goqr.Recognize(img)
	if qerr != nil || len(codes) == 0 {
		return "", ErrNotFound
	}
	d.logger.Debug("decode.image.ok", "method", "goqr", "elapsed_ms", time.Since(start).Milliseconds())
	return string(codes[0].Payload), nil
}

func (d *ImageDecoder) decodeZXing(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("binarize image: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.reader.Decode(bmp, d.hints)
	if err != nil {
		var nfe gozxing.NotFoundException
		if errors.As(err, &nfe) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("zxing decode: %w", err)
	}
	return res.GetText(), nil
}
