// Command scanimage decodes a QR code from an image file, validates
// and sanitizes the payload, and prints it. With a parser configured it
// also extracts and prints the named fields.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sort"

	_ "image/jpeg"
	_ "image/png"

	"github.com/dpazeto/scanform/internal/common"
	"github.com/dpazeto/scanform/internal/decode"
	"github.com/dpazeto/scanform/internal/extract"
	"github.com/dpazeto/scanform/internal/validate"
)

func main() {
	var (
		path      = flag.String("image", "", "path to the image file (required)")
		withParse = flag.Bool("parse", false, "also extract fields via the configured parser")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: scanimage -image <file> [-parse]")
		os.Exit(2)
	}

	f, err := os.Open(*path)
	if err != nil {
		logger.Error("opening image", "path", *path, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		logger.Error("decoding image file", "path", *path, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	cfg := common.LoadConfig()

	text, err := decode.NewImageDecoder(logger).Decode(ctx, img)
	if err != nil {
		logger.Error("no readable code", "error", err)
		os.Exit(1)
	}

	sanitized, err := validate.Validate(text, cfg.Scanner.MaxTextLength)
	if err != nil {
		logger.Error("payload rejected", "error", err)
		os.Exit(1)
	}
	fmt.Println(sanitized)

	if !*withParse {
		return
	}
	if cfg.Parser.URL == "" {
		logger.Error("SCANFORM_PARSER_URL is required with -parse")
		os.Exit(2)
	}

	extractor := extract.NewHTTPExtractor(cfg.Parser.URL, cfg.Parser.APIKey, cfg.Parser.Timeout, logger)
	res, err := extractor.ExtractFields(ctx, sanitized)
	if err != nil {
		logger.Error("field extraction failed", "error", err)
		os.Exit(1)
	}

	names := make([]string, 0, len(res.Fields))
	for name := range res.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s=%s\n", name, res.Fields[name])
	}
}
