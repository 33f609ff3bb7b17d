package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dpazeto/scanform/internal/common"
	"github.com/dpazeto/scanform/internal/decode"
	"github.com/dpazeto/scanform/internal/events"
	"github.com/dpazeto/scanform/internal/export"
	"github.com/dpazeto/scanform/internal/extract"
	"github.com/dpazeto/scanform/internal/form"
	"github.com/dpazeto/scanform/internal/pipeline"
	"github.com/dpazeto/scanform/internal/repository"
	"github.com/dpazeto/scanform/internal/scan"
	"github.com/dpazeto/scanform/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Scan history is optional: without a DSN the scanner still runs,
	// it just keeps no audit log.
	var scans repository.ScanRepository
	if cfg.Database.DSN != "" {
		db, driver, err := repository.Open(ctx, repository.Config{
			DSN:         cfg.Database.DSN,
			DialTimeout: cfg.Database.DialTimeout,
		}, logger)
		if err != nil {
			logger.Error("opening history store", "error", err)
			os.Exit(1)
		}
		defer repository.Close(db, logger)

		scans, err = repository.NewScanRepository(ctx, db, driver, logger)
		if err != nil {
			logger.Error("preparing history store", "error", err)
			os.Exit(1)
		}
	}

	extractor := extract.NewHTTPExtractor(cfg.Parser.URL, cfg.Parser.APIKey, cfg.Parser.Timeout, logger)

	targets := make([]*form.ValueTarget, 0, len(cfg.Scanner.FormFields))
	f := form.New(logger, func(name, value string) {
		logger.Debug("form.changed", "field", name, "value", value)
	})
	for _, name := range cfg.Scanner.FormFields {
		t := form.NewValueTarget(name)
		f.Register(t)
		targets = append(targets, t)
	}

	proc := pipeline.NewProcessor(logger, extractor, f, scans, cfg.Scanner.MaxTextLength)

	images := decode.NewImageDecoder(logger)
	camera := decode.NewCameraDecoder(images, logger, cfg.Scanner.ProbeDevices, cfg.Scanner.FrameInterval)

	emitter := events.NewEmitter()
	controller, err := scan.New(camera, proc, emitter, logger, scan.Config{Timeout: cfg.Scanner.CameraTimeout})
	if err != nil {
		logger.Error("building controller", "error", err)
		os.Exit(1)
	}

	handler := server.New(controller, scans, export.NewService(scans, logger), targets)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	handler.Attach(r)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http serving", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	controller.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	logger.Info("stopped")
}
