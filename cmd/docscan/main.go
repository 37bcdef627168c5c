// docscan - stable document capture service
//
// Consumes camera frames, watches for a steadily held document, captures
// and enhances it, and serves results over REST and WebSocket. Frames come
// from connected capture devices by default; a spool directory or a WebRTC
// camera can be selected instead.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/teslashibe/go-docscan/internal/config"
	"github.com/teslashibe/go-docscan/internal/log"
	"github.com/teslashibe/go-docscan/pkg/capture"
	"github.com/teslashibe/go-docscan/pkg/debug"
	"github.com/teslashibe/go-docscan/pkg/framesource"
	"github.com/teslashibe/go-docscan/pkg/ingest"
	"github.com/teslashibe/go-docscan/pkg/ocr"
	"github.com/teslashibe/go-docscan/pkg/scan"
	"github.com/teslashibe/go-docscan/pkg/scan/detection"
	"github.com/teslashibe/go-docscan/pkg/trace"
	"github.com/teslashibe/go-docscan/pkg/web"
)

type options struct {
	source      string
	spoolDir    string
	detector    string
	store       string
	traceDir    string
	threshold   int
	manualOnly  bool
	multiShot   bool
	runOCR      bool
	debugDetect bool
}

func parseFlags() options {
	defaults := scan.DefaultConfig()

	var opts options
	flag.StringVar(&opts.source, "source", "device", "frame source: device, dir, remote")
	flag.StringVar(&opts.spoolDir, "spool", config.SpoolDir(config.DefaultSpoolDir), "spool directory for -source dir")
	flag.StringVar(&opts.detector, "detector", "contour", "detection backend: contour, edge")
	flag.StringVar(&opts.store, "store", "disk", "document store: disk, drive")
	flag.StringVar(&opts.traceDir, "trace", "", "write annotated detection frames to this directory")
	flag.IntVar(&opts.threshold, "threshold", defaults.StabilityThreshold, "stable frames before auto-capture")
	flag.BoolVar(&opts.manualOnly, "manual-only", false, "disable automatic capture")
	flag.BoolVar(&opts.multiShot, "multi-shot", false, "allow repeated automatic captures")
	flag.BoolVar(&opts.runOCR, "ocr", false, "recognize text on captured documents")
	flag.BoolVar(&opts.debugDetect, "debug-detection", false, "verbose per-frame detection logs")
	flag.Parse()
	return opts
}

func main() {
	opts := parseFlags()
	log.Init(config.LogLevel())
	debug.Detection = opts.debugDetect

	cfg := scan.DefaultConfig()
	cfg.StabilityThreshold = opts.threshold
	cfg.ManualOnly = opts.manualOnly
	cfg.MultiShot = opts.multiShot
	cfg.OCR = opts.runOCR
	cfg.TraceDir = opts.traceDir

	detector := newDetector(opts.detector)
	defer detector.Close()

	scanner, err := scan.New(cfg, detector, capture.NewStill())
	if err != nil {
		log.Error("scanner init failed", "error", err)
		os.Exit(1)
	}

	port := strings.TrimPrefix(config.ListenAddr(), ":")
	server := web.NewServer(port, scanner)
	scanner.AddSink(server)
	scanner.AddSink(scan.LogSink{})

	if err := wireStore(scanner, server, opts.store, port); err != nil {
		log.Error("store init failed", "error", err)
		os.Exit(1)
	}

	if opts.runOCR {
		eng, err := ocr.NewEngine("eng")
		if err != nil {
			log.Warn("text recognition unavailable", "error", err)
		} else {
			defer eng.Close()
			scanner.SetRecognizer(eng)
		}
	}

	if opts.traceDir != "" {
		tw, err := trace.NewWriter(opts.traceDir, cfg.StabilityThreshold)
		if err != nil {
			log.Error("trace init failed", "error", err)
			os.Exit(1)
		}
		scanner.SetTracer(tw)
	}

	if url := os.Getenv("DOCSCAN_WEBHOOK_URL"); url != "" {
		scanner.AddSink(web.NewWebhookSink(url))
		log.Info("webhook enabled", "url", url)
	}

	src, err := newSource(opts, server, scanner)
	if err != nil {
		log.Error("frame source init failed", "error", err)
		os.Exit(1)
	}

	// Feed the live preview without taking frames away from the scanner
	feed := framesource.NewTee(src, server.PushFrame)
	defer feed.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server.StartAsync()
	defer server.Shutdown()

	log.Info("docscan up",
		"port", port,
		"source", opts.source,
		"detector", opts.detector,
		"threshold", cfg.StabilityThreshold)

	if err := scanner.Run(ctx, feed); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("scanner stopped", "error", err)
		os.Exit(1)
	}
	log.Info("shutting down")
}

// newDetector picks the detection backend. contour needs OpenCV at build
// time; edge is pure Go and works anywhere.
func newDetector(name string) detection.Detector {
	dcfg := detection.DefaultConfig()
	switch name {
	case "edge":
		return detection.NewEdge(dcfg)
	default:
		return detection.NewContour(dcfg)
	}
}

// wireStore attaches document persistence. Drive endpoints come up whenever
// credentials exist, even when documents land on disk.
func wireStore(scanner *scan.Scanner, server *web.Server, kind, port string) error {
	var driveStore *capture.DriveStore
	if id := config.GoogleClientID(); id != "" {
		ds, err := capture.NewDriveStore(capture.DriveConfig{
			ClientID:     id,
			ClientSecret: config.GoogleClientSecret(),
			RedirectURL:  fmt.Sprintf("http://localhost:%s/api/drive/callback", port),
			TokenPath:    config.TokenPath(),
			FolderID:     os.Getenv("GOOGLE_DRIVE_FOLDER_ID"),
		})
		if err != nil {
			return err
		}
		driveStore = ds
		server.SetDrive(ds)
	}

	switch kind {
	case "drive":
		if driveStore == nil {
			return fmt.Errorf("-store drive needs GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
		}
		scanner.SetStore(driveStore)
	default:
		disk, err := capture.NewDiskStore(config.DataDir())
		if err != nil {
			return err
		}
		scanner.SetStore(disk)
	}
	return nil
}

// newSource builds the frame source selected by -source
func newSource(opts options, server *web.Server, scanner *scan.Scanner) (framesource.Source, error) {
	switch opts.source {
	case "dir":
		return framesource.NewDir(opts.spoolDir, framesource.DirOpts{Remove: true})
	case "remote":
		return framesource.NewRemote(framesource.DefaultRemoteOpts(config.SignalURL()))
	case "device":
		hub := ingest.NewHub()
		hub.OnCapture(func(deviceID string) {
			if _, err := scanner.Capture(); err != nil {
				log.Debug("device capture rejected", "device_id", deviceID, "error", err)
			}
		})
		server.SetIngest(hub)
		return hub, nil
	default:
		return nil, fmt.Errorf("unknown frame source %q", opts.source)
	}
}
