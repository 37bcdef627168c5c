// Detect - run document detection on still images
//
// A tuning tool: runs a detection backend over image files and prints what
// the scanner would see. Optionally writes annotated copies for eyeballing
// corner placement.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/teslashibe/go-docscan/internal/log"
	"github.com/teslashibe/go-docscan/pkg/debug"
	"github.com/teslashibe/go-docscan/pkg/framesource"
	"github.com/teslashibe/go-docscan/pkg/protocol"
	"github.com/teslashibe/go-docscan/pkg/scan"
	"github.com/teslashibe/go-docscan/pkg/scan/detection"
	"github.com/teslashibe/go-docscan/pkg/trace"
)

func main() {
	backend := flag.String("detector", "contour", "detection backend: contour, edge")
	asJSON := flag.Bool("json", false, "print results as JSON lines")
	annotate := flag.String("annotate", "", "write annotated copies to this directory")
	verbose := flag.Bool("debug", false, "verbose per-image detection logs")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: detect [-detector contour|edge] [-json] [-annotate dir] image.jpg ...")
		os.Exit(1)
	}

	log.Init("warn")
	debug.Detection = *verbose

	dcfg := detection.DefaultConfig()
	var det detection.Detector
	if *backend == "edge" {
		det = detection.NewEdge(dcfg)
	} else {
		det = detection.NewContour(dcfg)
	}
	defer det.Close()

	var tracer *trace.Writer
	if *annotate != "" {
		var err error
		tracer, err = trace.NewWriter(*annotate, 1)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if !*asJSON {
		fmt.Println("📄 Document Detection")
		fmt.Println("=====================")
		fmt.Printf("Backend: %s\n\n", *backend)
	}

	failed := 0
	for i, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}

		start := time.Now()
		res, err := det.Detect(data)
		took := time.Since(start)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: detection failed: %v\n", path, err)
			failed++
			continue
		}

		printResult(path, res, took, *asJSON)

		if tracer != nil {
			frame := framesource.Frame{Seq: uint64(i + 1), JPEG: data, At: time.Now()}
			st := scan.Stability{}
			if res.Found() {
				st = scan.Stability{Count: 1, Quad: res.Quad}
			}
			tracer.Trace(frame, res, st)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func printResult(path string, res detection.Result, took time.Duration, asJSON bool) {
	if asJSON {
		out := struct {
			File       string             `json:"file"`
			Found      bool               `json:"found"`
			Confidence float64            `json:"confidence,omitempty"`
			Quad       *protocol.QuadData `json:"quad,omitempty"`
			Ms         int64              `json:"ms"`
		}{
			File:  path,
			Found: res.Found(),
			Ms:    took.Milliseconds(),
		}
		if res.Found() {
			out.Confidence = res.Confidence
			out.Quad = protocol.QuadFromGeometry(res.Quad)
		}
		line, _ := json.Marshal(out)
		fmt.Println(string(line))
		return
	}

	if !res.Found() {
		fmt.Printf("❌ %s: no document (%dms)\n", path, took.Milliseconds())
		return
	}
	q := res.Quad
	fmt.Printf("✅ %s: conf %.2f (%dms)\n", path, res.Confidence, took.Milliseconds())
	fmt.Printf("   tl=(%.0f,%.0f) tr=(%.0f,%.0f) br=(%.0f,%.0f) bl=(%.0f,%.0f)\n",
		q.TopLeft.X, q.TopLeft.Y, q.TopRight.X, q.TopRight.Y,
		q.BottomRight.X, q.BottomRight.Y, q.BottomLeft.X, q.BottomLeft.Y)
}
