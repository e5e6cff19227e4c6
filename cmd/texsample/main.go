// Command texsample renders a visual proof of the sampler: it samples
// an NxN grid of (s,t) coordinates across each named texture file and
// writes the result as a WebP image, so trilinear/wrap behavior can be
// eyeballed. Grounded on the teacher's cmd/render driver and its
// batch.Run worker pool (internal/batch/processor.go).
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"texturesys/internal/config"
	_ "texturesys/internal/imagereader/plain"
	"texturesys/internal/sampler"

	"github.com/HugoSmits86/nativewebp"
)

func main() {
	configFile := flag.String("config", "", "Path to config.json file")
	searchPath := flag.String("path", "", "Search path for resolving filenames")
	outputDir := flag.String("output", ".", "Output directory for rendered WebP images")
	gridSize := flag.Int("grid", 64, "Sample grid resolution (NxN)")
	workers := flag.Int("workers", 0, "Number of worker goroutines (default: NumCPU)")
	maxOpenFiles := flag.Int("max-open-files", 0, "Open-file budget (default 100)")
	maxMemoryMB := flag.Int("max-memory-mb", 0, "Tile-byte budget in MiB (default 50)")
	swrap := flag.String("swrap", "", "S wrap mode override: black, clamp, periodic, mirror")
	twrap := flag.String("twrap", "", "T wrap mode override")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: texsample [flags] file [file...]")
		os.Exit(2)
	}

	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.Resolve(config.Flags{
		SearchPath:   *searchPath,
		MaxOpenFiles: *maxOpenFiles,
		MaxMemoryMB:  *maxMemoryMB,
		Workers:      *workers,
	})

	sys := sampler.Create(cfg.SearchPath)
	sys.MaxOpenFiles(cfg.MaxOpenFiles)
	sys.MaxMemoryMB(cfg.MaxMemoryMB)
	defer sys.Destroy()

	os.MkdirAll(*outputDir, 0755)

	swrapMode := parseWrapFlag(*swrap)
	twrapMode := parseWrapFlag(*twrap)

	total := len(files)
	var processed atomic.Int64
	start := time.Now()

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p := processed.Load()
				if p > 0 {
					elapsed := time.Since(start).Seconds()
					fmt.Printf("  [%d/%d] %.1f files/sec\n", p, total, float64(p)/elapsed)
				}
			}
		}
	}()

	fileChan := make(chan string, cfg.Workers*2)
	var wg sync.WaitGroup
	var failCount atomic.Int64

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range fileChan {
				if err := sampleOne(sys, f, *outputDir, *gridSize, swrapMode, twrapMode); err != nil {
					fmt.Fprintf(os.Stderr, "ERR %s: %v\n", f, err)
					failCount.Add(1)
				}
				processed.Add(1)
			}
		}()
	}

	for _, f := range files {
		fileChan <- f
	}
	close(fileChan)
	wg.Wait()
	close(done)

	fmt.Printf("Done in %.1fs, %d/%d ok\n", time.Since(start).Seconds(), total-int(failCount.Load()), total)
	if failCount.Load() > 0 {
		os.Exit(1)
	}
}

func parseWrapFlag(s string) sampler.Wrap {
	switch s {
	case "black":
		return sampler.WrapBlack
	case "clamp":
		return sampler.WrapClamp
	case "periodic":
		return sampler.WrapPeriodic
	case "mirror":
		return sampler.WrapMirror
	default:
		return sampler.WrapDefault
	}
}

func sampleOne(sys *sampler.System, filename, outputDir string, grid int, swrap, twrap sampler.Wrap) error {
	n := grid * grid
	opts := sampler.DefaultOptions(3, n)
	opts.SWrap, opts.TWrap = swrap, twrap
	opts.Alpha = make([]float32, n)

	s := make([]float32, n)
	t := make([]float32, n)
	dsdx := make([]float32, n)
	dtdy := make([]float32, n)
	runflags := make([]bool, n)
	result := make([]float32, n*3)

	step := 1.0 / float32(grid)
	for row := 0; row < grid; row++ {
		for col := 0; col < grid; col++ {
			i := row*grid + col
			s[i] = (float32(col) + 0.5) * step
			t[i] = (float32(row) + 0.5) * step
			dsdx[i] = step
			dtdy[i] = step
			runflags[i] = true
		}
	}

	sys.Texture(filename, opts, runflags, 0, n-1, s, t, dsdx, nil, nil, dtdy, result)

	img := image.NewNRGBA(image.Rect(0, 0, grid, grid))
	for row := 0; row < grid; row++ {
		for col := 0; col < grid; col++ {
			i := row*grid + col
			r := clamp01(result[i*3+0])
			g := clamp01(result[i*3+1])
			b := clamp01(result[i*3+2])
			a := clamp01(opts.Alpha[i])
			img.SetNRGBA(col, row, color.NRGBA{
				R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: uint8(a * 255),
			})
		}
	}

	base := filepath.Base(filename)
	outPath := filepath.Join(outputDir, base+".sample.webp")
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer f.Close()
	if err := nativewebp.Encode(f, img, nil); err != nil {
		return fmt.Errorf("encode webp: %w", err)
	}
	return nil
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
