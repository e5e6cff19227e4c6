// Command texprobe dumps gettextureinfo metadata for one or more
// texture files, the diagnostic counterpart to cmd/texdump in the
// teacher repo.
package main

import (
	"flag"
	"fmt"
	"os"

	"texturesys/internal/config"
	_ "texturesys/internal/imagereader/plain"
	"texturesys/internal/sampler"
)

func main() {
	configFile := flag.String("config", "", "Path to config.json file")
	searchPath := flag.String("path", "", "Search path for resolving filenames")
	maxOpenFiles := flag.Int("max-open-files", 0, "Open-file budget (default 100)")
	maxMemoryMB := flag.Int("max-memory-mb", 0, "Tile-byte budget in MiB (default 50)")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: texprobe [flags] file [file...]")
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
	})

	sys := sampler.Create(cfg.SearchPath)
	sys.MaxOpenFiles(cfg.MaxOpenFiles)
	sys.MaxMemoryMB(cfg.MaxMemoryMB)
	defer sys.Destroy()

	errors := 0
	for _, f := range files {
		if !probeOne(sys, f) {
			errors++
		}
	}
	if errors > 0 {
		os.Exit(1)
	}
}

func probeOne(sys *sampler.System, filename string) bool {
	var res [2]int
	if !sys.GetTextureInfo(filename, "resolution", &res) {
		fmt.Printf("%s: could not open or has no resolution\n", filename)
		return false
	}

	var textureType, textureFormat string
	var channels int
	sys.GetTextureInfo(filename, "texturetype", &textureType)
	sys.GetTextureInfo(filename, "textureformat", &textureFormat)
	sys.GetTextureInfo(filename, "channels", &channels)

	fmt.Printf("%s\n", filename)
	fmt.Printf("  resolution:     %dx%d\n", res[0], res[1])
	fmt.Printf("  texturetype:    %s\n", textureType)
	fmt.Printf("  textureformat:  %s\n", textureFormat)
	fmt.Printf("  channels:       %d\n", channels)
	return true
}
