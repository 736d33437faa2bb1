package main

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/banshee-data/sensevis/internal/config"
	"github.com/banshee-data/sensevis/internal/monitoring"
)

// commonFlags are accepted by every rendering command. Flags given on the
// command line override the config file.
type commonFlags struct {
	configPath string
	background string
	outputDir  string
	dbPath     string
	seed       string
	plot       bool
	verbose    bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Path to a JSON config file")
	fs.StringVar(&c.background, "background", config.DefaultBackgroundPath, "Background bitmap")
	fs.StringVar(&c.outputDir, "out", config.DefaultOutputDir, "Output directory")
	fs.StringVar(&c.dbPath, "db", "", "Render history database (disabled when empty)")
	fs.StringVar(&c.seed, "seed", "", "Seed for ring-1 halo colours (random when empty)")
	fs.BoolVar(&c.plot, "plot", false, "Also write a detection scatter plot")
	fs.BoolVar(&c.verbose, "v", false, "Verbose logging")
}

// load reads the config file, applies explicitly set flags and validates.
func (c *commonFlags) load(fs *flag.FlagSet) (*config.RenderConfig, error) {
	cfg := config.EmptyRenderConfig()
	if c.configPath != "" {
		loaded, err := config.LoadRenderConfig(c.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	var err error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "background":
			cfg.BackgroundPath = config.PtrString(c.background)
		case "out":
			cfg.OutputDir = config.PtrString(c.outputDir)
		case "db":
			cfg.DBPath = config.PtrString(c.dbPath)
		case "plot":
			cfg.PlotDetections = config.PtrBool(c.plot)
		case "seed":
			if c.seed == "" {
				cfg.Seed = nil
				return
			}
			seed, perr := strconv.ParseUint(c.seed, 10, 64)
			if perr != nil {
				err = fmt.Errorf("invalid -seed %q: %w", c.seed, perr)
				return
			}
			cfg.Seed = config.PtrUint64(seed)
		}
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	monitoring.SetVerbose(c.verbose)
	return cfg, nil
}

// isSet reports whether name was given on the command line.
func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
