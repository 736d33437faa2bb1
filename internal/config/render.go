package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Defaults used when a RenderConfig field is unset.
const (
	DefaultBackgroundPath = "8x10.png"
	DefaultOutputDir      = "bounding_box_gen"
	DefaultCSVPath        = "centroid.csv"
	DefaultExchangePath   = "data.json"
	DefaultAPIBaseURL     = "https://dev.sense-ai.org"
	DefaultWSBaseURL      = "wss://dev.sense-ai.org"
	DefaultClientIDPrefix = "sensevis-client"
	DefaultSensorName     = "InnoWing-12"
	DefaultListen         = ":8080"
	DefaultRequestTimeout = 10 * time.Second
)

// RenderConfig is the JSON configuration shared by every sensevis command.
// All fields are optional; Get* accessors fall back to the defaults above.
type RenderConfig struct {
	BackgroundPath *string `json:"background_path,omitempty"`
	OutputDir      *string `json:"output_dir,omitempty"`
	CSVPath        *string `json:"csv_path,omitempty"`
	ExchangePath   *string `json:"exchange_path,omitempty"`

	// DBPath enables the render history store when set.
	DBPath *string `json:"db_path,omitempty"`

	APIBaseURL     *string `json:"api_base_url,omitempty"`
	WSBaseURL      *string `json:"ws_base_url,omitempty"`
	ClientIDPrefix *string `json:"client_id_prefix,omitempty"`
	SensorName     *string `json:"sensor_name,omitempty"`
	RequestTimeout *string `json:"request_timeout,omitempty"` // duration string like "10s"

	Listen *string `json:"listen,omitempty"`

	// Seed makes ring-1 halo colours reproducible.
	Seed *uint64 `json:"seed,omitempty"`

	PlotDetections *bool `json:"plot_detections,omitempty"`
}

// EmptyRenderConfig returns a config with every field unset.
func EmptyRenderConfig() *RenderConfig {
	return &RenderConfig{}
}

// LoadRenderConfig reads a RenderConfig from a .json file of at most 1MB.
// Omitted fields keep their defaults.
func LoadRenderConfig(path string) (*RenderConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRenderConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *RenderConfig) Validate() error {
	if c.OutputDir != nil && *c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	if c.RequestTimeout != nil && *c.RequestTimeout != "" {
		d, err := time.ParseDuration(*c.RequestTimeout)
		if err != nil {
			return fmt.Errorf("invalid request_timeout '%s': %w", *c.RequestTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("request_timeout must be positive, got %s", d)
		}
	}
	if c.APIBaseURL != nil {
		if err := checkURL("api_base_url", *c.APIBaseURL, "http", "https"); err != nil {
			return err
		}
	}
	if c.WSBaseURL != nil {
		if err := checkURL("ws_base_url", *c.WSBaseURL, "ws", "wss"); err != nil {
			return err
		}
	}
	return nil
}

func checkURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s must be an absolute %v URL, got %q", field, schemes, raw)
}

func stringOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

// GetBackgroundPath returns the background bitmap path.
func (c *RenderConfig) GetBackgroundPath() string {
	return stringOr(c.BackgroundPath, DefaultBackgroundPath)
}

// GetOutputDir returns the artifact directory.
func (c *RenderConfig) GetOutputDir() string { return stringOr(c.OutputDir, DefaultOutputDir) }

// GetCSVPath returns the batch input path.
func (c *RenderConfig) GetCSVPath() string { return stringOr(c.CSVPath, DefaultCSVPath) }

// GetExchangePath returns the coordinate exchange file path.
func (c *RenderConfig) GetExchangePath() string {
	return stringOr(c.ExchangePath, DefaultExchangePath)
}

// GetDBPath returns the history database path, or "" when history is off.
func (c *RenderConfig) GetDBPath() string { return stringOr(c.DBPath, "") }

func (c *RenderConfig) GetAPIBaseURL() string { return stringOr(c.APIBaseURL, DefaultAPIBaseURL) }
func (c *RenderConfig) GetWSBaseURL() string  { return stringOr(c.WSBaseURL, DefaultWSBaseURL) }
func (c *RenderConfig) GetSensorName() string { return stringOr(c.SensorName, DefaultSensorName) }
func (c *RenderConfig) GetListen() string     { return stringOr(c.Listen, DefaultListen) }

func (c *RenderConfig) GetClientIDPrefix() string {
	return stringOr(c.ClientIDPrefix, DefaultClientIDPrefix)
}

// GetRequestTimeout parses RequestTimeout, falling back to the default.
func (c *RenderConfig) GetRequestTimeout() time.Duration {
	if c.RequestTimeout == nil || *c.RequestTimeout == "" {
		return DefaultRequestTimeout
	}
	d, err := time.ParseDuration(*c.RequestTimeout)
	if err != nil || d <= 0 {
		return DefaultRequestTimeout
	}
	return d
}

// GetSeed returns the ring-1 colour seed and whether one is configured.
func (c *RenderConfig) GetSeed() (uint64, bool) {
	if c.Seed == nil {
		return 0, false
	}
	return *c.Seed, true
}

// GetPlotDetections reports whether diagnostic plots are written.
func (c *RenderConfig) GetPlotDetections() bool {
	return c.PlotDetections != nil && *c.PlotDetections
}

// Helper functions to create pointers.
func PtrString(v string) *string { return &v }
func PtrBool(v bool) *bool       { return &v }
func PtrUint64(v uint64) *uint64 { return &v }
