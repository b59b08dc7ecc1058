// Package config loads Mudra settings from the environment and .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "MUDRA_"

// Config holds every runtime setting.
type Config struct {
	Addr         string
	ModelPath    string
	Camera       string
	DBPath       string
	StaticDir    string
	Labels       string
	StreamFPS    int
	FrameTimeout time.Duration
	MaxHands     int
	MinDetection float64
	MinTracking  float64
	DetectorPool int
}

// DataDir returns ~/.mudra, or .mudra when the home directory is unknown.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mudra"
	}
	return filepath.Join(home, ".mudra")
}

// Default returns the built-in settings.
func Default() Config {
	det := detector.DefaultConfig()
	return Config{
		Addr:         ":8080",
		ModelPath:    filepath.Join("models", "model.json"),
		Camera:       "0",
		DBPath:       filepath.Join(DataDir(), "mudra.db"),
		Labels:       "A,B,C,D,E,F",
		StreamFPS:    15,
		FrameTimeout: 2 * time.Second,
		MaxHands:     det.MaxHands,
		MinDetection: det.MinConfidence,
		MinTracking:  det.MinTrackingConf,
		DetectorPool: 2,
	}
}

// Load reads the given .env files (default ".env"; missing files are
// skipped) into the process environment and builds a Config from it.
// Variables already set in the environment win over .env values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from Default overridden by MUDRA_* variables.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	p := parser{lookup: lookup}

	p.str("ADDR", &c.Addr)
	p.str("MODEL_PATH", &c.ModelPath)
	p.str("CAMERA", &c.Camera)
	p.str("DB_PATH", &c.DBPath)
	p.str("STATIC_DIR", &c.StaticDir)
	p.str("LABELS", &c.Labels)
	p.int("STREAM_FPS", &c.StreamFPS)
	p.duration("FRAME_TIMEOUT", &c.FrameTimeout)
	p.int("MAX_HANDS", &c.MaxHands)
	p.float("MIN_DETECTION", &c.MinDetection)
	p.float("MIN_TRACKING", &c.MinTracking)
	p.int("DETECTOR_POOL", &c.DetectorPool)

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

// Validate checks ranges.
func (c Config) Validate() error {
	var errs []error
	if c.StreamFPS <= 0 {
		errs = append(errs, fmt.Errorf("stream fps must be positive, got %d", c.StreamFPS))
	}
	if c.FrameTimeout <= 0 {
		errs = append(errs, fmt.Errorf("frame timeout must be positive, got %s", c.FrameTimeout))
	}
	if c.MaxHands <= 0 {
		errs = append(errs, fmt.Errorf("max hands must be positive, got %d", c.MaxHands))
	}
	if c.MinDetection < 0 || c.MinDetection > 1 {
		errs = append(errs, fmt.Errorf("min detection confidence must be in [0,1], got %v", c.MinDetection))
	}
	if c.MinTracking < 0 || c.MinTracking > 1 {
		errs = append(errs, fmt.Errorf("min tracking confidence must be in [0,1], got %v", c.MinTracking))
	}
	if c.DetectorPool <= 0 {
		errs = append(errs, fmt.Errorf("detector pool size must be positive, got %d", c.DetectorPool))
	}
	if _, err := c.LabelTable(); err != nil {
		errs = append(errs, fmt.Errorf("labels: %w", err))
	}
	return errors.Join(errs...)
}

// LabelTable parses Labels.
func (c Config) LabelTable() (gesture.LabelTable, error) {
	return gesture.ParseLabelTable(c.Labels)
}

// DetectorConfig returns the hand detector settings.
func (c Config) DetectorConfig() detector.Config {
	return detector.Config{
		MaxHands:        c.MaxHands,
		MinConfidence:   c.MinDetection,
		MinTrackingConf: c.MinTracking,
	}
}

type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) get(name string) (string, bool) {
	v, ok := p.lookup(EnvPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (p *parser) fail(name, v string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s%s=%q: %w", EnvPrefix, name, v, err))
}

func (p *parser) str(name string, dst *string) {
	if v, ok := p.get(name); ok {
		*dst = v
	}
}

func (p *parser) int(name string, dst *int) {
	v, ok := p.get(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(name, v, err)
		return
	}
	*dst = n
}

func (p *parser) float(name string, dst *float64) {
	v, ok := p.get(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(name, v, err)
		return
	}
	*dst = f
}

func (p *parser) duration(name string, dst *time.Duration) {
	v, ok := p.get(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(name, v, err)
		return
	}
	*dst = d
}
