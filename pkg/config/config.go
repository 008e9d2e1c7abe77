// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/cliprecorder/pkg/session"
)

// Source backends.
const (
	SourcePattern = "pattern"
	SourceChrome  = "chrome"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid configuration")

// Config represents the full configuration for cliprecorder.
type Config struct {
	// Capture
	Source        string `yaml:"source"`
	URL           string `yaml:"url"`
	ChromePath    string `yaml:"chrome_path"`
	Headless      bool   `yaml:"headless"`
	CaptureWidth  int    `yaml:"capture_width"`
	CaptureHeight int    `yaml:"capture_height"`

	// Encoding
	OutputWidth   int           `yaml:"output_width"`
	OutputHeight  int           `yaml:"output_height"`
	FrameRate     int           `yaml:"frame_rate"`
	ClipSeconds   int           `yaml:"clip_seconds"`
	BitrateKbps   int           `yaml:"bitrate_kbps"`
	FrameExt      string        `yaml:"frame_ext"`
	FFmpegPath    string        `yaml:"ffmpeg_path"`
	EncodeTimeout time.Duration `yaml:"encode_timeout"`

	// Storage
	RootDir        string `yaml:"root_dir"`
	TempFolder     string `yaml:"temp_folder"`
	EncoderWorkers int    `yaml:"encoder_workers"`
	EncoderGrain   int    `yaml:"encoder_grain"`
	WriteQueue     int    `yaml:"write_queue"`
	WriteWorkers   int    `yaml:"write_workers"`
	KeepArtifacts  bool   `yaml:"keep_artifacts"`
	FinalizeOnStop bool   `yaml:"finalize_on_stop"`

	// Upload
	APIKey            string        `yaml:"api_key"`
	VideoEndpoint     string        `yaml:"video_endpoint"`
	ThumbnailEndpoint string        `yaml:"thumbnail_endpoint"`
	UploadTimeout     time.Duration `yaml:"upload_timeout"`
	ThumbnailInterval time.Duration `yaml:"thumbnail_interval"`

	// Debug
	Debug    bool   `yaml:"debug"`
	DebugDir string `yaml:"debug_dir"`
	LogLevel string `yaml:"log_level"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		// Capture
		Source:        SourcePattern,
		Headless:      true,
		CaptureWidth:  1280,
		CaptureHeight: 720,

		// Encoding
		FrameRate:   30,
		ClipSeconds: 10,
		BitrateKbps: 1000,
		FrameExt:    "ppm",

		// Storage
		RootDir:      ".",
		TempFolder:   "TempVideos",
		EncoderGrain: 64,
		WriteQueue:   8,
		WriteWorkers: 2,

		// Upload
		UploadTimeout:     2 * time.Minute,
		ThumbnailInterval: time.Second,

		// Debug
		DebugDir: "./debug",
		LogLevel: "info",
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyEnv overrides values from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("FFMPEG_PATH"); v != "" {
		c.FFmpegPath = v
	}
	if v := os.Getenv("CHROME_PATH"); v != "" {
		c.ChromePath = v
	}
	if v := os.Getenv("CLIPREC_API_KEY"); v != "" {
		c.APIKey = v
	}
}

// OutputSize returns the encoded video size, falling back to the capture size.
func (c Config) OutputSize() (int, int) {
	w, h := c.OutputWidth, c.OutputHeight
	if w <= 0 || h <= 0 {
		w, h = c.CaptureWidth, c.CaptureHeight
	}
	return w, h
}

// Validate checks the configuration for values the recorder cannot run with.
func (c Config) Validate() error {
	switch c.Source {
	case SourcePattern:
	case SourceChrome:
		if c.URL == "" {
			return fmt.Errorf("%w: url is required for the chrome source", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalid, c.Source)
	}

	if c.CaptureWidth <= 0 || c.CaptureHeight <= 0 {
		return fmt.Errorf("%w: capture size %dx%d", ErrInvalid, c.CaptureWidth, c.CaptureHeight)
	}
	// yuv420p needs even dimensions
	if w, h := c.OutputSize(); w%2 != 0 || h%2 != 0 {
		return fmt.Errorf("%w: output size %dx%d must be even", ErrInvalid, w, h)
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("%w: frame_rate must be positive", ErrInvalid)
	}
	if c.ClipSeconds <= 0 {
		return fmt.Errorf("%w: clip_seconds must be positive", ErrInvalid)
	}
	if c.BitrateKbps <= 0 {
		return fmt.Errorf("%w: bitrate_kbps must be positive", ErrInvalid)
	}
	if c.FrameExt != "ppm" {
		return fmt.Errorf("%w: frame_ext %q is not supported", ErrInvalid, c.FrameExt)
	}
	if c.TempFolder == "" {
		return fmt.Errorf("%w: temp_folder is required", ErrInvalid)
	}
	// The temp folder is removed on every start
	if err := session.CheckTempFolder(c.TempFolder); err != nil {
		return fmt.Errorf("%w: temp_folder: %v", ErrInvalid, err)
	}
	if c.ThumbnailInterval < 0 || c.EncodeTimeout < 0 || c.UploadTimeout < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalid)
	}

	return nil
}

// ToSessionConfig converts Config to session.Config.
func (c Config) ToSessionConfig() session.Config {
	return session.Config{
		Width:             c.CaptureWidth,
		Height:            c.CaptureHeight,
		FrameRate:         c.FrameRate,
		ClipSeconds:       c.ClipSeconds,
		FrameExt:          c.FrameExt,
		RootDir:           c.RootDir,
		TempFolder:        c.TempFolder,
		EncoderWorkers:    c.EncoderWorkers,
		EncoderGrain:      c.EncoderGrain,
		WriteQueue:        c.WriteQueue,
		WriteWorkers:      c.WriteWorkers,
		APIKey:            c.APIKey,
		ThumbnailInterval: c.ThumbnailInterval,
		KeepArtifacts:     c.KeepArtifacts,
		FinalizeOnStop:    c.FinalizeOnStop,
	}
}
