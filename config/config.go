package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/opd-ai/cow/limits"
	"github.com/opd-ai/cow/logging"
	"github.com/opd-ai/cow/pipeline"
	"github.com/sirupsen/logrus"
)

// LogConfig selects the logging destination.
type LogConfig struct {
	Level  string
	Output string
	Format string
}

// ThreadConfig tunes message threads.
type ThreadConfig struct {
	QueueWarnLength int
}

// TrafficConfig holds flow watermarks.
type TrafficConfig struct {
	LowBar  uint32
	HighBar uint32
}

// StaticsConfig tunes performance statistics.
type StaticsConfig struct {
	Window      int
	ThresholdUs int64
}

// PipelineConfig tunes the orchestrator.
type PipelineConfig struct {
	ResetTimeout   time.Duration
	PreviewTimeout time.Duration
	FlushSource    bool
}

// Config is the complete set of tuning values.
type Config struct {
	Log      LogConfig
	Thread   ThreadConfig
	Traffic  TrafficConfig
	Statics  StaticsConfig
	Pipeline PipelineConfig
}

// Default returns the built-in configuration.
//
// Default Value Rationale:
//   - Traffic 2/8: a decoder keeps a few frames queued without holding
//     more than a GOP fragment in memory
//   - Statics window 30: one second of video at 30 fps
//   - ResetTimeout 3s: hardware codecs release within a second or two
//   - PreviewTimeout 2s: one frame decode after a cold seek
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Output: logging.OutputStderr,
			Format: logging.FormatText,
		},
		Thread: ThreadConfig{QueueWarnLength: 256},
		Traffic: TrafficConfig{
			LowBar:  limits.DefaultLowBar,
			HighBar: limits.DefaultHighBar,
		},
		Statics: StaticsConfig{
			Window: limits.DefaultWindowSize,
		},
		Pipeline: PipelineConfig{
			ResetTimeout:   limits.DefaultResetTimeout,
			PreviewTimeout: limits.DefaultPreviewTimeout,
		},
	}
}

// Load reads the dotenv files in order, applies the process environment
// and validates the result. Missing files are skipped.
func Load(log *logrus.Entry, paths ...string) (*Config, error) {
	log = logging.OrDiscard(log)

	files := make(map[string]string)
	for _, path := range paths {
		vals, err := godotenv.Read(path)
		if errors.Is(err, os.ErrNotExist) {
			log.WithFields(logrus.Fields{
				"function": "Load",
				"path":     path,
			}).Debug("Config file not found, skipping")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		for k, v := range vals {
			files[k] = v
		}
	}

	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return files[key]
	}

	cfg := Default()
	applyOverrides(cfg, lookup, log)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logConfiguration(cfg, log)
	return cfg, nil
}

// Validate checks every value against its limits.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.Log.Format != logging.FormatText && c.Log.Format != logging.FormatJSON {
		return fmt.Errorf("log format %q: %w", c.Log.Format, logging.ErrUnknownFormat)
	}
	if c.Thread.QueueWarnLength < 0 {
		return fmt.Errorf("thread queue warn length %d: %w", c.Thread.QueueWarnLength, limits.ErrOutOfRange)
	}
	if err := limits.ValidateWatermarks(c.Traffic.LowBar, c.Traffic.HighBar); err != nil {
		return err
	}
	if err := limits.ValidateWindowSize(c.Statics.Window); err != nil {
		return err
	}
	if c.Statics.ThresholdUs < 0 {
		return fmt.Errorf("statics threshold %d: %w", c.Statics.ThresholdUs, limits.ErrOutOfRange)
	}
	return c.PipelineOptions("").Validate()
}

// LoggingOptions converts the Log section.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:  c.Log.Level,
		Output: c.Log.Output,
		Format: c.Log.Format,
	}
}

// PipelineOptions converts the Pipeline and Thread sections.
func (c *Config) PipelineOptions(name string) pipeline.Options {
	opts := pipeline.DefaultOptions()
	if name != "" {
		opts.Name = name
	}
	opts.ResetTimeout = c.Pipeline.ResetTimeout
	opts.PreviewTimeout = c.Pipeline.PreviewTimeout
	opts.FlushSource = c.Pipeline.FlushSource
	opts.QueueWarnLength = c.Thread.QueueWarnLength
	return opts
}

// logConfiguration logs the final configuration for debugging purposes.
func logConfiguration(cfg *Config, log *logrus.Entry) {
	log.WithFields(logrus.Fields{
		"function":        "Load",
		"log_level":       cfg.Log.Level,
		"log_output":      cfg.Log.Output,
		"low_bar":         cfg.Traffic.LowBar,
		"high_bar":        cfg.Traffic.HighBar,
		"window":          cfg.Statics.Window,
		"reset_timeout":   cfg.Pipeline.ResetTimeout.String(),
		"preview_timeout": cfg.Pipeline.PreviewTimeout.String(),
		"flush_source":    cfg.Pipeline.FlushSource,
	}).Debug("Configuration loaded")
}
