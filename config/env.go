package config

import (
	"strconv"
	"time"

	"github.com/opd-ai/cow/limits"
	"github.com/sirupsen/logrus"
)

// Environment variable names.
const (
	EnvLogLevel               = "COW_LOG_LEVEL"
	EnvLogOutput              = "COW_LOG_OUTPUT"
	EnvLogFormat              = "COW_LOG_FORMAT"
	EnvThreadQueueWarn        = "COW_THREAD_QUEUE_WARN"
	EnvTrafficLowBar          = "COW_TRAFFIC_LOW_BAR"
	EnvTrafficHighBar         = "COW_TRAFFIC_HIGH_BAR"
	EnvStaticsWindow          = "COW_STATICS_WINDOW"
	EnvStaticsThresholdUs     = "COW_STATICS_THRESHOLD_US"
	EnvPipelineResetTimeout   = "COW_PIPELINE_RESET_TIMEOUT"
	EnvPipelinePreviewTimeout = "COW_PIPELINE_PREVIEW_TIMEOUT"
	EnvPipelineFlushSource    = "COW_PIPELINE_FLUSH_SOURCE"
)

// MaxQueueWarnLength bounds COW_THREAD_QUEUE_WARN.
const MaxQueueWarnLength = 1 << 20

type lookupFunc func(key string) string

// applyOverrides updates cfg from COW_* variables. Each variable is
// handled on its own so one bad value does not discard the others.
func applyOverrides(cfg *Config, lookup lookupFunc, log *logrus.Entry) {
	parseLogSettings(cfg, lookup)
	parseQueueWarnSetting(cfg, lookup, log)
	parseWatermarkSettings(cfg, lookup, log)
	parseStaticsSettings(cfg, lookup, log)
	parseTimeoutSetting(&cfg.Pipeline.ResetTimeout, EnvPipelineResetTimeout, lookup, log)
	parseTimeoutSetting(&cfg.Pipeline.PreviewTimeout, EnvPipelinePreviewTimeout, lookup, log)
	parseFlushSourceSetting(cfg, lookup, log)
}

// parseLogSettings copies the logging strings. They are checked as a whole
// by Validate since logging.New is what interprets them.
func parseLogSettings(cfg *Config, lookup lookupFunc) {
	if v := lookup(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := lookup(EnvLogOutput); v != "" {
		cfg.Log.Output = v
	}
	if v := lookup(EnvLogFormat); v != "" {
		cfg.Log.Format = v
	}
}

// parseQueueWarnSetting updates Thread.QueueWarnLength from
// COW_THREAD_QUEUE_WARN, keeping the current value on bad input.
func parseQueueWarnSetting(cfg *Config, lookup lookupFunc, log *logrus.Entry) {
	str := lookup(EnvThreadQueueWarn)
	if str == "" {
		return
	}
	n, err := strconv.Atoi(str)
	if err != nil {
		warnParse(log, "parseQueueWarnSetting", EnvThreadQueueWarn, str, err, cfg.Thread.QueueWarnLength)
		return
	}
	if n < 0 || n > MaxQueueWarnLength {
		warnBounds(log, "parseQueueWarnSetting", EnvThreadQueueWarn, n, 0, MaxQueueWarnLength, cfg.Thread.QueueWarnLength)
		return
	}
	cfg.Thread.QueueWarnLength = n
}

// parseWatermarkSettings updates the traffic watermarks. The pair is only
// applied when it is consistent.
func parseWatermarkSettings(cfg *Config, lookup lookupFunc, log *logrus.Entry) {
	low, high := cfg.Traffic.LowBar, cfg.Traffic.HighBar
	if !parseUint32(&low, EnvTrafficLowBar, lookup, log) ||
		!parseUint32(&high, EnvTrafficHighBar, lookup, log) {
		return
	}
	if err := limits.ValidateWatermarks(low, high); err != nil {
		log.WithFields(logrus.Fields{
			"function":    "parseWatermarkSettings",
			"low_bar":     low,
			"high_bar":    high,
			"error":       err.Error(),
			"using_value": []uint32{cfg.Traffic.LowBar, cfg.Traffic.HighBar},
		}).Warn("Traffic watermarks invalid, using default")
		return
	}
	cfg.Traffic.LowBar, cfg.Traffic.HighBar = low, high
}

func parseUint32(dst *uint32, key string, lookup lookupFunc, log *logrus.Entry) bool {
	str := lookup(key)
	if str == "" {
		return true
	}
	v, err := strconv.ParseUint(str, 10, 32)
	if err != nil {
		warnParse(log, "parseWatermarkSettings", key, str, err, *dst)
		return false
	}
	*dst = uint32(v)
	return true
}

// parseStaticsSettings updates the statistics window and threshold.
func parseStaticsSettings(cfg *Config, lookup lookupFunc, log *logrus.Entry) {
	if str := lookup(EnvStaticsWindow); str != "" {
		window, err := strconv.Atoi(str)
		switch {
		case err != nil:
			warnParse(log, "parseStaticsSettings", EnvStaticsWindow, str, err, cfg.Statics.Window)
		case limits.ValidateWindowSize(window) != nil:
			warnBounds(log, "parseStaticsSettings", EnvStaticsWindow, window,
				limits.MinWindowSize, limits.MaxWindowSize, cfg.Statics.Window)
		default:
			cfg.Statics.Window = window
		}
	}

	if str := lookup(EnvStaticsThresholdUs); str != "" {
		threshold, err := strconv.ParseInt(str, 10, 64)
		switch {
		case err != nil:
			warnParse(log, "parseStaticsSettings", EnvStaticsThresholdUs, str, err, cfg.Statics.ThresholdUs)
		case threshold < 0:
			warnBounds(log, "parseStaticsSettings", EnvStaticsThresholdUs, threshold, 0, "unbounded", cfg.Statics.ThresholdUs)
		default:
			cfg.Statics.ThresholdUs = threshold
		}
	}
}

// parseTimeoutSetting updates *dst from a Go duration string within
// [limits.MinTimeout, limits.MaxTimeout].
func parseTimeoutSetting(dst *time.Duration, key string, lookup lookupFunc, log *logrus.Entry) {
	str := lookup(key)
	if str == "" {
		return
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		warnParse(log, "parseTimeoutSetting", key, str, err, dst.String())
		return
	}
	if err := limits.ValidateTimeout(key, d); err != nil {
		warnBounds(log, "parseTimeoutSetting", key, d.String(),
			limits.MinTimeout.String(), limits.MaxTimeout.String(), dst.String())
		return
	}
	*dst = d
}

// parseFlushSourceSetting updates Pipeline.FlushSource from
// COW_PIPELINE_FLUSH_SOURCE.
func parseFlushSourceSetting(cfg *Config, lookup lookupFunc, log *logrus.Entry) {
	str := lookup(EnvPipelineFlushSource)
	if str == "" {
		return
	}
	v, err := strconv.ParseBool(str)
	if err != nil {
		warnParse(log, "parseFlushSourceSetting", EnvPipelineFlushSource, str, err, cfg.Pipeline.FlushSource)
		return
	}
	cfg.Pipeline.FlushSource = v
}

func warnParse(log *logrus.Entry, function, key, value string, err error, using any) {
	log.WithFields(logrus.Fields{
		"function":    function,
		"env_var":     key,
		"value":       value,
		"error":       err.Error(),
		"using_value": using,
	}).Warnf("Failed to parse %s environment variable, using default", key)
}

func warnBounds(log *logrus.Entry, function, key string, value, min, max, using any) {
	log.WithFields(logrus.Fields{
		"function":    function,
		"env_var":     key,
		"value":       value,
		"min":         min,
		"max":         max,
		"using_value": using,
	}).Warnf("%s value out of bounds, using default", key)
}
