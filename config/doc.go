// Package config produces the tuning values cow's constructors take.
//
// Values come from three layers, later layers winning:
//
//  1. Default()
//  2. optional dotenv files passed to Load, read with godotenv
//  3. the process environment
//
// Every variable is parsed and bounds checked on its own; a bad value is
// logged at Warn and the default is kept. The variables are:
//
//   - COW_LOG_LEVEL: logrus level name
//   - COW_LOG_OUTPUT: stderr, stdout, syslog or a file path
//   - COW_LOG_FORMAT: text or json
//   - COW_THREAD_QUEUE_WARN: queue length that triggers a backlog warning
//   - COW_TRAFFIC_LOW_BAR, COW_TRAFFIC_HIGH_BAR: flow watermarks
//   - COW_STATICS_WINDOW: moving-average window in samples
//   - COW_STATICS_THRESHOLD_US: anomaly threshold in microseconds
//   - COW_PIPELINE_RESET_TIMEOUT, COW_PIPELINE_PREVIEW_TIMEOUT: Go durations
//   - COW_PIPELINE_FLUSH_SOURCE: "true" or "false"
//
// Watch reloads a dotenv file whenever it changes:
//
//	err := config.Watch(ctx, "cow.env", log, func(cfg *config.Config) {
//	    logCtx.SetLevel(cfg.Log.Level)
//	})
package config
