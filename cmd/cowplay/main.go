package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/opd-ai/cow/config"
	"github.com/opd-ai/cow/internal/scenario"
	"github.com/opd-ai/cow/logging"
	"github.com/sirupsen/logrus"
)

// CLI configuration
type CLIConfig struct {
	configFile    string
	watch         bool
	name          string
	stepTimeout   time.Duration
	seekPlaying   int64
	seekPaused    int64
	buffers       int
	frameDuration time.Duration
	produceEvery  time.Duration
	logLevel      string
	help          bool
}

// parseCLIFlags parses command-line flags and returns the configuration.
func parseCLIFlags(fs *flag.FlagSet, args []string) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	def := scenario.DefaultConfig()

	fs.StringVar(&cfg.configFile, "config", ".env", "Dotenv file with COW_* settings (missing file is ignored)")
	fs.BoolVar(&cfg.watch, "watch", false, "Reload the log level when the config file changes")
	fs.StringVar(&cfg.name, "name", def.Name, "Pipeline name")
	fs.DurationVar(&cfg.stepTimeout, "step-timeout", def.StepTimeout, "Timeout for each session step")
	fs.Int64Var(&cfg.seekPlaying, "seek", def.SeekPlaying, "Seek target in ms while playing")
	fs.Int64Var(&cfg.seekPaused, "seek-paused", def.SeekPaused, "Seek target in ms while paused")
	fs.IntVar(&cfg.buffers, "buffers", def.Flow.Buffers, "Buffers streamed before end of stream")
	fs.DurationVar(&cfg.frameDuration, "frame-duration", def.Flow.FrameDuration, "Duration of each buffer")
	fs.DurationVar(&cfg.produceEvery, "produce-interval", def.Flow.ProduceInterval, "Pause between produced buffers")
	fs.StringVar(&cfg.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	fs.BoolVar(&cfg.help, "help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// printUsage prints the usage information.
func printUsage(fs *flag.FlagSet) {
	fmt.Println("Cow playback session")
	fmt.Println("====================")
	fmt.Println()
	fmt.Println("Runs prepare, play, seek, pause, paused seek, resume, streaming to")
	fmt.Println("end of stream, stop and reset against a simulated graph.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s [options]\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	fs.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  %s -seek 30000 -buffers 500\n", os.Args[0])
	fmt.Printf("  COW_PIPELINE_FLUSH_SOURCE=true %s -log-level debug\n", os.Args[0])
}

// validateCLIConfig validates the CLI configuration.
func validateCLIConfig(cfg *CLIConfig) error {
	if cfg.name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if cfg.stepTimeout <= 0 {
		return fmt.Errorf("step timeout must be positive")
	}
	if cfg.seekPlaying < 0 || cfg.seekPaused < 0 {
		return fmt.Errorf("seek targets cannot be negative")
	}
	if cfg.buffers <= 0 {
		return fmt.Errorf("buffers must be positive")
	}
	if cfg.frameDuration <= 0 {
		return fmt.Errorf("frame duration must be positive")
	}
	if cfg.produceEvery < 0 {
		return fmt.Errorf("produce interval cannot be negative")
	}
	if cfg.watch && cfg.configFile == "" {
		return fmt.Errorf("-watch needs -config")
	}
	return nil
}

// createScenarioConfig converts the CLI configuration and the loaded
// tuning values into a session configuration.
func createScenarioConfig(cli *CLIConfig, app *config.Config) *scenario.Config {
	sc := scenario.DefaultConfig()
	sc.Name = cli.name
	sc.StepTimeout = cli.stepTimeout
	sc.SeekPlaying = cli.seekPlaying
	sc.SeekPaused = cli.seekPaused
	sc.Flow.Buffers = cli.buffers
	sc.Flow.FrameDuration = cli.frameDuration
	sc.Flow.ProduceInterval = cli.produceEvery
	sc.Flow.LowBar = app.Traffic.LowBar
	sc.Flow.HighBar = app.Traffic.HighBar
	sc.Flow.Window = app.Statics.Window
	return sc
}

// setupSignalHandling sets up graceful shutdown on interrupt signals.
func setupSignalHandling(cancel context.CancelFunc, log *logrus.Entry) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	go func() {
		sig := <-sigChan
		log.WithField("signal", sig.String()).Warn("Received signal, shutting down")
		cancel()
	}()
}

// printResults writes one line per step and a summary.
func printResults(res *scenario.Results) {
	for _, s := range res.Steps {
		line := fmt.Sprintf("%-13s %-8s %v", s.Name, s.Status, s.Duration.Round(time.Microsecond))
		if s.Err != "" {
			line += "  " + s.Err
		}
		fmt.Println(line)
	}
	fmt.Printf("\n%d passed, %d failed, %d skipped in %v\n",
		res.Passed, res.Failed, res.Skipped, res.Elapsed.Round(time.Millisecond))
}

func run(cli *CLIConfig) int {
	app, err := config.Load(nil, cli.configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}
	if cli.logLevel != "" {
		app.Log.Level = cli.logLevel
	}

	logCtx, err := logging.New(app.LoggingOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging error: %v\n", err)
		return 1
	}
	defer logCtx.Close()
	log := logCtx.For("main", "run")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel, log)

	if cli.watch {
		go func() {
			err := config.Watch(ctx, cli.configFile, log, func(c *config.Config) {
				if cli.logLevel != "" {
					return
				}
				if err := logCtx.SetLevel(c.Log.Level); err != nil {
					log.WithField("error", err.Error()).Warn("Ignoring reloaded log level")
				}
			})
			if err != nil {
				log.WithField("error", err.Error()).Warn("Config watch stopped")
			}
		}()
	}

	runner, err := scenario.NewRunner(createScenarioConfig(cli, app), app, logCtx.For("scenario", "Run"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid session: %v\n", err)
		return 1
	}

	res, err := runner.Run(ctx)
	printResults(res)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nSession failed: %v\n", err)
		return 1
	}
	return 0
}

// main is the entry point for the playback session.
func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	cli, err := parseCLIFlags(fs, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if cli.help {
		printUsage(fs)
		os.Exit(0)
	}
	if err := validateCLIConfig(cli); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Use -help for usage information.\n")
		os.Exit(1)
	}
	os.Exit(run(cli))
}
