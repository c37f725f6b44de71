package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Destination names accepted in Options.Output.
const (
	OutputStderr = "stderr"
	OutputStdout = "stdout"
	OutputSyslog = "syslog"
)

// Format names accepted in Options.Format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	// ErrUnknownFormat indicates Options.Format is not text or json.
	ErrUnknownFormat = errors.New("unknown log format")

	// ErrSyslogUnsupported indicates the platform has no syslog.
	ErrSyslogUnsupported = errors.New("syslog output not supported on this platform")
)

// Options configures a logging Context.
type Options struct {
	// Level is a logrus level name; empty means "info".
	Level string
	// Output is stderr, stdout, syslog or a file path; empty means stderr.
	Output string
	// Format is text or json; empty means text.
	Format string
}

// Context owns one logrus.Logger and its destination.
type Context struct {
	logger *logrus.Logger

	mu     sync.Mutex
	closer io.Closer
}

// New builds a Context from opts.
func New(opts Options) (*Context, error) {
	logger := logrus.New()

	level := opts.Level
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(parsed)

	switch strings.ToLower(opts.Format) {
	case "", FormatText:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}

	ctx := &Context{logger: logger}
	if err := ctx.attachOutput(opts.Output); err != nil {
		return nil, err
	}
	return ctx, nil
}

func (c *Context) attachOutput(output string) error {
	switch output {
	case "", OutputStderr:
		c.logger.SetOutput(os.Stderr)
	case OutputStdout:
		c.logger.SetOutput(os.Stdout)
	case OutputSyslog:
		closer, err := attachSyslog(c.logger)
		if err != nil {
			return err
		}
		c.closer = closer
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		c.logger.SetOutput(f)
		c.closer = f
	}
	return nil
}

// Discard returns a Context that drops everything. Used when a caller
// passes no logger and throughout tests.
func Discard() *Context {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return &Context{logger: logger}
}

// Logger returns the underlying logger.
func (c *Context) Logger() *logrus.Logger {
	return c.logger
}

// For returns an entry tagged with the package and function fields.
func (c *Context) For(pkg, function string) *logrus.Entry {
	return c.logger.WithFields(logrus.Fields{
		"package":  pkg,
		"function": function,
	})
}

// SetLevel changes the level filter.
func (c *Context) SetLevel(level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	c.logger.SetLevel(parsed)
	return nil
}

// Close releases the destination if it is a file or syslog connection.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	c.logger.SetOutput(io.Discard)
	return err
}

// OrDiscard returns entry, or a discarding entry when entry is nil.
func OrDiscard(entry *logrus.Entry) *logrus.Entry {
	if entry != nil {
		return entry
	}
	return logrus.NewEntry(Discard().logger)
}
